// Package app wires the funnel's components from configuration. The server
// and the ops CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"leadfunnel/internal/api"
	"leadfunnel/internal/catalog"
	"leadfunnel/internal/config"
	"leadfunnel/internal/database"
	"leadfunnel/internal/followup"
	"leadfunnel/internal/funnel"
	"leadfunnel/internal/leads"
	"leadfunnel/internal/ledger"
	"leadfunnel/internal/links"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
	"leadfunnel/internal/offers"
	"leadfunnel/internal/telegram"
	"leadfunnel/internal/webhook"
	"leadfunnel/internal/whatsapp"
	"leadfunnel/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Location *time.Location

	Leads     *leads.Repository
	Ledger    *ledger.Ledger
	Catalog   *catalog.Catalog
	Links     *links.Repository
	Offers    offers.Store
	Messenger *messaging.Messenger
	Funnel    *funnel.Engine
	FollowUp  *followup.Engine

	WhatsApp *whatsapp.Client
	Telegram *telegram.Bot // nil unless TELEGRAM_BOT_TOKEN is set
	Hub      *ws.Hub

	closers []func() error
}

// New opens the store and builds every component. Channels whose
// credentials are missing are left unregistered.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load BUSINESS_TZ: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	database.SyncConfig(db, cfg)

	a := &App{
		Config:   cfg,
		DB:       db,
		Location: loc,
		Leads:    leads.NewRepository(db),
		Ledger:   ledger.New(db),
		Catalog:  catalog.New(db),
		Links:    links.NewRepository(db, loc),
		Hub:      ws.NewHub(),
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	if cfg.TemplateCatalog != "" {
		n, err := a.Catalog.SeedFile(ctx, cfg.TemplateCatalog)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("seed templates: %w", err)
		}
		log.Printf("Seeded %d templates from %s", n, cfg.TemplateCatalog)
	}

	if cfg.RedisURI != "" {
		rs, err := offers.NewRedisStore(cfg.RedisURI, cfg.OfferTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Offers = rs
		a.closers = append(a.closers, rs.Close)
		log.Println("Offer cache: redis")
	} else {
		a.Offers = offers.NewMemoryStore(cfg.OfferTTL)
		log.Println("Offer cache: in-memory")
	}

	a.Messenger = messaging.NewMessenger(a.Catalog, a.Ledger, cfg.DefaultLocale)
	a.WhatsApp = whatsapp.NewClient(cfg)
	if cfg.WhatsAppToken != "" && cfg.PhoneNumberID != "" {
		a.Messenger.Register(models.ChannelWhatsApp, a.WhatsApp)
	} else {
		log.Println("Warning: WhatsApp credentials missing, channel disabled")
	}
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramBotToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Telegram = bot
		a.Messenger.Register(models.ChannelTelegram, bot)
	}

	a.Funnel = funnel.NewEngine(a.Leads, a.Ledger, a.Messenger, a.Offers, funnel.Options{
		Location:        loc,
		CampaignName:    cfg.CampaignName,
		InterestKeyword: cfg.InterestKeyword,
		BitCode:         cfg.BitCode,
		WgCode:          cfg.WgCode,
	})

	a.FollowUp, err = followup.NewEngine(a.Leads, a.Links, a.Messenger, followup.Config{
		Location:  loc,
		SendDelay: cfg.SweepSendDelay,
		Sweeps:    followup.DefaultSweeps(followup.Options{SecondReminderRequiresConfirm: cfg.SecondReminderRequiresConfirm}),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// StartHub runs the live feed until ctx is done and subscribes it to the
// ledger. Only the server calls it.
func (a *App) StartHub(ctx context.Context) {
	go a.Hub.Run(ctx)
	a.Ledger.Subscribe(a.Hub.NotifyMessage)
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.Deps{
		Config:    a.Config,
		DB:        a.DB,
		Leads:     a.Leads,
		Ledger:    a.Ledger,
		Messenger: a.Messenger,
		Catalog:   a.Catalog,
		Links:     a.Links,
		FollowUp:  a.FollowUp,
		Starter:   a.Funnel,
		Remote:    a.WhatsApp,
		Media:     a.WhatsApp,
		Webhook:   webhook.NewHandler(a.Config, a.Funnel),
		Hub:       a.Hub,
	})
}

// Scheduler builds the cron runner for the default follow-up table.
func (a *App) Scheduler(ctx context.Context) (*followup.Scheduler, error) {
	return followup.NewScheduler(ctx, a.FollowUp, followup.DefaultSchedule)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
