// Package funnel drives a lead through the scripted conversation: it maps
// each inbound reply to the next outbound template and the lead mutation
// that goes with it.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"leadfunnel/internal/leads"
	"leadfunnel/internal/ledger"
	"leadfunnel/internal/messaging"
	"leadfunnel/internal/models"
	"leadfunnel/internal/offers"
	"leadfunnel/internal/observability"
	"leadfunnel/internal/schedule"
)

// LeadStore is the subset of the lead repository the engine uses.
type LeadStore interface {
	Create(ctx context.Context, lead *models.Lead) (bool, error)
	FindByContact(ctx context.Context, channel models.Channel, ref string) (*models.Lead, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	SetFlags(ctx context.Context, id uint, cols ...string) error
	SetMeeting(ctx context.Context, id uint, t models.MeetingType, status models.MeetingStatus, date *time.Time, extra map[string]interface{}) error
}

// Ledger records inbound events and resolves reply contexts.
type Ledger interface {
	Append(ctx context.Context, msg *models.Message) error
	ResolveContext(ctx context.Context, contextID string) (*models.Message, error)
	HasInbound(ctx context.Context, channel models.Channel, contactRef, providerID string) (bool, error)
}

// Sender places template sends and records them.
type Sender interface {
	SendTemplate(ctx context.Context, to messaging.Contact, name string, params []messaging.Param) (*models.Message, error)
}

type Options struct {
	Location        *time.Location
	CampaignName    string
	InterestKeyword string
	BitCode         string
	WgCode          string
	Templates       Templates
	Now             func() time.Time
}

type Engine struct {
	leads  LeadStore
	ledger Ledger
	sender Sender
	offers offers.Store
	opts   Options
	locks  *keyedMutex
	log    *slog.Logger
}

func NewEngine(leadStore LeadStore, led Ledger, sender Sender, offerStore offers.Store, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Templates == (Templates{}) {
		opts.Templates = DefaultTemplates()
	}
	return &Engine{
		leads:  leadStore,
		ledger: led,
		sender: sender,
		offers: offerStore,
		opts:   opts,
		locks:  newKeyedMutex(),
		log:    observability.WithFields("component", "funnel"),
	}
}

// OnInboundEvent records ev and applies the matching transition. Events for
// the same contact are handled one at a time. The returned error is for the
// caller's logs only; nothing is reported back to the sender.
func (e *Engine) OnInboundEvent(ctx context.Context, ev Event) error {
	if ev.Contact.Ref == "" {
		return fmt.Errorf("inbound event without contact")
	}
	unlock := e.locks.Lock(ev.Contact.Key())
	defer unlock()

	log := observability.LoggerFromContext(ctx).With("component", "funnel", "contact", ev.Contact.Key())

	seen, err := e.ledger.HasInbound(ctx, ev.Contact.Channel, ev.Contact.Ref, ev.ProviderID)
	if err != nil {
		return err
	}
	if seen {
		log.Info("duplicate inbound event ignored", "provider_id", ev.ProviderID)
		return nil
	}

	if err := e.ledger.Append(ctx, ev.ledgerRow()); err != nil {
		log.Error("failed to record inbound message", "provider_id", ev.ProviderID, "error", err)
	}

	lead, err := e.leads.FindByContact(ctx, ev.Contact.Channel, ev.Contact.Ref)
	if err != nil && !errors.Is(err, leads.ErrNotFound) {
		return fmt.Errorf("find lead: %w", err)
	}
	if lead != nil {
		log = log.With("lead_id", lead.ID)
	}

	switch ev.Kind {
	case KindStart:
		return e.onStart(ctx, log, lead, ev)
	case KindText:
		return e.onText(ctx, log, lead, ev)
	case KindButton:
		return e.onButton(ctx, log, lead, ev)
	case KindMedia:
		if lead != nil && !lead.OptedOut {
			return e.leads.SetFlags(ctx, lead.ID, models.ColNeedsAttention)
		}
	}
	return nil
}

// StartConversation sends the opening template to a lead that has not been
// contacted yet.
func (e *Engine) StartConversation(ctx context.Context, lead *models.Lead) error {
	to := messaging.ContactOf(lead)
	unlock := e.locks.Lock(to.Key())
	defer unlock()

	if lead.OptedOut {
		return fmt.Errorf("lead %d opted out", lead.ID)
	}
	params := []messaging.Param{{Name: "name", Value: firstName(lead.Name)}}
	return e.sendStep(ctx, lead, StepIntro, params, nil)
}

func (e *Engine) onStart(ctx context.Context, log *slog.Logger, lead *models.Lead, ev Event) error {
	if lead == nil {
		var err error
		if lead, err = e.createLead(ctx, ev); err != nil {
			return err
		}
		log.Info("lead registered", "lead_id", lead.ID)
	}
	if lead.OptedOut {
		return nil
	}
	return e.sendStep(ctx, lead, StepPitch, nil, nil)
}

func (e *Engine) onText(ctx context.Context, log *slog.Logger, lead *models.Lead, ev Event) error {
	text := ev.Text
	interested := e.isInterest(text)

	if lead == nil {
		if !interested {
			log.Debug("ignoring text from unknown contact")
			return nil
		}
		lead, err := e.createLead(ctx, ev)
		if err != nil {
			return err
		}
		log.Info("lead created from interest message", "lead_id", lead.ID)
		return e.sendStep(ctx, lead, StepPitch, nil, nil)
	}

	if lead.OptedOut {
		return nil
	}
	switch {
	case interested:
		log.Info("known lead repeated interest phrase")
		return nil
	case hasToken(text, e.opts.BitCode):
		return e.bookByCode(ctx, lead, models.MeetingBIT, schedule.NextBIT, StepAfterBITCode,
			models.ColFuBitSent, models.ColFu2BitSent, models.ColLinkBitSent)
	case hasToken(text, e.opts.WgCode):
		return e.bookByCode(ctx, lead, models.MeetingWG, schedule.NextWG, StepAfterWGCode,
			models.ColLinkWgSent)
	}
	log.Info("unrecognized reply, flagging for attention")
	return e.leads.SetFlags(ctx, lead.ID, models.ColNeedsAttention)
}

func (e *Engine) onButton(ctx context.Context, log *slog.Logger, lead *models.Lead, ev Event) error {
	origin, err := e.ledger.ResolveContext(ctx, ev.ContextID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warn("button reply without resolvable context", "context_id", ev.ContextID, "payload", ev.Payload)
			return nil
		}
		return fmt.Errorf("resolve context: %w", err)
	}
	if lead == nil {
		log.Warn("button reply from contact without lead", "context_id", ev.ContextID)
		return nil
	}

	tplName := ""
	if origin.TemplateName != nil {
		tplName = *origin.TemplateName
	}
	step := e.opts.Templates.StepOf(tplName)
	dec, ok := Decide(step, ev.Payload)
	if !ok {
		log.Info("no transition for reply", "template", tplName, "payload", ev.Payload)
		return nil
	}
	if lead.OptedOut && dec.Action != ActOptOut {
		return nil
	}

	switch dec.Action {
	case ActSend:
		return e.sendStep(ctx, lead, dec.Next, nil, nil)
	case ActOfferSlots:
		return e.offerSlots(ctx, lead, dec.Next)
	case ActSelectSlot:
		return e.selectSlot(ctx, log, lead, dec)
	case ActConfirmBooking:
		return e.confirmBooking(ctx, log, lead, dec.Next)
	case ActSetFlag:
		return e.leads.SetFlags(ctx, lead.ID, dec.Flag)
	case ActMarkShow:
		if lead.BomDate == nil {
			log.Warn("attendance confirmed without a BOM date")
			return nil
		}
		return e.leads.SetMeeting(ctx, lead.ID, models.MeetingBOM, models.StatusShow, lead.BomDate, nil)
	case ActOptOut:
		if err := e.leads.Update(ctx, lead.ID, map[string]interface{}{models.ColOptedOut: true}); err != nil {
			return err
		}
		log.Info("lead opted out")
		return e.offers.Clear(ctx, ev.Contact.Key())
	}
	return nil
}

func (e *Engine) offerSlots(ctx context.Context, lead *models.Lead, next Step) error {
	slots := schedule.NextCandidateSlots(e.opts.Now(), e.opts.Location)
	offered := []string{slots[0].String(), slots[1].String()}
	params := []messaging.Param{
		{Name: "slot_1", Value: offered[0]},
		{Name: "slot_2", Value: offered[1]},
	}
	if err := e.sendStep(ctx, lead, next, params, nil); err != nil {
		return err
	}
	return e.offers.PutOffers(ctx, messaging.ContactOf(lead).Key(), offered)
}

func (e *Engine) selectSlot(ctx context.Context, log *slog.Logger, lead *models.Lead, dec Decision) error {
	key := messaging.ContactOf(lead).Key()
	offer, err := e.offers.Offer(ctx, key, dec.SlotIndex)
	if errors.Is(err, offers.ErrNoOffer) {
		log.Warn("slot chosen but no cached offer", "slot", dec.SlotIndex)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read offer: %w", err)
	}

	params := []messaging.Param{{Name: "slot", Value: offer}}
	if err := e.sendStep(ctx, lead, dec.Next, params, nil); err != nil {
		return err
	}
	if err := e.offers.Select(ctx, key, offer); err != nil {
		return fmt.Errorf("cache selected offer: %w", err)
	}

	at, err := schedule.ParseSlot(offer, e.opts.Location)
	if err != nil {
		log.Error("unparseable offer", "offer", offer, "error", err)
		return nil
	}
	return e.leads.SetMeeting(ctx, lead.ID, models.MeetingBOM, models.StatusOffered, &at, nil)
}

func (e *Engine) confirmBooking(ctx context.Context, log *slog.Logger, lead *models.Lead, next Step) error {
	key := messaging.ContactOf(lead).Key()
	selected, err := e.offers.Selected(ctx, key)
	if errors.Is(err, offers.ErrNoOffer) {
		log.Warn("booking confirmed but no selected offer")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read selected offer: %w", err)
	}
	at, err := schedule.ParseSlot(selected, e.opts.Location)
	if err != nil {
		log.Error("unparseable selected offer", "offer", selected, "error", err)
		return nil
	}

	sameDay := schedule.IsToday(at, e.opts.Now(), e.opts.Location)
	extra := map[string]interface{}{
		models.ColFuBomSent:       sameDay,
		models.ColFu2BomSent:      sameDay,
		models.ColFuBomConfirmed:  false,
		models.ColFu2BomConfirmed: false,
		models.ColPreBomSent:      false,
		models.ColPreBomAcked:     false,
		models.ColLinkBomSent:     false,
	}
	params := []messaging.Param{{Name: "slot", Value: selected}}
	if err := e.sendStep(ctx, lead, next, params, func(stage map[string]interface{}) error {
		for k, v := range stage {
			extra[k] = v
		}
		return e.leads.SetMeeting(ctx, lead.ID, models.MeetingBOM, models.StatusConfirmed, &at, extra)
	}); err != nil {
		return err
	}
	log.Info("BOM booked", "bom_date", at, "same_day", sameDay)
	return e.offers.Clear(ctx, key)
}

// bookByCode books the next fixed-cadence meeting of type t after a lead
// sends its registration code. resetFlags are that meeting's reminder flags.
func (e *Engine) bookByCode(ctx context.Context, lead *models.Lead, t models.MeetingType,
	next func(time.Time, *time.Location) time.Time, step Step, resetFlags ...string) error {
	at := next(e.opts.Now(), e.opts.Location)
	params := []messaging.Param{{Name: "slot", Value: schedule.FormatWeekday(at)}}
	utc := at.UTC()
	return e.sendStep(ctx, lead, step, params, func(stage map[string]interface{}) error {
		for _, f := range resetFlags {
			stage[f] = false
		}
		return e.leads.SetMeeting(ctx, lead.ID, t, models.StatusConfirmed, &utc, stage)
	})
}

// sendStep sends the template for step and then persists the new funnel
// stage. When apply is set it receives the stage fields and performs the
// whole lead mutation itself. Nothing is persisted if the send fails.
func (e *Engine) sendStep(ctx context.Context, lead *models.Lead, step Step, params []messaging.Param,
	apply func(stage map[string]interface{}) error) error {
	name := e.opts.Templates.NameOf(step)
	if name == "" {
		return fmt.Errorf("no template configured for step %s", step)
	}
	if _, err := e.sender.SendTemplate(ctx, messaging.ContactOf(lead), name, params); err != nil {
		return err
	}
	stage := map[string]interface{}{models.ColFunnelStage: step.String()}
	if apply != nil {
		return apply(stage)
	}
	return e.leads.Update(ctx, lead.ID, stage)
}

func (e *Engine) createLead(ctx context.Context, ev Event) (*models.Lead, error) {
	lead := &models.Lead{
		Channel:     ev.Contact.Channel,
		ContactRef:  ev.Contact.Ref,
		Name:        ev.Name,
		TgUsername:  ev.Username,
		FunnelStage: StageNew,
	}
	if _, err := e.leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (e *Engine) isInterest(text string) bool {
	lower := strings.ToLower(text)
	kw := strings.ToLower(strings.TrimSpace(e.opts.InterestKeyword))
	campaign := strings.ToLower(strings.TrimSpace(e.opts.CampaignName))
	if kw == "" || campaign == "" {
		return false
	}
	return strings.Contains(lower, kw) && strings.Contains(lower, campaign)
}

// hasToken reports whether code appears in text as a whole word, ignoring case.
func hasToken(text, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if strings.EqualFold(w, code) {
			return true
		}
	}
	return false
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}
