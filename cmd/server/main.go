package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"leadfunnel/internal/app"
	"leadfunnel/internal/config"
)

func main() {
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	a.StartHub(ctx)

	if a.Telegram != nil {
		go func() {
			if err := a.Telegram.Run(ctx, a.Funnel); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[Telegram] poller stopped: %v", err)
			}
		}()
	}

	if cfg.CronEnabled {
		sched, err := a.Scheduler(ctx)
		if err != nil {
			log.Fatalf("Failed to build follow-up schedule: %v", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Printf("Follow-up cron started with %d entries", sched.Len())
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to run server: %v", err)
	}
	log.Println("Server stopped")
}
