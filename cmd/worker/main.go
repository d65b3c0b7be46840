package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unionmade-backend/internal/config"
	"unionmade-backend/internal/db"
	"unionmade-backend/internal/ledger"
	"unionmade-backend/internal/notify"
	"unionmade-backend/internal/settlement"
	"unionmade-backend/internal/store"
	"unionmade-backend/internal/worker"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	ledgerSvc := ledger.New(st, cfg.Stripe.SecretKey)

	var mail *notify.MailtrapClient
	if cfg.Mail.Token != "" {
		mail = notify.NewMailtrapClient(cfg.Mail.APIURL, cfg.Mail.Token, cfg.Mail.SenderEmail, cfg.Mail.SenderName)
	}
	notifier := &notify.Service{
		Store: st,
		Mail:  mail,
		Templates: map[settlement.Event]string{
			settlement.EventUnderfundedRefund:  cfg.Mail.Templates.Underfunded,
			settlement.EventStageAdvanced:      cfg.Mail.Templates.StageAdvanced,
			settlement.EventDiscontinuedRefund: cfg.Mail.Templates.Discontinued,
		},
	}

	engine := &settlement.Engine{
		Store:       st,
		Ledger:      ledgerSvc,
		Notifier:    notifier,
		CallTimeout: time.Duration(cfg.Settlement.CallTimeoutSeconds) * time.Second,
	}

	w := &worker.Worker{
		Store:       st,
		Engine:      engine,
		SweepHour:   cfg.Sweep.HourUTC,
		SweepMinute: cfg.Sweep.MinuteUTC,
		Interval:    time.Duration(cfg.Sweep.IntervalSeconds) * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	log.Printf("settlement worker started (sweep %02d:%02d UTC)", cfg.Sweep.HourUTC, cfg.Sweep.MinuteUTC)
	w.Run(ctx)
}
