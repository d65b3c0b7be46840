package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unionmade-backend/internal/config"
	"unionmade-backend/internal/db"
	internalhttp "unionmade-backend/internal/http"
	"unionmade-backend/internal/ledger"
	"unionmade-backend/internal/notify"
	"unionmade-backend/internal/services"
	"unionmade-backend/internal/settlement"
	"unionmade-backend/internal/store"
	"unionmade-backend/internal/ws"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	hub := ws.NewHub()
	ledgerSvc := ledger.New(st, cfg.Stripe.SecretKey)

	var mail *notify.MailtrapClient
	if cfg.Mail.Token != "" {
		mail = notify.NewMailtrapClient(cfg.Mail.APIURL, cfg.Mail.Token, cfg.Mail.SenderEmail, cfg.Mail.SenderName)
	}
	notifier := &notify.Service{
		Store: st,
		Mail:  mail,
		Hub:   hub,
		Templates: map[settlement.Event]string{
			settlement.EventUnderfundedRefund:  cfg.Mail.Templates.Underfunded,
			settlement.EventStageAdvanced:      cfg.Mail.Templates.StageAdvanced,
			settlement.EventDiscontinuedRefund: cfg.Mail.Templates.Discontinued,
			services.EventOrderStatusChanged:   cfg.Mail.Templates.OrderStatus,
		},
	}

	engine := &settlement.Engine{
		Store:       st,
		Ledger:      ledgerSvc,
		Notifier:    notifier,
		CallTimeout: time.Duration(cfg.Settlement.CallTimeoutSeconds) * time.Second,
	}

	checkoutSvc := &services.CheckoutService{Store: st}
	campaignSvc := &services.CampaignService{Store: st, Engine: engine, Notifier: notifier}

	h := internalhttp.NewHandler(checkoutSvc, campaignSvc, st)
	srv := internalhttp.NewServer(h, hub)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Printf("api listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
