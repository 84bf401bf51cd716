package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/metizror/marketforce-api/internal/config"
	"github.com/metizror/marketforce-api/internal/httpapi"
	"github.com/metizror/marketforce-api/internal/identity"
	"github.com/metizror/marketforce-api/internal/notify"
	"github.com/metizror/marketforce-api/internal/obs"
	"github.com/metizror/marketforce-api/internal/otp"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Missing secret or DSN is a configuration precondition: crash rather
	// than serve degraded traffic.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	tokens, err := identity.NewTokenIssuer(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPSender(
			cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		log.Println("smtp not configured, otp codes are logged instead of emailed")
	}

	store := identity.NewPGStore(db)
	ledger := otp.NewLedger(otp.NewPGStore(db), notifier, otp.WithTTL(cfg.OTPTTL))
	svc := identity.NewService(store, ledger, tokens)

	if cfg.Bootstrap.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := svc.ProvisionAdmin(ctx,
			cfg.Bootstrap.Name, cfg.Bootstrap.Email, cfg.Bootstrap.Password,
			identity.KindSuperadmin); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		cancel()
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc)
	api.SetRateLimit(cfg.RateBurst, cfg.RatePerSec)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting marketforce-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
