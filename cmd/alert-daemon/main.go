package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"osrs-market/internal/config"
	"osrs-market/internal/database"
	"osrs-market/internal/logging"
	"osrs-market/internal/services/alerts"
	"osrs-market/internal/services/mailer"
	"osrs-market/internal/services/wiki"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var checkInterval = flag.Duration("interval", 0, "sweep interval (overrides CHECK_INTERVAL)")

// alert-daemon runs the recurring alert sweep. One sweep evaluates each
// user's active alerts sequentially, and sweeps run on the loop
// goroutine, so the same alert is never evaluated by two overlapping
// passes.
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	logging.Init(cfg.Environment)
	defer logging.Log.Sync()

	interval := cfg.CheckInterval
	if *checkInterval > 0 {
		interval = *checkInterval
	}

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logging.Log.Fatal("Failed to connect to database", zap.Error(err))
	}

	client := wiki.NewClient(cfg.WikiBaseURL, cfg.MappingURL, cfg.UserAgent())
	var mail mailer.Mailer = mailer.LogOnly{}
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}
	svc := alerts.NewService(db, client, mail)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logging.Log.Info("Alert daemon started",
		zap.Duration("interval", interval),
		zap.Int("pid", os.Getpid()),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			logging.Log.Info("Shutdown signal received, stopping")
			cancel()
			return

		case <-ticker.C:
			sweep(ctx, svc)
		}
	}
}

func sweep(ctx context.Context, svc *alerts.Service) {
	start := time.Now()
	result, err := svc.EvaluateAll(ctx)
	if err != nil {
		logging.Log.Error("Alert sweep failed", zap.Error(err))
		return
	}
	logging.Log.Info("Alert sweep complete",
		zap.Int("checked", result.Checked),
		zap.Int("triggered", result.Triggered),
		zap.Duration("took", time.Since(start)),
	)
}
