package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sharpwatch/sharpwatch/internal/alerts"
	"github.com/sharpwatch/sharpwatch/internal/config"
	"github.com/sharpwatch/sharpwatch/internal/metrics"
	"github.com/sharpwatch/sharpwatch/internal/polymarket/data"
	"github.com/sharpwatch/sharpwatch/internal/polymarket/gamma"
	"github.com/sharpwatch/sharpwatch/internal/storage"
	"github.com/sharpwatch/sharpwatch/internal/tracker"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting sharpwatch service...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":        cfg.Environment,
		"min_pnl":            cfg.MinPnL,
		"min_roi":            cfg.MinROI,
		"min_volume":         cfg.MinVolume,
		"min_position_value": cfg.MinPositionValue,
		"scan_interval":      cfg.ScanInterval.String(),
		"categories":         cfg.MarketCategories,
		"alert_mode":         cfg.AlertMode,
	}).Info("Configuration loaded")

	// Initialize database
	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run auto-migration
	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}

	log.Info("Database ready")

	// Initialize API clients
	gammaClient := gamma.NewClient(cfg)
	dataClient := data.NewClient(cfg)

	// Initialize alert sender
	alertSender := createAlertSender(cfg, log)

	log.WithField("alert_mode", cfg.AlertMode).Info("Alert sender initialized")

	// Initialize tracker
	tr := tracker.New(cfg, db, gammaClient, dataClient, dataClient, dataClient, alertSender, log)

	// Start HTTP server (health + metrics)
	go startHTTPServer(cfg.HealthPort, db, log)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Schedule the scan cycle and the daily leaderboard digest. SkipIfStillRunning
	// backstops the tracker's own overlap guard at the scheduler level.
	cronLog := cron.PrintfLogger(log)
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLog),
		cron.Recover(cronLog),
	))

	_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.ScanInterval), func() {
		if err := tr.RunCycle(ctx); err != nil {
			log.WithError(err).Error("Scan cycle failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule scan cycle")
	}

	_, err = scheduler.AddFunc(cfg.LeaderboardCron, func() {
		if err := tr.PostLeaderboard(ctx); err != nil {
			log.WithError(err).Error("Leaderboard digest failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule leaderboard digest")
	}

	scheduler.Start()
	defer scheduler.Stop()

	// Run the first cycle immediately rather than waiting a full interval
	go func() {
		if err := tr.RunCycle(ctx); err != nil {
			log.WithError(err).Error("Initial scan cycle failed")
		}
	}()

	sig := <-sigChan
	log.WithField("signal", sig).Info("Received shutdown signal")
	cancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn("Timed out waiting for running jobs")
	}
	log.Info("Graceful shutdown complete")
}

func createAlertSender(cfg *config.Config, log *logrus.Logger) alerts.Sender {
	var senders []alerts.Sender

	for _, mode := range strings.Split(cfg.AlertMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
			senders = append(senders, alerts.NewLogSender(log))
		case "telegram":
			sender, err := alerts.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID)
			if err != nil {
				log.WithError(err).Fatal("Failed to initialize Telegram sender")
			}
			senders = append(senders, sender)
		case "discord":
			senders = append(senders, alerts.NewDiscordSender(cfg.DiscordWebhookURL))
		default:
			log.WithField("mode", mode).Warn("Unknown alert mode, skipping")
		}
	}

	if len(senders) == 0 {
		log.Warn("No valid alert senders configured, using log")
		return alerts.NewLogSender(log)
	}
	if len(senders) == 1 {
		return senders[0]
	}
	return alerts.NewMultiSender(senders...)
}

func startHTTPServer(port int, db *storage.DB, log *logrus.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy"}`)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if _, err := db.GetState(ctx, "last_cycle_completed_ts"); err != nil {
			metrics.RecordHealthCheck(false)
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"database unavailable"}`)
			return
		}
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready"}`)
	})

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.WithField("port", port).Info("Starting HTTP server (health + metrics)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("HTTP server failed")
	}
}
