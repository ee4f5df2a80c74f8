package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"fleet-console/internal/api"
	"fleet-console/internal/backend"
	"fleet-console/internal/config"
	"fleet-console/internal/kafka"
	"fleet-console/internal/logging"
	"fleet-console/internal/models"
	"fleet-console/internal/monitor"
	"fleet-console/internal/notify"
	"fleet-console/internal/providers"
	"fleet-console/internal/store"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Backend client and alert store
	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	st := store.New()

	// Escalation is optional; enabled only when a bot token is configured
	var escalate monitor.Escalator
	if cfg.Telegram.BotToken != "" {
		escalate = func(ctx context.Context, alert models.Alert) error {
			return providers.SendEscalation(ctx, logger, cfg, alert)
		}
	}

	// Monitor and notifier reference each other: the notifier reads the
	// monitor's cached settings, the monitor fires the notifier on arrivals.
	mon := monitor.New(client, st, nil, escalate, logger, cfg)
	notifier := notify.New(logger, mon.SettingsSource, cfg.Audio.Player)
	mon.SetNotifier(notifier)

	var wg sync.WaitGroup
	mon.Start(&wg)

	// Second arrival detector for out-of-band store mutations
	watcher := monitor.NewWatcher(st, notifier, logger)
	watcher.Start(&wg)

	// WebSocket fan-out to console tabs
	hub := api.NewHub(st, logger)
	hub.Start(&wg)

	// Optional Kafka intake from sibling console instances
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(cfg, st, logger, func() int {
			if s, ok := mon.Settings(); ok {
				return s.MaxAlertReminders
			}
			return models.DefaultMaxReminders
		})
		consumer.Start(&wg)
	}

	// Start API server
	handler := api.NewHandler(st, mon, logger)
	router := api.NewRouter(logger, cfg, handler, hub)
	go func() {
		logger.Infof("API server started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	mon.Stop()
	watcher.Stop()
	hub.Stop()
	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()
	logger.Infof("Service stopped")
}
