// Package kafka consumes alert events published by sibling console instances
// so one operator's dismissal, or an alert raised while this instance's poll
// is still in flight, lands in the store without waiting for the next tick.
package kafka

import (
	"context"
	"encoding/json"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"fleet-console/internal/config"
	"fleet-console/internal/logging"
	"fleet-console/internal/models"
	"fleet-console/internal/store"
)

const (
	eventAlertRaised    = "alert.raised"
	eventAlertDismissed = "alert.dismissed"
)

// event is one out-of-band alert message on the fleet topic.
type event struct {
	Event   string            `json:"event"`
	AlertID int64             `json:"alert_id"`
	Alert   *models.WireAlert `json:"alert,omitempty"`
}

// Consumer applies alert events to the store with an external origin.
type Consumer struct {
	reader    *kafkago.Reader
	store     *store.Store
	logger    *logging.Logger
	threshold func() int
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewConsumer builds a Consumer. threshold supplies the current reminder
// ceiling for normalizing raised alerts.
func NewConsumer(cfg config.Config, st *store.Store, logger *logging.Logger, threshold func() int) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: []string{cfg.Kafka.Broker},
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.Topic,
	})
	return &Consumer{
		reader:    reader,
		store:     st,
		logger:    logger,
		threshold: threshold,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start reads events until Close is called.
func (c *Consumer) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.ReadMessage(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}
			c.apply(ev)
		}
	}()
}

func (c *Consumer) apply(ev event) {
	switch ev.Event {
	case eventAlertRaised:
		if ev.Alert == nil {
			c.logger.Errorf("Invalid message: %s without alert body", eventAlertRaised)
			return
		}
		alert := models.Normalize(*ev.Alert, c.threshold())
		if c.store.Add(alert, store.OriginExternal) {
			c.logger.Infof("Out-of-band alert %d raised for job %d", alert.ID, alert.JobID)
		}
	case eventAlertDismissed:
		if ev.AlertID == 0 {
			c.logger.Errorf("Invalid message: %s without alert_id", eventAlertDismissed)
			return
		}
		if c.store.Dismiss(ev.AlertID, store.OriginExternal) {
			c.logger.Infof("Out-of-band dismissal applied for alert %d", ev.AlertID)
		}
	default:
		c.logger.Debugf("Ignoring event %q", ev.Event)
	}
}

// Close stops the read loop and releases the reader.
func (c *Consumer) Close() {
	c.cancel()
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
