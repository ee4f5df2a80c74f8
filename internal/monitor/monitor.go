// Package monitor bridges the remote fleet backend into the local alert
// store: it polls alert and settings snapshots on independent cadences,
// detects genuinely new arrivals by id-set diff, fires the audible cue once
// per arrival event, and carries the two user mutations (dismiss, start trip)
// with optimistic local state.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fleet-console/internal/config"
	"fleet-console/internal/logging"
	"fleet-console/internal/metrics"
	"fleet-console/internal/models"
	"fleet-console/internal/store"
)

// Backend is the slice of the fleet backend the monitor consumes.
type Backend interface {
	GetAlerts(ctx context.Context) (models.AlertSnapshot, error)
	GetAlertSettings(ctx context.Context) (models.Settings, error)
	AcknowledgeAlert(ctx context.Context, alertID int64) error
	StartTrip(ctx context.Context, jobID int64) error
}

// AudioNotifier is the best-effort audible cue.
type AudioNotifier interface {
	Notify(ctx context.Context, settingsOverride *models.Settings) error
}

// Escalator dispatches an over-threshold alert to the operations channel.
type Escalator func(ctx context.Context, alert models.Alert) error

// Monitor owns the two polling loops and the user mutations.
type Monitor struct {
	backend  Backend
	store    *store.Store
	notifier AudioNotifier
	escalate Escalator
	logger   *logging.Logger
	cfg      config.Config

	ctx    context.Context
	cancel context.CancelFunc

	// seq numbers every alert poll; the store rejects snapshots whose
	// sequence is at or below the last applied one, so a late out-of-order
	// response can never overwrite a newer snapshot.
	seq atomic.Uint64

	settingsMu     sync.RWMutex
	settings       models.Settings
	settingsLoaded bool

	escalatedMu sync.Mutex
	escalated   map[int64]bool

	errMu     sync.Mutex
	lastErr   string
	lastErrAt time.Time
}

// New constructs a Monitor. notifier may be nil at construction when it
// needs the monitor's cached settings; set it with SetNotifier before Start.
// escalate may be nil when escalation is not configured.
func New(backend Backend, st *store.Store, notifier AudioNotifier, escalate Escalator, logger *logging.Logger, cfg config.Config) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		backend:   backend,
		store:     st,
		notifier:  notifier,
		escalate:  escalate,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		escalated: make(map[int64]bool),
	}
}

// SetNotifier installs the audible notifier. Must be called before Start.
func (m *Monitor) SetNotifier(n AudioNotifier) {
	m.notifier = n
}

// Start launches the alert and settings loops.
func (m *Monitor) Start(wg *sync.WaitGroup) {
	wg.Add(2)
	go m.alertLoop(wg)
	go m.settingsLoop(wg)
}

// Stop cancels both loops. In-flight fetches are dropped, not aborted
// mid-apply.
func (m *Monitor) Stop() {
	m.cancel()
}

func (m *Monitor) alertLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(m.cfg.Poll.AlertInterval)
	defer ticker.Stop()

	m.pollAlerts()
	for {
		select {
		case <-m.ctx.Done():
			m.logger.Infof("Alert poll loop stopped")
			return
		case <-ticker.C:
			m.pollAlerts()
		}
	}
}

func (m *Monitor) settingsLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(m.cfg.Poll.SettingsInterval)
	defer ticker.Stop()

	m.pollSettings()
	for {
		select {
		case <-m.ctx.Done():
			m.logger.Infof("Settings poll loop stopped")
			return
		case <-ticker.C:
			m.pollSettings()
		}
	}
}

// pollAlerts runs one reconcile tick. A failed fetch leaves the store
// untouched; stale-but-present beats empty-but-wrong.
func (m *Monitor) pollAlerts() {
	seq := m.seq.Add(1)

	start := time.Now()
	snap, err := m.backend.GetAlerts(m.ctx)
	metrics.PollLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollsTotal.WithLabelValues("failure").Inc()
		m.recordError(err)
		m.logger.Warnf("Alert poll failed, keeping previous snapshot: %v", err)
		return
	}

	threshold := models.DefaultMaxReminders
	if s, ok := m.Settings(); ok {
		threshold = s.MaxAlertReminders
	}
	normalized := models.NormalizeAll(snap.Alerts, threshold)

	newIDs, applied := m.store.ReplaceSnapshot(seq, normalized, store.OriginPoll)
	if !applied {
		metrics.PollsTotal.WithLabelValues("stale").Inc()
		m.logger.Debugf("Dropped out-of-order poll response (seq %d)", seq)
		return
	}
	metrics.PollsTotal.WithLabelValues("success").Inc()

	if len(newIDs) > 0 && m.notifier != nil {
		// One batch notification per arrival event, not one per id.
		m.logger.Infof("%d new alert(s) arrived: %v", len(newIDs), newIDs)
		_ = m.notifier.Notify(m.ctx, nil)
	}

	m.checkEscalations(normalized)
}

func (m *Monitor) pollSettings() {
	s, err := m.backend.GetAlertSettings(m.ctx)
	if err != nil {
		metrics.SettingsPollsTotal.WithLabelValues("failure").Inc()
		m.recordError(err)
		m.logger.Warnf("Settings poll failed, keeping cached settings: %v", err)
		return
	}
	metrics.SettingsPollsTotal.WithLabelValues("success").Inc()

	m.settingsMu.Lock()
	m.settings = s
	m.settingsLoaded = true
	m.settingsMu.Unlock()

	// Threshold changes re-derive the reached flag on known alerts without
	// counting as new arrivals.
	m.store.ApplyReminderThreshold(s.MaxAlertReminders)
}

// Settings returns the cached settings snapshot and whether one has loaded.
func (m *Monitor) Settings() (models.Settings, bool) {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.settings, m.settingsLoaded
}

// SettingsSource adapts the cached settings for the notifier.
func (m *Monitor) SettingsSource(ctx context.Context) (models.Settings, error) {
	if s, ok := m.Settings(); ok {
		return s, nil
	}
	return models.Settings{}, fmt.Errorf("settings not loaded yet")
}

// Dismiss applies the user's dismissal optimistically, then acknowledges it
// on the backend. A failed acknowledgment leaves the local dismissal in
// place; the next successful poll reconciles, and the error is surfaced for
// manual retry.
func (m *Monitor) Dismiss(ctx context.Context, alertID int64) error {
	m.store.Dismiss(alertID, store.OriginLocal)
	if err := m.backend.AcknowledgeAlert(ctx, alertID); err != nil {
		m.recordError(err)
		m.logger.Warnf("Acknowledge failed for alert %d, local dismissal kept: %v", alertID, err)
		return fmt.Errorf("acknowledge alert %d: %w", alertID, err)
	}
	m.logger.Infof("Alert %d acknowledged", alertID)
	return nil
}

// StartTrip transitions the job to on-the-way on the backend, then dismisses
// the matching alert locally. The store is untouched when the server call
// fails.
func (m *Monitor) StartTrip(ctx context.Context, jobID int64) error {
	if err := m.backend.StartTrip(ctx, jobID); err != nil {
		m.recordError(err)
		return fmt.Errorf("start trip for job %d: %w", jobID, err)
	}
	m.store.DismissByJob(jobID, store.OriginLocal)
	m.logger.Infof("Job %d on the way, alert dismissed", jobID)
	return nil
}

// LastError reports the most recent poll or mutation failure for banner
// display.
func (m *Monitor) LastError() (string, time.Time) {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr, m.lastErrAt
}

func (m *Monitor) recordError(err error) {
	m.errMu.Lock()
	m.lastErr = err.Error()
	m.lastErrAt = time.Now()
	m.errMu.Unlock()
}

// checkEscalations dispatches alerts that hit the reminder ceiling, at most
// once per alert id, and forgets ids the backend has resolved.
func (m *Monitor) checkEscalations(alerts []models.Alert) {
	if m.escalate == nil {
		return
	}

	m.escalatedMu.Lock()
	present := make(map[int64]bool, len(alerts))
	var due []models.Alert
	for _, a := range alerts {
		present[a.ID] = true
		if a.MaxRemindersReached && !a.Dismissed && !m.escalated[a.ID] {
			m.escalated[a.ID] = true
			due = append(due, a)
		}
	}
	for id := range m.escalated {
		if !present[id] {
			delete(m.escalated, id)
		}
	}
	m.escalatedMu.Unlock()

	for _, a := range due {
		go func(alert models.Alert) {
			if err := m.escalate(m.ctx, alert); err != nil {
				metrics.EscalationsTotal.WithLabelValues("failure").Inc()
				m.logger.Errorf("Escalation failed for job %d: %v", alert.JobID, err)
				return
			}
			metrics.EscalationsTotal.WithLabelValues("success").Inc()
		}(a)
	}
}
