package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-console/internal/config"
	"fleet-console/internal/logging"
	"fleet-console/internal/models"
	"fleet-console/internal/store"
)

type fakeBackend struct {
	mu          sync.Mutex
	snapshot    models.AlertSnapshot
	snapErr     error
	settings    models.Settings
	settingsErr error
	ackErr      error
	tripErr     error
	acked       []int64
	trips       []int64
}

func (f *fakeBackend) GetAlerts(ctx context.Context) (models.AlertSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapErr != nil {
		return models.AlertSnapshot{}, f.snapErr
	}
	return f.snapshot, nil
}

func (f *fakeBackend) GetAlertSettings(ctx context.Context) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settingsErr != nil {
		return models.Settings{}, f.settingsErr
	}
	return f.settings, nil
}

func (f *fakeBackend) AcknowledgeAlert(ctx context.Context, alertID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, alertID)
	return nil
}

func (f *fakeBackend) StartTrip(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tripErr != nil {
		return f.tripErr
	}
	f.trips = append(f.trips, jobID)
	return nil
}

func (f *fakeBackend) setSnapshot(alerts ...models.WireAlert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = models.AlertSnapshot{Alerts: alerts, ActiveCount: len(alerts), TotalCount: len(alerts)}
	f.snapErr = nil
}

type fakeNotifier struct {
	calls atomic.Int32
}

func (f *fakeNotifier) Notify(ctx context.Context, override *models.Settings) error {
	f.calls.Add(1)
	return nil
}

func wire(id, jobID int64, reminders int) models.WireAlert {
	return models.WireAlert{
		ID:             id,
		JobID:          jobID,
		DriverName:     "Alex",
		PickupDate:     "2026-03-14",
		PickupTime:     "09:30:00",
		Status:         "active",
		ReminderCount:  reminders,
		ElapsedMinutes: 12,
	}
}

func newTestMonitor(t *testing.T, fb *fakeBackend, escalate Escalator) (*Monitor, *store.Store, *fakeNotifier) {
	t.Helper()
	logger, err := logging.New(t.TempDir(), "error")
	require.NoError(t, err)

	var cfg config.Config
	cfg.Poll.AlertInterval = 30 * time.Second
	cfg.Poll.SettingsInterval = 60 * time.Second

	st := store.New()
	notifier := &fakeNotifier{}
	m := New(fb, st, notifier, escalate, logger, cfg)
	t.Cleanup(m.Stop)
	return m, st, notifier
}

func TestFirstPollNotifiesOnce(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, notifier := newTestMonitor(t, fb, nil)

	m.pollAlerts()

	require.Len(t, st.Alerts(), 1)
	assert.Equal(t, 1, st.UnreadCount())
	assert.Equal(t, int32(1), notifier.calls.Load())

	// Same snapshot again: nothing new, no second notification.
	m.pollAlerts()
	assert.Equal(t, int32(1), notifier.calls.Load())
}

func TestArrivalBatchIsOneNotification(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 0), wire(2, 51, 0))
	m, _, notifier := newTestMonitor(t, fb, nil)

	m.pollAlerts()
	assert.Equal(t, int32(1), notifier.calls.Load())

	// Two more arrive in one poll: still a single batch notification.
	fb.setSnapshot(wire(1, 50, 0), wire(2, 51, 0), wire(3, 52, 0), wire(4, 53, 0))
	m.pollAlerts()
	assert.Equal(t, int32(2), notifier.calls.Load())
}

func TestPollFailureKeepsPreviousSnapshot(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)

	m.pollAlerts()
	require.Len(t, st.Alerts(), 1)

	fb.mu.Lock()
	fb.snapErr = fmt.Errorf("connection refused")
	fb.mu.Unlock()

	m.pollAlerts()
	assert.Len(t, st.Alerts(), 1, "stale-but-present beats empty-but-wrong")
	lastErr, _ := m.LastError()
	assert.Contains(t, lastErr, "connection refused")
}

func TestDismissedAlertNotRenotifiedByPoll(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 1), wire(2, 51, 1))
	m, st, notifier := newTestMonitor(t, fb, nil)

	m.pollAlerts()
	require.NoError(t, m.Dismiss(context.Background(), 2))

	// Backend still reports 2 as active; it is not a new id.
	m.pollAlerts()
	assert.Equal(t, int32(1), notifier.calls.Load())
	assert.Len(t, st.Alerts(), 2)
}

func TestDismissOptimisticWithAck(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)
	m.pollAlerts()

	require.NoError(t, m.Dismiss(context.Background(), 1))
	assert.True(t, st.Alerts()[0].Dismissed)
	assert.Equal(t, 0, st.UnreadCount())
	assert.Equal(t, []int64{1}, fb.acked)
}

func TestDismissKeepsLocalStateOnAckFailure(t *testing.T) {
	fb := &fakeBackend{ackErr: fmt.Errorf("backend down")}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)
	m.pollAlerts()

	err := m.Dismiss(context.Background(), 1)
	require.Error(t, err)
	// The optimistic dismissal is not rolled back; the next successful
	// poll reconciles.
	assert.True(t, st.Alerts()[0].Dismissed)
}

func TestStartTripDismissesMatchingAlert(t *testing.T) {
	fb := &fakeBackend{}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)
	m.pollAlerts()

	require.NoError(t, m.StartTrip(context.Background(), 50))
	assert.True(t, st.Alerts()[0].Dismissed)
	assert.Equal(t, 0, st.UnreadCount())
	assert.Equal(t, []int64{50}, fb.trips)
}

func TestStartTripFailureLeavesStoreUntouched(t *testing.T) {
	fb := &fakeBackend{tripErr: fmt.Errorf("job already on the way")}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)
	m.pollAlerts()

	err := m.StartTrip(context.Background(), 50)
	require.Error(t, err)
	assert.False(t, st.Alerts()[0].Dismissed)
	assert.Equal(t, 1, st.UnreadCount())
}

func TestSettingsPollUpdatesThreshold(t *testing.T) {
	fb := &fakeBackend{settings: models.Settings{
		EnableAudioNotifications: true,
		AlertVolume:              60,
		MaxAlertReminders:        1,
	}}
	fb.setSnapshot(wire(1, 50, 1))
	m, st, _ := newTestMonitor(t, fb, nil)

	// Before settings load, the default threshold of 3 applies.
	m.pollAlerts()
	assert.False(t, st.Alerts()[0].MaxRemindersReached)

	m.pollSettings()
	s, ok := m.Settings()
	require.True(t, ok)
	assert.Equal(t, 1, s.MaxAlertReminders)
	assert.True(t, st.Alerts()[0].MaxRemindersReached)
}

func TestSettingsSourceBeforeLoad(t *testing.T) {
	fb := &fakeBackend{}
	m, _, _ := newTestMonitor(t, fb, nil)

	_, err := m.SettingsSource(context.Background())
	assert.Error(t, err)

	m.pollSettings()
	_, err = m.SettingsSource(context.Background())
	assert.NoError(t, err)
}

func TestEscalationFiresOncePerAlert(t *testing.T) {
	escalated := make(chan int64, 4)
	escalate := func(ctx context.Context, alert models.Alert) error {
		escalated <- alert.JobID
		return nil
	}

	fb := &fakeBackend{settings: models.Settings{MaxAlertReminders: 1, EnableAudioNotifications: true}}
	fb.setSnapshot(wire(1, 50, 2))
	m, _, _ := newTestMonitor(t, fb, escalate)
	m.pollSettings()

	m.pollAlerts()
	select {
	case jobID := <-escalated:
		assert.Equal(t, int64(50), jobID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an escalation")
	}

	// The alert stays over threshold on the next poll, but escalation
	// already happened for this id.
	fb.setSnapshot(wire(1, 50, 3))
	m.pollAlerts()
	select {
	case jobID := <-escalated:
		t.Fatalf("unexpected second escalation for job %d", jobID)
	case <-time.After(100 * time.Millisecond):
	}
}
