package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alerts", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"alerts": [{"id": 1, "job_id": 50, "driver_name": "Alex", "status": "active",
				"pickup_date": "2026-03-14", "pickup_time": "09:30:00",
				"elapsed_minutes": 12, "reminder_count": 1}],
			"active_count": 1, "total_count": 1
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	snap, err := c.GetAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Alerts, 1)
	assert.Equal(t, int64(50), snap.Alerts[0].JobID)
	assert.Equal(t, 1, snap.ActiveCount)
}

func TestGetAlertsFetchError(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.GetAlerts(context.Background())

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "GetAlerts", fe.Op)
}

func TestGetAlertsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "overdue query timed out"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.GetAlerts(context.Background())

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusInternalServerError, be.Status)
	assert.Equal(t, "overdue query timed out", be.Message)
}

func TestGetAlertsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alerts": "not-a-list"`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.GetAlerts(context.Background())

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestAcknowledgeAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/alerts/acknowledge", r.URL.Path)
		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(7), body["alert_id"])
		w.Write([]byte(`{"message": "acknowledged", "alert_id": 7}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	require.NoError(t, c.AcknowledgeAlert(context.Background(), 7))
}

func TestStartTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/50/status/otw", r.URL.Path)
		w.Write([]byte(`{"message": "ok", "job_id": 50, "old_status": "assigned", "new_status": "otw"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	require.NoError(t, c.StartTrip(context.Background(), 50))
}

func TestStartTripRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "job already on the way"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.StartTrip(context.Background(), 50)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusConflict, be.Status)
	assert.Contains(t, be.Message, "already on the way")
}

func TestGetAlertSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/settings/alerts", r.URL.Path)
		w.Write([]byte(`{"enable_audio_notifications": true, "alert_volume": 80, "max_alert_reminders": 5}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	s, err := c.GetAlertSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.EnableAudioNotifications)
	assert.Equal(t, 80, s.AlertVolume)
	assert.Equal(t, 5, s.MaxAlertReminders)
}

func TestGetAlertCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/alerts/count", r.URL.Path)
		w.Write([]byte(`{"active_count": 2, "total_count": 5}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	count, err := c.GetAlertCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count.ActiveCount)
	assert.Equal(t, 5, count.TotalCount)
}
