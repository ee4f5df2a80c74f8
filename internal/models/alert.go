package models

import (
	"fmt"
	"time"
)

// DefaultMaxReminders is used until the first settings snapshot has loaded.
const DefaultMaxReminders = 3

// Alert is the domain shape of one overdue-job alert, independent of the
// backend wire format. ElapsedTime and ReminderCount are authoritative from
// the server; Dismissed is a local visibility flag only.
type Alert struct {
	ID                  int64     `json:"id"`
	JobID               int64     `json:"job_id"`
	DriverName          string    `json:"driver_name"`
	DriverContact       string    `json:"driver_contact"`
	PassengerDetails    string    `json:"passenger_details"`
	PickupTime          time.Time `json:"pickup_time"`
	PickupLocation      string    `json:"pickup_location"`
	DropoffLocation     string    `json:"dropoff_location"`
	ServiceType         string    `json:"service_type"`
	ElapsedTime         int       `json:"elapsed_time"`
	CreatedAt           time.Time `json:"created_at"`
	Dismissed           bool      `json:"dismissed"`
	ReminderCount       int       `json:"reminder_count"`
	MaxRemindersReached bool      `json:"max_reminders_reached"`
}

// Settings mirrors the backend alert settings. Read-only for this service.
type Settings struct {
	EnableAudioNotifications bool `json:"enable_audio_notifications"`
	AlertVolume              int  `json:"alert_volume"`
	MaxAlertReminders        int  `json:"max_alert_reminders"`
}

// WireAlert is one alert as the fleet backend serializes it. Pickup date and
// time arrive as separate fields; status is one of active/dismissed/resolved.
type WireAlert struct {
	ID              int64  `json:"id"`
	JobID           int64  `json:"job_id"`
	DriverName      string `json:"driver_name"`
	DriverMobile    string `json:"driver_mobile"`
	PassengerName   string `json:"passenger_name"`
	PassengerMobile string `json:"passenger_mobile,omitempty"`
	PickupDate      string `json:"pickup_date"`
	PickupTime      string `json:"pickup_time"`
	Status          string `json:"status"`
	ReminderCount   int    `json:"reminder_count"`
	CreatedAt       string `json:"created_at"`
	ElapsedMinutes  int    `json:"elapsed_minutes"`
	ServiceType     string `json:"service_type"`
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
	JobData         string `json:"job_data"`
}

// AlertSnapshot is the body of GET /alerts from the backend.
type AlertSnapshot struct {
	Alerts      []WireAlert `json:"alerts"`
	ActiveCount int         `json:"active_count"`
	TotalCount  int         `json:"total_count"`
}

// AlertCount is the body of GET /alerts/count.
type AlertCount struct {
	ActiveCount int `json:"active_count"`
	TotalCount  int `json:"total_count"`
}

// Normalize converts a wire alert into the domain shape. The pickup timestamp
// is composed from the separate date and time fields; any status other than
// "active" maps to a dismissed alert. maxReminders is the currently cached
// settings threshold.
func Normalize(w WireAlert, maxReminders int) Alert {
	if maxReminders <= 0 {
		maxReminders = DefaultMaxReminders
	}
	passenger := w.PassengerName
	if w.PassengerMobile != "" {
		passenger = fmt.Sprintf("%s (%s)", w.PassengerName, w.PassengerMobile)
	}
	return Alert{
		ID:                  w.ID,
		JobID:               w.JobID,
		DriverName:          w.DriverName,
		DriverContact:       w.DriverMobile,
		PassengerDetails:    passenger,
		PickupTime:          composePickupTime(w.PickupDate, w.PickupTime),
		PickupLocation:      w.PickupLocation,
		DropoffLocation:     w.DropoffLocation,
		ServiceType:         w.ServiceType,
		ElapsedTime:         w.ElapsedMinutes,
		CreatedAt:           parseTimestamp(w.CreatedAt),
		Dismissed:           w.Status != "active",
		ReminderCount:       w.ReminderCount,
		MaxRemindersReached: w.ReminderCount >= maxReminders,
	}
}

// NormalizeAll converts a full wire snapshot.
func NormalizeAll(wire []WireAlert, maxReminders int) []Alert {
	alerts := make([]Alert, 0, len(wire))
	for _, w := range wire {
		alerts = append(alerts, Normalize(w, maxReminders))
	}
	return alerts
}

func composePickupTime(date, clock string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, date+" "+clock); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
