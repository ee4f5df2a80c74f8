// Package store holds the single authoritative in-memory snapshot of overdue
// alerts the console currently believes are active. All mutation funnels
// through the operations here; readers never observe a half-updated list.
package store

import (
	"sync"

	"fleet-console/internal/metrics"
	"fleet-console/internal/models"
)

// Origin tags where a store mutation came from.
type Origin string

const (
	// OriginPoll marks mutations applied by the poll-and-reconcile loop.
	OriginPoll Origin = "poll"
	// OriginLocal marks user-triggered mutations from this console instance.
	OriginLocal Origin = "local"
	// OriginExternal marks mutations applied from out-of-band events
	// (another console instance surfacing through Kafka).
	OriginExternal Origin = "external"
	// OriginClear marks explicit resets.
	OriginClear Origin = "clear"
)

// Event is published to subscribers after every effective mutation.
type Event struct {
	Seq    uint64         `json:"seq"`
	Origin Origin         `json:"origin"`
	NewIDs []int64        `json:"new_ids,omitempty"`
	Alerts []models.Alert `json:"alerts"`
	Unread int            `json:"unread_count"`
}

// Store is the shared alert state. Safe for concurrent use; every operation
// completes under one lock acquisition and never blocks on I/O.
type Store struct {
	mu          sync.Mutex
	alerts      []models.Alert
	unread      int
	lastApplied uint64
	subs        map[int]chan Event
	nextSub     int
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: make(map[int]chan Event)}
}

// Alerts returns a copy of the current alert list.
func (s *Store) Alerts() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// UnreadCount returns the number of non-dismissed alerts.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// IDSet returns the identity set of the current alert list.
func (s *Store) IDSet() map[int64]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[int64]struct{}, len(s.alerts))
	for _, a := range s.alerts {
		ids[a.ID] = struct{}{}
	}
	return ids
}

// LastApplied returns the sequence number of the last accepted snapshot.
func (s *Store) LastApplied() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastApplied
}

// Dismiss marks the alert dismissed if present. Dismissing an absent or
// already-dismissed id is a no-op, not an error.
func (s *Store) Dismiss(alertID int64, origin Origin) bool {
	s.mu.Lock()
	for i := range s.alerts {
		if s.alerts[i].ID != alertID {
			continue
		}
		if s.alerts[i].Dismissed {
			s.mu.Unlock()
			return false
		}
		s.alerts[i].Dismissed = true
		if s.unread > 0 {
			s.unread--
		}
		ev := s.snapshotEventLocked(origin, nil)
		s.mu.Unlock()
		s.publish(ev)
		return true
	}
	s.mu.Unlock()
	return false
}

// DismissByJob dismisses the alert concerning the given job, if any.
func (s *Store) DismissByJob(jobID int64, origin Origin) bool {
	s.mu.Lock()
	var alertID int64
	found := false
	for i := range s.alerts {
		if s.alerts[i].JobID == jobID && !s.alerts[i].Dismissed {
			alertID = s.alerts[i].ID
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return false
	}
	return s.Dismiss(alertID, origin)
}

// ClearAll empties the store. Used for explicit resets (logout), never as
// part of reconciliation.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.alerts = nil
	s.unread = 0
	ev := s.snapshotEventLocked(OriginClear, nil)
	s.mu.Unlock()
	s.publish(ev)
}

// ReplaceSnapshot installs a new authoritative snapshot. Snapshots carry a
// monotonically increasing sequence number; one at or below the last applied
// sequence is a late out-of-order response and is discarded. A snapshot whose
// content is identical to the current list advances the sequence but changes
// nothing else. Returns the newly appeared ids and whether the snapshot was
// accepted.
func (s *Store) ReplaceSnapshot(seq uint64, alerts []models.Alert, origin Origin) ([]int64, bool) {
	s.mu.Lock()
	if seq <= s.lastApplied {
		s.mu.Unlock()
		return nil, false
	}
	s.lastApplied = seq

	prior := make(map[int64]struct{}, len(s.alerts))
	for _, a := range s.alerts {
		prior[a.ID] = struct{}{}
	}
	var newIDs []int64
	for _, a := range alerts {
		if _, ok := prior[a.ID]; !ok {
			newIDs = append(newIDs, a.ID)
		}
	}

	if snapshotEqual(s.alerts, alerts) {
		s.mu.Unlock()
		return nil, true
	}

	s.alerts = make([]models.Alert, len(alerts))
	copy(s.alerts, alerts)
	s.unread = 0
	for _, a := range s.alerts {
		if !a.Dismissed {
			s.unread++
		}
	}
	ev := s.snapshotEventLocked(origin, newIDs)
	s.mu.Unlock()
	s.publish(ev)
	return newIDs, true
}

// Add inserts one alert arriving outside the poll loop, or refreshes it in
// place when the id is already known. Returns true when the id is new.
func (s *Store) Add(alert models.Alert, origin Origin) bool {
	s.mu.Lock()
	for i := range s.alerts {
		if s.alerts[i].ID != alert.ID {
			continue
		}
		wasDismissed := s.alerts[i].Dismissed
		s.alerts[i] = alert
		if wasDismissed && !alert.Dismissed {
			s.unread++
		} else if !wasDismissed && alert.Dismissed && s.unread > 0 {
			s.unread--
		}
		ev := s.snapshotEventLocked(origin, nil)
		s.mu.Unlock()
		s.publish(ev)
		return false
	}
	s.alerts = append(s.alerts, alert)
	if !alert.Dismissed {
		s.unread++
	}
	ev := s.snapshotEventLocked(origin, []int64{alert.ID})
	s.mu.Unlock()
	s.publish(ev)
	return true
}

// ApplyReminderThreshold recomputes MaxRemindersReached for already-known
// alerts after a settings refresh. Flag changes alone never count as new
// arrivals.
func (s *Store) ApplyReminderThreshold(maxReminders int) {
	if maxReminders <= 0 {
		maxReminders = models.DefaultMaxReminders
	}
	s.mu.Lock()
	changed := false
	for i := range s.alerts {
		reached := s.alerts[i].ReminderCount >= maxReminders
		if s.alerts[i].MaxRemindersReached != reached {
			s.alerts[i].MaxRemindersReached = reached
			changed = true
		}
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	ev := s.snapshotEventLocked(OriginPoll, nil)
	s.mu.Unlock()
	s.publish(ev)
}

// Subscribe registers an event channel. The returned func unsubscribes.
// Slow subscribers drop events rather than block mutations.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) snapshotEventLocked(origin Origin, newIDs []int64) Event {
	alerts := make([]models.Alert, len(s.alerts))
	copy(alerts, s.alerts)
	metrics.AlertsActive.Set(float64(len(s.alerts)))
	metrics.AlertsUnread.Set(float64(s.unread))
	return Event{
		Seq:    s.lastApplied,
		Origin: origin,
		NewIDs: newIDs,
		Alerts: alerts,
		Unread: s.unread,
	}
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func snapshotEqual(a, b []models.Alert) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
