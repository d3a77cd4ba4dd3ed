// Package eventlog keeps the most recent status events for operator display.
//
// The store is a bounded FIFO: once it holds MaxEntries entries, recording a
// new one evicts the oldest. Nothing is persisted; the store lives as long as
// the process.
package eventlog

import (
	"sync"
	"time"

	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/model"
)

// MaxEntries is the store capacity.
const MaxEntries = 5

// Events carries entries into the store and snapshots out of it.
type Events struct {
	SendRecentEvent       *eventbus.Event[model.EventLog]
	RecentEventsProcessed *eventbus.Event[[]model.EventLog]
}

func NewEvents(bus *eventbus.Bus) *Events {
	return &Events{
		SendRecentEvent:       eventbus.NewEvent[model.EventLog](bus, "eventlog.send_recent"),
		RecentEventsProcessed: eventbus.NewEvent[[]model.EventLog](bus, "eventlog.recent_processed"),
	}
}

// Report is a small helper for services that only need to emit entries.
func (e *Events) Report(status model.Status, message string) {
	if e == nil {
		return
	}
	e.SendRecentEvent.Publish(model.EventLog{Status: status, Message: message})
}

// Store is the bounded recent-event buffer.
type Store struct {
	mu      sync.Mutex
	entries []model.EventLog
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{entries: make([]model.EventLog, 0, MaxEntries), now: time.Now}
}

// Record appends entry, evicting the oldest first when full.
// A zero At is stamped with the insertion time.
func (s *Store) Record(entry model.EventLog) {
	if entry.At.IsZero() {
		entry.At = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= MaxEntries {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, entry)
}

// Snapshot returns a copy of the current entries, newest last.
func (s *Store) Snapshot() []model.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.EventLog(nil), s.entries...)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Attach subscribes the store to ev.SendRecentEvent. After every record the
// fresh snapshot is published on ev.RecentEventsProcessed.
func (s *Store) Attach(ev *Events) eventbus.Subscription {
	return ev.SendRecentEvent.SubscribeFunc(func(entry model.EventLog) {
		s.Record(entry)
		ev.RecentEventsProcessed.Publish(s.Snapshot())
	})
}
