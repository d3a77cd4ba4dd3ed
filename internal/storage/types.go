package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// ErrSQLiteNotBuilt is returned for the sqlite driver unless the binary was
// built with -tags sqlite.
var ErrSQLiteNotBuilt = errors.New("sqlite storage not built: build with -tags sqlite")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file at <path without ext>.events.jsonl
//   - "sqlite": SQLite database file (build tag sqlite)
//
// If Driver is empty, "none" or "off", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// EventEntry is one persisted EventLog entry.
type EventEntry struct {
	At      time.Time `json:"at"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Account string    `json:"account,omitempty"`
}
