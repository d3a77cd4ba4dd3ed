package storage

import (
	"context"
	"errors"
	"strings"

	logx "discordmessenger/pkg/logx"
)

type Store interface {
	AppendEvent(ctx context.Context, e EventEntry) error
	// RecentEvents returns up to limit entries, oldest first.
	RecentEvents(ctx context.Context, limit int) ([]EventEntry, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" || driver == "off" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
