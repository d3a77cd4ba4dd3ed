//go:build !sqlite

package storage

import (
	"fmt"

	logx "discordmessenger/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	log.Warn("sqlite audit trail requested in a binary built without it", logx.String("path", cfg.Path))
	return nil, fmt.Errorf("storage %s: %w", cfg.Path, ErrSQLiteNotBuilt)
}
