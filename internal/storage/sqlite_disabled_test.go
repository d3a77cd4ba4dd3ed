//go:build !sqlite

package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	logx "discordmessenger/pkg/logx"
)

func TestOpenSQLiteWithoutTag(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "audit.db")}, logx.Nop())
	assert.Nil(t, st)
	assert.True(t, errors.Is(err, ErrSQLiteNotBuilt))
}
