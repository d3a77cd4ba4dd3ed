package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotYAML = `
accounts:
  - name: Sim101
    positions:
      - instrument: ES
        quantity: 2
        average_price: 4500.256
        market_position: Long
    orders:
      - instrument: ES
        quantity: 1
        type: StopMarket
        action: Sell
        state: Working
        stop_price: 4490
  - name: Other
`

func writeSnapshot(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "account.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOpenFileAccountSelectsByName(t *testing.T) {
	path := writeSnapshot(t, snapshotYAML)

	acc, err := OpenFileAccount(path, "Sim101", logxNop())
	require.NoError(t, err)

	require.Len(t, acc.Positions(), 1)
	assert.Equal(t, "ES", acc.Positions()[0].Instrument)
	require.Len(t, acc.Orders(), 1)
	assert.Equal(t, OrderStopMarket, acc.Orders()[0].Type)
	assert.Equal(t, OrderWorking, acc.Orders()[0].State)
}

func TestOpenFileAccountMissing(t *testing.T) {
	path := writeSnapshot(t, snapshotYAML)

	_, err := OpenFileAccount(path, "Live1", logxNop())
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestOpenFileAccountAcceptsJSON(t *testing.T) {
	path := writeSnapshot(t, `{"accounts":[{"name":"A","orders":[{"instrument":"NQ","quantity":3,"type":"Limit","action":"Buy","state":"Accepted","limit_price":15000.5}]}]}`)

	acc, err := OpenFileAccount(path, "A", logxNop())
	require.NoError(t, err)
	require.Len(t, acc.Orders(), 1)
	assert.Equal(t, 15000.5, acc.Orders()[0].LimitPrice)
}

func TestWatchReloadsAndNotifies(t *testing.T) {
	path := writeSnapshot(t, snapshotYAML)
	acc, err := OpenFileAccount(path, "Sim101", logxNop())
	require.NoError(t, err)
	acc.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() { done <- acc.Watch(ctx, func() { changed <- struct{}{} }) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("accounts:\n  - name: Sim101\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification")
	}
	assert.Empty(t, acc.Positions())

	cancel()
	assert.NoError(t, <-done)
}

func TestOrderClassification(t *testing.T) {
	assert.True(t, OrderMIT.StopFamily())
	assert.True(t, OrderStopLimit.StopFamily())
	assert.False(t, OrderLimit.StopFamily())
	assert.True(t, OrderAccepted.Live())
	assert.False(t, OrderFilled.Live())
}
