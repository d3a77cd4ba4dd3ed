package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discordmessenger/internal/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveDelivery(t *testing.T) {
	m := New()
	m.ObserveDelivery("Trading Status Sent", model.StatusSuccess, 2048, 300*time.Millisecond)
	m.ObserveDelivery("Screenshot Sent", model.StatusFailed, 100, time.Second)

	out := scrape(t, m)
	assert.Contains(t, out, `discordmessenger_deliveries_total{label="Trading Status Sent",status="Success"} 1`)
	assert.Contains(t, out, `discordmessenger_deliveries_total{label="Screenshot Sent",status="Failed"} 1`)
	assert.Contains(t, out, "discordmessenger_delivered_screenshot_bytes_total 2048")
}

func TestObserveProbeSetsCurrentStatus(t *testing.T) {
	m := New()
	m.ObserveProbe(model.StatusSuccess, time.Millisecond)
	m.ObserveProbe(model.StatusPartialSuccess, time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `discordmessenger_webhook_status{status="Success"} 0`)
	assert.Contains(t, out, `discordmessenger_webhook_status{status="PartialSuccess"} 1`)
	assert.Contains(t, out, `discordmessenger_health_probes_total{status="Success"} 1`)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ObserveAggregation(true)
	m.ObserveFault("trading.order_entry_processed")
	m.SetAutoMode(model.AutoEnabled)

	out := scrape(t, m)
	assert.Contains(t, out, `discordmessenger_aggregations_total{trigger="manual"} 1`)
	assert.Contains(t, out, `discordmessenger_event_handler_faults_total{event="trading.order_entry_processed"} 1`)
	assert.Contains(t, out, "discordmessenger_auto_mode_enabled 1")
	assert.Contains(t, out, "go_goroutines")
}
