package delivery

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discordmessenger/internal/controlpanel"
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/model"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

type received struct {
	payload  string
	fileName string
	fileType string
	file     []byte
}

type endpoint struct {
	srv  *httptest.Server
	hits atomic.Int32
	mu   sync.Mutex
	reqs []received
}

func newEndpoint(t *testing.T, status int) *endpoint {
	t.Helper()
	ep := &endpoint{}
	ep.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep.hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var rec received
		if v := r.MultipartForm.Value["payload_json"]; len(v) > 0 {
			rec.payload = v[0]
		}
		if f, h, err := r.FormFile("file"); err == nil {
			rec.fileName = h.Filename
			rec.fileType = h.Header.Get("Content-Type")
			rec.file, _ = io.ReadAll(f)
			f.Close()
		}
		ep.mu.Lock()
		ep.reqs = append(ep.reqs, rec)
		ep.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ep.srv.Close)
	return ep
}

func (ep *endpoint) last() received {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.reqs[len(ep.reqs)-1]
}

type harness struct {
	svc      *Service
	dir      string
	trading  *tradingstatus.Events
	panel    *controlpanel.Events
	store    *eventlog.Store
	outcomes chan Outcome

	mu      sync.Mutex
	printed []string
}

func newHarness(t *testing.T, urls []string, tweak func(*Config)) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir(), outcomes: make(chan Outcome, 8)}
	bus := eventbus.New(func(s string) {
		h.mu.Lock()
		h.printed = append(h.printed, s)
		h.mu.Unlock()
	})
	h.trading = tradingstatus.NewEvents(bus)
	h.panel = controlpanel.NewEvents(bus)
	logs := eventlog.NewEvents(bus)
	h.store = eventlog.NewStore()
	h.store.Attach(logs)

	cfg := Config{
		URLs:         urls,
		Dir:          h.dir,
		Color:        0x1E90FF,
		SettleDelay:  20 * time.Millisecond,
		PollAttempts: 5,
		PollInterval: 20 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	h.svc = New(cfg, Deps{Trading: h.trading, Panel: h.panel, Logs: logs, Bus: bus}, logx.Nop(),
		WithObserver(func(o Outcome) { h.outcomes <- o }))
	h.svc.Attach()
	t.Cleanup(h.svc.Close)
	return h
}

func (h *harness) writeShot(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(p, []byte("png-bytes"), 0o644))
	return p
}

func (h *harness) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case o := <-h.outcomes:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery outcome")
		return Outcome{}
	}
}

func (h *harness) lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.printed...)
}

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Positions: []model.Position{{Instrument: "ES", Quantity: 1, AveragePrice: decimal.RequireFromString("4500.25"), MarketPosition: "Long"}},
	}
}

func TestAutoCycleSendsEmbedAndScreenshot(t *testing.T) {
	a := newEndpoint(t, http.StatusOK)
	b := newEndpoint(t, http.StatusNoContent)
	h := newHarness(t, []string{a.srv.URL, b.srv.URL}, nil)

	requested := make(chan model.ProcessType, 1)
	h.panel.ScreenshotRequested.SubscribeFunc(func(pt model.ProcessType) { requested <- pt })

	h.trading.OrderEntryProcessed.Publish(sampleSnapshot())
	select {
	case pt := <-requested:
		assert.Equal(t, model.ProcessAuto, pt)
	case <-time.After(time.Second):
		t.Fatal("screenshot never requested")
	}

	shot := h.writeShot(t, "auto.png")
	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessAuto, Name: "auto.png"})

	out := h.wait(t)
	require.NoError(t, out.Err)
	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, LabelTradingStatus, out.Label)
	assert.NotEmpty(t, out.Cycle)
	assert.EqualValues(t, 1, a.hits.Load())
	assert.EqualValues(t, 1, b.hits.Load())

	got := a.last()
	assert.Equal(t, "auto.png", got.fileName)
	assert.Equal(t, "application/octet-stream", got.fileType)
	assert.Equal(t, []byte("png-bytes"), got.file)
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(got.payload), &p))
	require.Len(t, p.Embeds, 1)
	assert.Equal(t, "Trading Status", p.Embeds[0].Title)
	assert.Equal(t, 0x1E90FF, p.Embeds[0].Color)

	assert.NoFileExists(t, shot)
	embed, path := h.svc.Pending()
	assert.Nil(t, embed)
	assert.Empty(t, path)

	require.Eventually(t, func() bool { return h.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	entry := h.store.Snapshot()[0]
	assert.Equal(t, model.StatusSuccess, entry.Status)
	assert.Equal(t, "Trading Status Sent", entry.Message)
}

func TestManualScreenshotSendsFileOnly(t *testing.T) {
	a := newEndpoint(t, http.StatusOK)
	h := newHarness(t, []string{a.srv.URL}, func(c *Config) { c.SettleDelay = time.Hour })

	h.trading.OrderEntryProcessed.Publish(sampleSnapshot())
	h.writeShot(t, "manual.png")
	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessManual, Name: "manual.png"})

	out := h.wait(t)
	require.NoError(t, out.Err)
	assert.Equal(t, LabelScreenshot, out.Label)
	assert.Empty(t, a.last().payload)
	assert.Equal(t, "manual.png", a.last().fileName)

	// The pending status embed survives a manual screenshot.
	embed, path := h.svc.Pending()
	assert.NotNil(t, embed)
	assert.Empty(t, path)
}

func TestDeliveryShortCircuitsOnFailure(t *testing.T) {
	a := newEndpoint(t, http.StatusOK)
	b := newEndpoint(t, http.StatusInternalServerError)
	c := newEndpoint(t, http.StatusOK)
	h := newHarness(t, []string{a.srv.URL, b.srv.URL, c.srv.URL}, nil)

	shot := h.writeShot(t, "x.png")
	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessManual, Name: "x.png"})

	out := h.wait(t)
	assert.Equal(t, model.StatusFailed, out.Status)
	assert.ErrorIs(t, out.Err, ErrEndpointStatus)
	assert.EqualValues(t, 1, a.hits.Load())
	assert.EqualValues(t, 1, b.hits.Load())
	assert.EqualValues(t, 0, c.hits.Load())
	assert.FileExists(t, shot)
	assert.Equal(t, []string{"HTTP failed: 500 Internal Server Error"}, h.lines())
}

func TestScreenshotAppearingLateIsSent(t *testing.T) {
	a := newEndpoint(t, http.StatusOK)
	h := newHarness(t, []string{a.srv.URL}, func(c *Config) { c.PollInterval = 40 * time.Millisecond })

	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessManual, Name: "late.png"})
	// Lands between the second and third poll.
	time.Sleep(60 * time.Millisecond)
	h.writeShot(t, "late.png")

	out := h.wait(t)
	require.NoError(t, out.Err)
	assert.EqualValues(t, 1, a.hits.Load())
}

func TestMissingScreenshotFailsWithoutHTTP(t *testing.T) {
	a := newEndpoint(t, http.StatusOK)
	h := newHarness(t, []string{a.srv.URL}, func(c *Config) { c.PollInterval = 5 * time.Millisecond })

	start := time.Now()
	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessManual, Name: "never.png"})

	out := h.wait(t)
	assert.ErrorIs(t, out.Err, ErrScreenshotMissing)
	assert.Equal(t, model.StatusFailed, out.Status)
	assert.EqualValues(t, 0, a.hits.Load())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.Eventually(t, func() bool { return h.store.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Screenshot Sent", h.store.Snapshot()[0].Message)
}

func TestNewerSnapshotCancelsPendingRequest(t *testing.T) {
	h := newHarness(t, nil, func(c *Config) { c.SettleDelay = 40 * time.Millisecond })
	var requests atomic.Int32
	h.panel.ScreenshotRequested.SubscribeFunc(func(model.ProcessType) { requests.Add(1) })

	h.trading.OrderEntryProcessed.Publish(model.Snapshot{})
	time.Sleep(10 * time.Millisecond)
	h.trading.OrderEntryProcessed.Publish(sampleSnapshot())

	time.Sleep(120 * time.Millisecond)
	assert.EqualValues(t, 1, requests.Load())
	embed, _ := h.svc.Pending()
	require.NotNil(t, embed)
	assert.Equal(t, "**ES Positions**", embed.Fields[0].Name)
}

func TestNoWebhooksStillSucceeds(t *testing.T) {
	h := newHarness(t, nil, nil)
	shot := h.writeShot(t, "solo.png")
	h.panel.ScreenshotHandled.Publish(controlpanel.ScreenshotResult{Process: model.ProcessManual, Name: "solo.png"})

	out := h.wait(t)
	require.NoError(t, out.Err)
	assert.NoFileExists(t, shot)
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.svc.Close()
	assert.NotPanics(t, h.svc.Close)
	assert.Equal(t, 0, h.trading.OrderEntryProcessed.Len())
}

func TestMultipartBodyParts(t *testing.T) {
	body, ct, err := multipartBody(nil, "a.png", []byte{1, 2})
	require.NoError(t, err)
	assert.Contains(t, ct, "multipart/form-data; boundary=")
	assert.NotContains(t, string(body), "payload_json")
	assert.Contains(t, string(body), `name="file"; filename="a.png"`)
}
