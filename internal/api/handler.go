// Package api is the operator HTTP surface: the buttons of a control panel
// plus read-only status, recent events, history and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"

	"discordmessenger/internal/controlpanel"
	"discordmessenger/internal/model"
	"discordmessenger/internal/runtime/supervisor"
	"discordmessenger/internal/storage"
	logx "discordmessenger/pkg/logx"
)

// Panel is what the operator can press and read.
type Panel interface {
	ManualSend()
	RequestScreenshot(pt model.ProcessType)
	HandleScreenshot(pt model.ProcessType, name string) error
	ToggleAutoMode(enabled bool)
	View() controlpanel.View
}

// History reads persisted events.
type History interface {
	RecentEvents(ctx context.Context, limit int) ([]storage.EventEntry, error)
}

// Info describes the running pipeline for GET /api/status.
type Info struct {
	Account        string `json:"account"`
	AccountFound   bool   `json:"account_found"`
	Webhooks       int    `json:"webhooks"`
	CheckerRunning bool   `json:"checker_running"`

	Workers []supervisor.Stats `json:"workers,omitempty"`
}

type Deps struct {
	// Panel resolves the current panel; it may return nil while the
	// pipeline is not wired (e.g. account not found).
	Panel   func() Panel
	Info    func() Info
	History History
	Metrics http.Handler
	// Pprof mounts the runtime profiles under /debug/pprof/.
	Pprof   bool
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type handler struct {
	deps Deps
	log  logx.Logger
}

func NewHandler(deps Deps, log logx.Logger) http.Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &handler{deps: deps, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("POST /api/send", h.withPanel(h.send))
	mux.HandleFunc("POST /api/screenshot", h.withPanel(h.screenshot))
	mux.HandleFunc("GET /api/screenshot/pending", h.withPanel(h.pending))
	mux.HandleFunc("POST /api/screenshot/handled", h.withPanel(h.handled))
	mux.HandleFunc("POST /api/auto", h.withPanel(h.auto))
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/events", h.withPanel(h.events))
	mux.HandleFunc("GET /api/history", h.history)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Pprof {
		mux.HandleFunc("GET /debug/pprof/", hpprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("GET /debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", hpprof.Trace)
	}
	return mux
}

type panelHandler func(w http.ResponseWriter, r *http.Request, p Panel)

func (h *handler) withPanel(fn panelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p Panel
		if h.deps.Panel != nil {
			p = h.deps.Panel()
		}
		if p == nil {
			writeError(w, http.StatusServiceUnavailable, "messenger not running")
			return
		}
		fn(w, r, p)
	}
}

func (h *handler) send(w http.ResponseWriter, _ *http.Request, p Panel) {
	p.ManualSend()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *handler) screenshot(w http.ResponseWriter, r *http.Request, p Panel) {
	pt := model.ParseProcessType(r.URL.Query().Get("process"))
	p.RequestScreenshot(pt)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "process": pt})
}

func (h *handler) pending(w http.ResponseWriter, _ *http.Request, p Panel) {
	v := p.View()
	if v.Pending == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v.Pending)
}

type handledRequest struct {
	Process string `json:"process"`
	Name    string `json:"name"`
}

func (h *handler) handled(w http.ResponseWriter, r *http.Request, p Panel) {
	var req handledRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	pt := model.ParseProcessType(req.Process)
	if err := p.HandleScreenshot(pt, req.Name); err != nil {
		if errors.Is(err, controlpanel.ErrInvalidScreenshotName) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.log.Debug("screenshot reported", logx.String("process", string(pt)), logx.String("name", req.Name))
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *handler) auto(w http.ResponseWriter, r *http.Request, p Panel) {
	enabled, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("enabled")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "enabled must be true or false")
		return
	}
	p.ToggleAutoMode(enabled)
	writeJSON(w, http.StatusOK, map[string]any{"auto_mode": model.AutoModeFromBool(enabled)})
}

type statusResponse struct {
	Info
	AutoMode model.AutoMode `json:"auto_mode,omitempty"`
	Status   model.Status   `json:"status,omitempty"`
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	if h.deps.Info != nil {
		resp.Info = h.deps.Info()
	}
	if h.deps.Panel != nil {
		if p := h.deps.Panel(); p != nil {
			v := p.View()
			resp.AutoMode = v.AutoMode
			resp.Status = v.Status
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) events(w http.ResponseWriter, _ *http.Request, p Panel) {
	writeJSON(w, http.StatusOK, p.View().Recent)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "storage disabled")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := h.deps.History.RecentEvents(r.Context(), limit)
	if err != nil {
		h.log.Warn("history read failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if entries == nil {
		entries = []storage.EventEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
