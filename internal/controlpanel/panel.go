// Package controlpanel is the operator boundary: auto-mode toggle, manual
// send and screenshot triggers, plus the state an operator surface renders
// (webhook status, recent events, pending screenshot request).
package controlpanel

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/model"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

var ErrInvalidScreenshotName = errors.New("controlpanel: invalid screenshot name")

// Request is a screenshot request waiting for a capturer.
type Request struct {
	ID      string            `json:"id"`
	Process model.ProcessType `json:"process"`
	At      time.Time         `json:"at"`
}

// View is a copy of the panel state.
type View struct {
	AutoMode model.AutoMode   `json:"auto_mode"`
	Status   model.Status     `json:"status,omitempty"`
	Pending  *Request         `json:"pending,omitempty"`
	Recent   []model.EventLog `json:"recent"`
}

type Panel struct {
	events  *Events
	trading *tradingstatus.Events
	logs    *eventlog.Events
	log     logx.Logger

	mu      sync.Mutex
	auto    model.AutoMode
	status  model.Status
	pending *Request
	recent  []model.EventLog
	subs    []func()
}

// New returns a panel with auto mode enabled.
func New(events *Events, trading *tradingstatus.Events, logs *eventlog.Events, log logx.Logger) *Panel {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Panel{
		events:  events,
		trading: trading,
		logs:    logs,
		log:     log,
		auto:    model.AutoEnabled,
	}
}

func (p *Panel) Events() *Events { return p.events }

func (p *Panel) Attach() {
	ev := p.events
	status := ev.StatusUpdated.SubscribeFunc(func(s model.Status) {
		p.mu.Lock()
		p.status = s
		p.mu.Unlock()
	})
	requested := ev.ScreenshotRequested.SubscribeFunc(func(pt model.ProcessType) {
		req := &Request{ID: uuid.NewString(), Process: pt, At: time.Now()}
		p.mu.Lock()
		p.pending = req
		p.mu.Unlock()
		p.log.Debug("screenshot requested", logx.String("id", req.ID), logx.String("process", string(pt)))
	})
	handled := ev.ScreenshotHandled.SubscribeFunc(func(ScreenshotResult) {
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
	})
	undo := []func(){
		func() { ev.StatusUpdated.Unsubscribe(status) },
		func() { ev.ScreenshotRequested.Unsubscribe(requested) },
		func() { ev.ScreenshotHandled.Unsubscribe(handled) },
	}
	if p.logs != nil {
		recent := p.logs.RecentEventsProcessed.SubscribeFunc(p.onRecent)
		undo = append(undo, func() { p.logs.RecentEventsProcessed.Unsubscribe(recent) })
	}
	p.mu.Lock()
	p.subs = append(p.subs, undo...)
	p.mu.Unlock()
}

func (p *Panel) Detach() {
	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()
	for _, u := range subs {
		u()
	}
}

func (p *Panel) onRecent(entries []model.EventLog) {
	p.mu.Lock()
	p.recent = append([]model.EventLog(nil), entries...)
	p.mu.Unlock()
	if n := len(entries); n > 0 {
		p.events.EventLogUpdated.Publish(entries[n-1])
	}
}

// ToggleAutoMode switches the raw order feed on or off. Re-enabling does not
// send anything by itself.
func (p *Panel) ToggleAutoMode(enabled bool) {
	mode := model.AutoModeFromBool(enabled)
	p.mu.Lock()
	changed := p.auto != mode
	p.auto = mode
	p.mu.Unlock()

	p.events.AutoModeToggled.Publish(mode)
	if enabled {
		eventbus.Fire(p.trading.OrderEntryUpdateSubscribed)
	} else {
		eventbus.Fire(p.trading.OrderEntryUpdateUnsubscribed)
	}
	if changed {
		p.log.Info("auto mode toggled", logx.String("mode", string(mode)))
	}
}

// ManualSend aggregates and sends the current status now.
func (p *Panel) ManualSend() {
	p.log.Info("manual send requested")
	eventbus.Fire(p.trading.ManualOrderEntryUpdated)
}

func (p *Panel) RequestScreenshot(pt model.ProcessType) {
	p.events.ScreenshotRequested.Publish(pt)
}

// HandleScreenshot reports a captured file. The name must be a bare file
// name inside the screenshot directory.
func (p *Panel) HandleScreenshot(pt model.ProcessType, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return ErrInvalidScreenshotName
	}
	p.events.ScreenshotHandled.Publish(ScreenshotResult{Process: pt, Name: name})
	return nil
}

// NotifyAutoScreenshotPending signals that an automatic screenshot can be sent.
func (p *Panel) NotifyAutoScreenshotPending() {
	eventbus.Fire(p.events.AutoScreenshotAwaitingProcessing)
}

func (p *Panel) AutoMode() model.AutoMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auto
}

func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := View{
		AutoMode: p.auto,
		Status:   p.status,
		Recent:   append([]model.EventLog{}, p.recent...),
	}
	if p.pending != nil {
		req := *p.pending
		v.Pending = &req
	}
	return v
}
