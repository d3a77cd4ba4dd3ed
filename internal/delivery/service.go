// Package delivery renders trading-status snapshots and posts them, with a
// screenshot attached, to every configured webhook in order.
//
// One cycle: snapshot -> embed built, screenshot requested after a settle
// delay -> screenshot handled -> send. A newer snapshot replaces the pending
// embed and cancels the pending screenshot request.
package delivery

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"discordmessenger/internal/controlpanel"
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/model"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

const (
	LabelTradingStatus = "Trading Status Sent"
	LabelScreenshot    = "Screenshot Sent"
)

var (
	ErrScreenshotMissing = errors.New("delivery: screenshot not found")
	ErrEndpointStatus    = errors.New("delivery: endpoint returned non-success status")
	ErrClosed            = errors.New("delivery: service closed")
)

type Config struct {
	URLs         []string
	Dir          string
	Color        int
	SettleDelay  time.Duration
	PollAttempts int
	PollInterval time.Duration
	// Timeout bounds one POST; zero leaves it to the transport.
	Timeout    time.Duration
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	c.URLs = append([]string(nil), c.URLs...)
	return c
}

// Outcome is one finished send.
type Outcome struct {
	Label   string
	Cycle   string
	Status  model.Status
	Err     error
	Bytes   int64
	Elapsed time.Duration
}

// Deps are the events the service listens to and reports on.
type Deps struct {
	Trading *tradingstatus.Events
	Panel   *controlpanel.Events
	Logs    *eventlog.Events
	Bus     *eventbus.Bus
}

type Option func(*Service)

// WithObserver is called after every send, before the EventLog entry is published.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Service) { s.observe = fn }
}

type Service struct {
	cfg     Config
	deps    Deps
	log     logx.Logger
	client  *httpClient
	observe func(Outcome)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	embed  *Embed
	path   string
	cycle  string
	settle *time.Timer
	subs   []func()
	closed bool
}

// New reads cfg once; later config changes need a new Service.
func New(cfg Config, deps Deps, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.New(nil)
	}
	cfg = cfg.withDefaults()
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.RatePerSec
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		client: newHTTPClient(cfg.Timeout, rate.NewLimiter(limit, burst)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Attach() {
	d := s.deps
	processed := d.Trading.OrderEntryProcessed.SubscribeFunc(s.onSnapshot)
	handled := d.Panel.ScreenshotHandled.SubscribeFunc(s.onScreenshotHandled)
	awaiting := d.Panel.AutoScreenshotAwaitingProcessing.SubscribeFunc(func(struct{}) { s.sendStatus() })
	s.mu.Lock()
	s.subs = append(s.subs,
		func() { d.Trading.OrderEntryProcessed.Unsubscribe(processed) },
		func() { d.Panel.ScreenshotHandled.Unsubscribe(handled) },
		func() { d.Panel.AutoScreenshotAwaitingProcessing.Unsubscribe(awaiting) },
	)
	s.mu.Unlock()
}

// Close detaches the service, aborts in-flight sends and waits for them.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.mu.Unlock()

	for _, u := range subs {
		u()
	}
	s.cancel()
	s.wg.Wait()
	s.client.closeIdle()
}

// Pending returns the embed and screenshot path of the current cycle.
func (s *Service) Pending() (*Embed, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embed == nil {
		return nil, s.path
	}
	e := *s.embed
	return &e, s.path
}

func (s *Service) onSnapshot(snap model.Snapshot) {
	embed := BuildEmbed(snap, s.cfg.Color)
	cycle := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.embed = &embed
	s.cycle = cycle
	if s.settle != nil {
		s.settle.Stop()
	}
	s.settle = time.AfterFunc(s.cfg.SettleDelay, func() {
		s.mu.Lock()
		current := s.cycle == cycle && !s.closed
		if current {
			s.settle = nil
		}
		s.mu.Unlock()
		if current {
			s.deps.Panel.ScreenshotRequested.Publish(model.ProcessAuto)
		}
	})
	s.log.Debug("status embed ready", logx.String("cycle", cycle), logx.Int("fields", len(embed.Fields)))
}

func (s *Service) onScreenshotHandled(res controlpanel.ScreenshotResult) {
	path := filepath.Join(s.cfg.Dir, res.Name)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.path = path
	s.mu.Unlock()

	if res.Process == model.ProcessAuto {
		eventbus.Fire(s.deps.Panel.AutoScreenshotAwaitingProcessing)
		return
	}
	s.sendScreenshot(path)
}

// sendStatus posts the pending embed with the pending screenshot and clears
// both unless a newer cycle replaced them meanwhile.
func (s *Service) sendStatus() {
	s.mu.Lock()
	var embed *Embed
	if s.embed != nil {
		e := *s.embed
		embed = &e
	}
	path, cycle := s.path, s.cycle
	s.mu.Unlock()

	s.spawn(func(ctx context.Context) {
		out := s.send(ctx, LabelTradingStatus, cycle, embed, path)
		s.mu.Lock()
		if s.cycle == cycle {
			s.embed = nil
			s.path = ""
		}
		s.mu.Unlock()
		s.report(out)
	})
}

func (s *Service) sendScreenshot(path string) {
	s.spawn(func(ctx context.Context) {
		out := s.send(ctx, LabelScreenshot, "", nil, path)
		s.mu.Lock()
		if s.path == path {
			s.path = ""
		}
		s.mu.Unlock()
		s.report(out)
	})
}

func (s *Service) spawn(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Service) send(ctx context.Context, label, cycle string, embed *Embed, path string) Outcome {
	start := time.Now()
	n, err := s.deliver(ctx, embed, path)
	out := Outcome{
		Label:   label,
		Cycle:   cycle,
		Status:  model.StatusSuccess,
		Err:     err,
		Bytes:   n,
		Elapsed: time.Since(start),
	}
	if err != nil {
		out.Status = model.StatusFailed
	}
	return out
}

func (s *Service) report(out Outcome) {
	fields := []logx.Field{
		logx.String("label", out.Label),
		logx.String("status", string(out.Status)),
		logx.Duration("elapsed", out.Elapsed),
	}
	if out.Cycle != "" {
		fields = append(fields, logx.String("cycle", out.Cycle))
	}
	if out.Err != nil {
		s.log.Warn("delivery failed", append(fields, logx.Err(out.Err))...)
	} else {
		s.log.Info("delivery done", fields...)
	}
	if s.observe != nil {
		s.observe(out)
	}
	s.deps.Logs.Report(out.Status, out.Label)
}
