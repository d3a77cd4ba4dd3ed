// Package healthcheck probes every configured webhook on a fixed interval and
// classifies the result as Success, PartialSuccess or Failed.
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/model"
	logx "discordmessenger/pkg/logx"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultTimeout  = 10 * time.Second

	partialMessage = "Some webhooks failed."
)

// Result is one finished probe round.
type Result struct {
	Status  model.Status
	Total   int
	Failed  []string
	Elapsed time.Duration
}

// Classify maps a success count over total endpoints to a status.
func Classify(successes, total int) model.Status {
	switch {
	case successes == 0:
		return model.StatusFailed
	case successes == total:
		return model.StatusSuccess
	default:
		return model.StatusPartialSuccess
	}
}

type Option func(*Checker)

func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTimeout bounds a single GET.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver is called for every result that was not discarded.
func WithObserver(fn func(Result)) Option {
	return func(c *Checker) { c.observe = fn }
}

// Checker is stopped until Start. The URL list is fixed at construction.
type Checker struct {
	urls     []string
	events   *Events
	logs     *eventlog.Events
	bus      *eventbus.Bus
	log      logx.Logger
	interval time.Duration
	timeout  time.Duration
	observe  func(Result)

	mu   sync.Mutex
	gen  uint64
	run  *round
	subs []func()
	last model.Status
}

// round is the state owned by one Start..Stop span.
type round struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	client *http.Client
	cron   *cron.Cron
	busy   atomic.Bool
}

func New(urls []string, events *Events, logs *eventlog.Events, bus *eventbus.Bus, log logx.Logger, opts ...Option) *Checker {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New(nil)
	}
	c := &Checker{
		urls:     append([]string(nil), urls...),
		events:   events,
		logs:     logs,
		bus:      bus,
		log:      log,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Attach binds Start and Stop to the Started and Stopped signals.
func (c *Checker) Attach() {
	ev := c.events
	start := ev.Started.SubscribeFunc(func(struct{}) { c.Start() })
	stop := ev.Stopped.SubscribeFunc(func(struct{}) { c.Stop() })
	c.mu.Lock()
	c.subs = append(c.subs,
		func() { ev.Started.Unsubscribe(start) },
		func() { ev.Stopped.Unsubscribe(stop) },
	)
	c.mu.Unlock()
}

// Detach undoes Attach and stops the checker.
func (c *Checker) Detach() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, undo := range subs {
		undo()
	}
	c.Stop()
}

// Running reports whether probes are scheduled.
func (c *Checker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil
}

// Last returns the most recent published status, empty before the first round.
func (c *Checker) Last() model.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Start probes immediately and then every interval. Starting a running
// checker is a no-op.
func (c *Checker) Start() {
	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		return
	}
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	r := &round{
		gen:    c.gen,
		ctx:    ctx,
		cancel: cancel,
		client: &http.Client{Timeout: c.timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		cron:   cron.New(),
	}
	r.cron.Schedule(interval(c.interval), cron.FuncJob(func() { c.tick(r) }))
	c.run = r
	c.mu.Unlock()

	r.cron.Start()
	go c.tick(r)
	c.log.Info("webhook checker started",
		logx.Int("webhooks", len(c.urls)),
		logx.Duration("interval", c.interval),
	)
}

// Stop cancels the schedule and any in-flight probe, whose result is then
// dropped. Stopping a stopped checker is a no-op.
func (c *Checker) Stop() {
	c.mu.Lock()
	r := c.run
	if r == nil {
		c.mu.Unlock()
		return
	}
	c.run = nil
	c.gen++
	c.mu.Unlock()

	r.cancel()
	<-r.cron.Stop().Done()
	if t, ok := r.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	c.log.Info("webhook checker stopped")
}

func (c *Checker) tick(r *round) {
	if !r.busy.CompareAndSwap(false, true) {
		c.log.Debug("previous probe still running, tick skipped")
		return
	}
	defer r.busy.Store(false)

	res := c.probeAll(r.ctx, r.client)

	c.mu.Lock()
	stale := r.gen != c.gen
	if !stale {
		c.last = res.Status
	}
	c.mu.Unlock()
	if stale {
		c.log.Debug("probe result discarded after stop")
		return
	}
	c.report(res)
}

func (c *Checker) probeAll(ctx context.Context, client *http.Client) Result {
	start := time.Now()
	ok := 0
	var failed []string
	for _, url := range c.urls {
		if err := probe(ctx, client, url); err != nil {
			c.log.Debug("webhook probe failed", logx.String("url", url), logx.Err(err))
			failed = append(failed, url)
			continue
		}
		ok++
	}
	return Result{
		Status:  Classify(ok, len(c.urls)),
		Total:   len(c.urls),
		Failed:  failed,
		Elapsed: time.Since(start),
	}
}

func probe(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Checker) report(res Result) {
	if res.Status == model.StatusPartialSuccess {
		for _, url := range res.Failed {
			c.bus.Print("Webhook Failed: " + url)
		}
		if c.logs != nil {
			c.logs.Report(model.StatusPartialSuccess, partialMessage)
		}
	}
	if c.observe != nil {
		c.observe(res)
	}
	c.events.StatusUpdated.Publish(res.Status)
}
