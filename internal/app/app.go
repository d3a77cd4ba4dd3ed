package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discordmessenger/internal/api"
	"discordmessenger/internal/config"
	"discordmessenger/internal/controlpanel"
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/healthcheck"
	"discordmessenger/internal/metrics"
	"discordmessenger/internal/model"
	"discordmessenger/internal/runtime/supervisor"
	"discordmessenger/internal/storage"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	bus     *eventbus.Bus
	metrics *metrics.Metrics
	store   storage.Store

	recent      *eventlog.Store
	logEvents   *eventlog.Events
	trading     *tradingstatus.Events
	panelEvents *controlpanel.Events
	health      *healthcheck.Events
	panel       *controlpanel.Panel
	server      *api.Server

	// swap serializes pipeline rebuilds against Stop.
	swap sync.Mutex

	mu       sync.Mutex
	settings config.Settings
	pipe     *pipeline
	running  bool
	stopped  bool
	subs     []func()
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	settings, warns, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	sc, storageOn, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg))
	for _, w := range warns {
		log.Warn("config warning", logx.Err(w))
	}

	var store storage.Store
	if storageOn {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	m := metrics.New()
	busLog := log.With(logx.String("comp", "bus"))
	bus := eventbus.New(func(msg string) { busLog.Warn(msg) })
	bus.OnFault(m.ObserveFault)

	a := &App{
		cfgm:        cfgm,
		log:         log.With(logx.String("comp", "app")),
		logs:        logSvc,
		bus:         bus,
		metrics:     m,
		store:       store,
		recent:      eventlog.NewStore(),
		logEvents:   eventlog.NewEvents(bus),
		trading:     tradingstatus.NewEvents(bus),
		panelEvents: controlpanel.NewEvents(bus),
		health:      healthcheck.NewEvents(bus),
		settings:    settings,
	}
	a.panel = controlpanel.New(a.panelEvents, a.trading, a.logEvents, log.With(logx.String("comp", "panel")))
	a.attach()
	if !settings.AutoSend {
		a.panel.ToggleAutoMode(false)
	}

	deps := api.Deps{
		Panel:   a.apiPanel,
		Info:    a.info,
		Metrics: m.Handler(),
		Pprof:   settings.Pprof,
	}
	if store != nil {
		deps.History = store
	}
	a.server = api.NewServer(api.NewHandler(deps, log.With(logx.String("comp", "api"))), log.With(logx.String("comp", "http")))
	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// attach wires the subscriptions that live as long as the app.
func (a *App) attach() {
	recent := a.recent.Attach(a.logEvents)
	a.panel.Attach()
	status := a.health.StatusUpdated.SubscribeFunc(func(s model.Status) {
		a.panelEvents.StatusUpdated.Publish(s)
	})
	auto := a.panelEvents.AutoModeToggled.SubscribeFunc(a.metrics.SetAutoMode)
	a.metrics.SetAutoMode(a.panel.AutoMode())

	a.subs = append(a.subs,
		func() { a.logEvents.SendRecentEvent.Unsubscribe(recent) },
		a.panel.Detach,
		func() { a.health.StatusUpdated.Unsubscribe(status) },
		func() { a.panelEvents.AutoModeToggled.Unsubscribe(auto) },
	)

	if a.store != nil {
		persist := a.logEvents.SendRecentEvent.Subscribe(a.persist)
		a.subs = append(a.subs, func() { a.logEvents.SendRecentEvent.Unsubscribe(persist) })
	}
}

// persist mirrors one EventLog entry into storage. A failure surfaces as a
// bus fault; the in-memory store is unaffected.
func (a *App) persist(e model.EventLog) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	a.mu.Lock()
	account := a.settings.AccountName
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.store.AppendEvent(ctx, storage.EventEntry{
		At:      at,
		Status:  string(e.Status),
		Message: e.Message,
		Account: account,
	})
}

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Addr is the bound control API address, empty while it is off.
func (a *App) Addr() string { return a.server.Addr() }

func (a *App) Panel() *controlpanel.Panel { return a.panel }

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, _, err := mapStorageConfig(cfg)
		return err
	})

	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	if err := a.server.Apply(a.sup.Context(), settings.HTTPAddr); err != nil {
		return fmt.Errorf("control api: %w", err)
	}

	a.swap.Lock()
	p := a.buildPipeline(settings)
	a.mu.Lock()
	a.pipe = p
	a.running = true
	a.mu.Unlock()
	a.swap.Unlock()

	// Realtime: probes run from here until Stop.
	eventbus.Fire(a.health.Started)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.String("account", settings.AccountName),
		logx.Int("webhooks", len(settings.WebhookURLs)),
		logx.String("http", a.server.Addr()),
	)
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.mu.Lock()
	if a.sup == nil || a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	a.running = false
	a.mu.Unlock()

	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Terminated: probes stop before anything else is torn down.
	a.step(ctx, "health", time.Second, func(context.Context) error {
		eventbus.Fire(a.health.Stopped)
		return nil
	})
	a.step(ctx, "pipeline", 3*time.Second, func(context.Context) error {
		a.swap.Lock()
		defer a.swap.Unlock()
		a.mu.Lock()
		p := a.pipe
		a.pipe = nil
		a.mu.Unlock()
		p.close()
		return nil
	})
	a.step(ctx, "api", 2*time.Second, func(c context.Context) error {
		a.server.Stop(c)
		return nil
	})
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error {
		// A recorded fatal error is reported through Err, not here.
		if err := a.sup.Stop(c); c.Err() != nil {
			return err
		}
		return nil
	})

	a.mu.Lock()
	subs := a.subs
	a.subs = nil
	a.mu.Unlock()
	for _, undo := range subs {
		undo()
	}
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline, so a
// stuck component cannot stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", time.Since(start)), logx.Err(err))
		}()
	}
}

// apiPanel hides the panel while no pipeline runs (e.g. account not found),
// so control requests get 503 instead of silently doing nothing.
func (a *App) apiPanel() api.Panel {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pipe == nil {
		return nil
	}
	return a.panel
}

func (a *App) info() api.Info {
	a.mu.Lock()
	s := a.settings
	p := a.pipe
	a.mu.Unlock()

	in := api.Info{
		Account:      s.AccountName,
		AccountFound: p != nil,
		Webhooks:     len(s.WebhookURLs),
	}
	if p != nil {
		in.CheckerRunning = p.checker.Running()
	}
	if a.sup != nil {
		in.Workers = a.sup.Snapshot()
	}
	return in
}
