package app

import (
	"context"
	"errors"

	"discordmessenger/internal/config"
	"discordmessenger/internal/delivery"
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/healthcheck"
	"discordmessenger/internal/host"
	"discordmessenger/internal/model"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

// pipeline is everything built from one Settings value. Services read their
// settings once, so a config change replaces the whole pipeline.
type pipeline struct {
	account    *host.FileAccount
	aggregator *tradingstatus.Aggregator
	delivery   *delivery.Service
	checker    *healthcheck.Checker
	stopWatch  context.CancelFunc
}

// buildPipeline returns nil when the account cannot be opened; the process
// then keeps serving the control API without services.
func (a *App) buildPipeline(s config.Settings) *pipeline {
	log := a.log.With(logx.String("account", s.AccountName))
	if s.AccountName == "" || s.SnapshotPath == "" {
		log.Error("account not configured; services not started")
		return nil
	}
	acc, err := host.OpenFileAccount(s.SnapshotPath, s.AccountName, a.log.With(logx.String("comp", "account")))
	switch {
	case errors.Is(err, host.ErrAccountNotFound):
		log.Error("account not found; services not started", logx.String("path", s.SnapshotPath))
		return nil
	case err != nil:
		log.Error("account snapshot unreadable; services not started", logx.Err(err))
		return nil
	}

	m := a.metrics
	p := &pipeline{account: acc}
	p.delivery = delivery.New(delivery.Config{
		URLs:         s.WebhookURLs,
		Dir:          s.ScreenshotDir,
		Color:        s.Color,
		SettleDelay:  s.SettleDelay,
		PollAttempts: s.PollAttempts,
		PollInterval: s.PollInterval,
		Timeout:      s.DeliveryTimeout,
		RatePerSec:   s.RatePerSec,
	}, delivery.Deps{
		Trading: a.trading,
		Panel:   a.panelEvents,
		Logs:    a.logEvents,
		Bus:     a.bus,
	}, a.log.With(logx.String("comp", "delivery")), delivery.WithObserver(func(o delivery.Outcome) {
		m.ObserveDelivery(o.Label, o.Status, o.Bytes, o.Elapsed)
	}))

	p.aggregator = tradingstatus.New(a.trading, acc, a.log.With(logx.String("comp", "trading")),
		tradingstatus.WithDebounce(s.Debounce),
		tradingstatus.WithObserver(func(manual bool, _ model.Snapshot) { m.ObserveAggregation(manual) }),
	)

	p.checker = healthcheck.New(s.WebhookURLs, a.health, a.logEvents, a.bus, a.log.With(logx.String("comp", "health")),
		healthcheck.WithInterval(s.HealthInterval),
		healthcheck.WithTimeout(s.HealthTimeout),
		healthcheck.WithObserver(func(r healthcheck.Result) { m.ObserveProbe(r.Status, r.Elapsed) }),
	)

	// Consumers first, so the first snapshot has somewhere to go.
	p.delivery.Attach()
	p.aggregator.Attach()
	if a.panel.AutoMode() == model.AutoDisabled {
		p.aggregator.UnsubscribeFeed()
	}
	p.checker.Attach()

	ctx, cancel := context.WithCancel(a.sup.Context())
	p.stopWatch = cancel
	a.sup.GoRestart("account.watch", func(context.Context) error {
		return acc.Watch(ctx, func() { eventbus.Fire(a.trading.OrderEntryUpdated) })
	})

	log.Info("pipeline ready",
		logx.Int("webhooks", len(s.WebhookURLs)),
		logx.String("screenshots", s.ScreenshotDir),
		logx.Duration("debounce", s.Debounce),
	)
	return p
}

// close tears down in reverse: no more order updates, no more probes, then
// in-flight sends finish or abort.
func (p *pipeline) close() {
	if p == nil {
		return
	}
	if p.stopWatch != nil {
		p.stopWatch()
	}
	p.aggregator.Detach()
	p.checker.Detach()
	p.delivery.Close()
}
