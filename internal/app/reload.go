package app

import (
	"context"
	"strings"

	"discordmessenger/internal/config"
	"discordmessenger/internal/eventbus"
	logx "discordmessenger/pkg/logx"
)

// pipelineSections are the sections any pipeline service reads.
var pipelineSections = []string{
	config.SectionWebhooks,
	config.SectionAccount,
	config.SectionScreenshot,
	config.SectionEmbed,
	config.SectionTrading,
	config.SectionHealth,
	config.SectionDelivery,
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			if a.applyConfig(ctx, last, cfg) {
				last = cfg
			}
		}
	}
}

// applyConfig reports whether cfg was applied.
func (a *App) applyConfig(ctx context.Context, old, cfg *config.Config) bool {
	settings, warns, err := cfg.Resolve()
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return false
	}
	sections, attrs := config.SummarizeConfigChange(old, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return true
	}

	if err := a.logs.Apply(logConfig(cfg)); err != nil {
		a.log.Warn("logging sink unavailable", logx.Err(err))
	}
	for _, w := range warns {
		a.log.Warn("config warning", logx.Err(w))
	}
	if config.Touches(sections, config.SectionStorage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	a.mu.Lock()
	prev := a.settings
	a.settings = settings
	a.mu.Unlock()

	if prev.Pprof != settings.Pprof {
		a.log.Warn("http.pprof changed; restart required for changes to take effect")
	}
	if config.Touches(sections, config.SectionHTTP) {
		if err := a.server.Apply(ctx, settings.HTTPAddr); err != nil {
			a.log.Warn("control api rebind failed", logx.String("addr", settings.HTTPAddr), logx.Err(err))
		}
	}
	if config.Touches(sections, config.SectionTrading) && prev.AutoSend != settings.AutoSend {
		a.panel.ToggleAutoMode(settings.AutoSend)
	}
	if config.Touches(sections, pipelineSections...) {
		a.rebuild(settings)
	}

	a.metrics.Reloads.Inc()
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
	return true
}

// rebuild swaps the pipeline for one built from s. Pending cycles of the old
// delivery service are dropped.
func (a *App) rebuild(s config.Settings) {
	a.swap.Lock()
	defer a.swap.Unlock()

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	old := a.pipe
	a.pipe = nil
	a.mu.Unlock()

	old.close()
	p := a.buildPipeline(s)

	a.mu.Lock()
	a.pipe = p
	a.mu.Unlock()
	if p != nil {
		eventbus.Fire(a.health.Started)
	}
}
