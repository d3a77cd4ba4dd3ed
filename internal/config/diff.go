package config

import (
	"reflect"

	logx "discordmessenger/pkg/logx"
)

// Section names reported by SummarizeConfigChange.
const (
	SectionWebhooks   = "webhook_urls"
	SectionAccount    = "account"
	SectionScreenshot = "screenshot"
	SectionEmbed      = "embed"
	SectionTrading    = "trading"
	SectionHealth     = "health"
	SectionDelivery   = "delivery"
	SectionLogging    = "logging"
	SectionStorage    = "storage"
	SectionHTTP       = "http"
)

// SummarizeConfigChange lists the changed sections in a fixed order plus
// log attrs describing them. Webhook URLs are never logged, only counted.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	var attrs []logx.Field

	if !reflect.DeepEqual([]string(oldCfg.WebhookURLs), []string(newCfg.WebhookURLs)) {
		changed = append(changed, SectionWebhooks)
		attrs = append(attrs, logx.Int("webhooks.count", len(newCfg.WebhookURLs)))
	}
	if oldCfg.Account != newCfg.Account {
		changed = append(changed, SectionAccount)
		attrs = append(attrs, logx.String("account.name", newCfg.Account.Name))
	}
	if oldCfg.Screenshot != newCfg.Screenshot {
		changed = append(changed, SectionScreenshot)
		attrs = append(attrs, logx.String("screenshot.dir", CleanDir(newCfg.Screenshot.Dir)))
	}
	if oldCfg.Embed != newCfg.Embed {
		changed = append(changed, SectionEmbed)
		attrs = append(attrs, logx.String("embed.color", string(newCfg.Embed.Color)))
	}
	if oldCfg.Trading.Debounce != newCfg.Trading.Debounce || !sameBool(oldCfg.Trading.AutoSend, newCfg.Trading.AutoSend) {
		changed = append(changed, SectionTrading)
		attrs = append(attrs, logx.String("trading.debounce", string(newCfg.Trading.Debounce)))
	}
	if oldCfg.Health != newCfg.Health {
		changed = append(changed, SectionHealth)
		attrs = append(attrs, logx.String("health.interval", string(newCfg.Health.Interval)))
	}
	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, SectionDelivery)
		attrs = append(attrs, logx.Int("delivery.rate_per_sec", newCfg.Delivery.RatePerSec))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, SectionLogging)
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, SectionStorage)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, SectionHTTP)
		attrs = append(attrs, logx.String("http.addr", newCfg.HTTP.Addr))
	}
	return changed, attrs
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Touches reports whether any of sections is in changed.
func Touches(changed []string, sections ...string) bool {
	for _, c := range changed {
		for _, s := range sections {
			if c == s {
				return true
			}
		}
	}
	return false
}
