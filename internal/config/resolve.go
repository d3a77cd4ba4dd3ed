package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoWebhooks is reported as a warning: the process runs but every send
// and probe has nothing to talk to.
var ErrNoWebhooks = errors.New("config: no webhook urls configured")

const (
	DefaultColor      = 0x1E90FF // DodgerBlue
	FallbackColor     = 0xFFFFFF
	DefaultHTTPAddr   = "127.0.0.1:8765"
	defaultShotDir    = "screenshots"
	defaultRatePerSec = 5
)

// Settings is a validated Config with defaults applied and durations parsed.
// Services take the pieces they need from it once, at construction.
type Settings struct {
	WebhookURLs []string

	AccountName  string
	SnapshotPath string

	ScreenshotDir string
	SettleDelay   time.Duration
	PollAttempts  int
	PollInterval  time.Duration

	Color int

	Debounce time.Duration
	AutoSend bool

	HealthInterval time.Duration
	HealthTimeout  time.Duration

	RatePerSec      int
	DeliveryTimeout time.Duration

	HTTPAddr string
	Pprof    bool
}

// Resolve validates c and applies defaults. Warnings do not make Resolve fail.
func (c *Config) Resolve() (Settings, []error, error) {
	var s Settings
	var warns []error
	var err error

	s.WebhookURLs = append([]string(nil), c.WebhookURLs...)
	if len(s.WebhookURLs) == 0 {
		warns = append(warns, ErrNoWebhooks)
	}

	s.AccountName = strings.TrimSpace(c.Account.Name)
	s.SnapshotPath = strings.TrimSpace(c.Account.SnapshotPath)

	s.ScreenshotDir = CleanDir(c.Screenshot.Dir)
	if s.ScreenshotDir == "" {
		s.ScreenshotDir = defaultShotDir
	}
	if s.SettleDelay, err = ParseDurationOrDefault("screenshot.settle_delay", c.Screenshot.SettleDelay, 500*time.Millisecond); err != nil {
		return Settings{}, nil, err
	}
	if s.PollInterval, err = ParseDurationOrDefault("screenshot.poll_interval", c.Screenshot.PollInterval, 500*time.Millisecond); err != nil {
		return Settings{}, nil, err
	}
	switch {
	case c.Screenshot.PollAttempts < 0:
		return Settings{}, nil, fmt.Errorf("screenshot.poll_attempts must be >= 0")
	case c.Screenshot.PollAttempts == 0:
		s.PollAttempts = 5
	default:
		s.PollAttempts = c.Screenshot.PollAttempts
	}

	color, ok := ParseColor(string(c.Embed.Color))
	if !ok {
		warns = append(warns, fmt.Errorf("embed.color: %q not recognized, using #FFFFFF", c.Embed.Color))
	}
	s.Color = color

	if s.Debounce, err = ParseDurationOrDefault("trading.debounce", c.Trading.Debounce, 300*time.Millisecond); err != nil {
		return Settings{}, nil, err
	}
	s.AutoSend = c.Trading.AutoSend == nil || *c.Trading.AutoSend

	if s.HealthInterval, err = ParseDurationOrDefault("health.interval", c.Health.Interval, 60*time.Second); err != nil {
		return Settings{}, nil, err
	}
	if s.HealthTimeout, err = ParseDurationOrDefault("health.timeout", c.Health.Timeout, 10*time.Second); err != nil {
		return Settings{}, nil, err
	}

	switch {
	case c.Delivery.RatePerSec < 0:
		return Settings{}, nil, fmt.Errorf("delivery.rate_per_sec must be >= 0")
	case c.Delivery.RatePerSec == 0:
		s.RatePerSec = defaultRatePerSec
	default:
		s.RatePerSec = c.Delivery.RatePerSec
	}
	if s.DeliveryTimeout, err = ParseDurationField("delivery.timeout", c.Delivery.Timeout); err != nil {
		return Settings{}, nil, err
	}

	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "off", "file", "sqlite":
		default:
			return Settings{}, nil, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return Settings{}, nil, err
		}
	}

	switch addr := strings.TrimSpace(c.HTTP.Addr); strings.ToLower(addr) {
	case "":
		s.HTTPAddr = DefaultHTTPAddr
	case "off", "-":
	default:
		s.HTTPAddr = addr
	}
	s.Pprof = c.HTTP.Pprof
	return s, warns, nil
}

// CleanDir trims whitespace and trailing path separators, keeping a bare root.
func CleanDir(dir string) string {
	dir = strings.TrimSpace(dir)
	trimmed := strings.TrimRight(dir, `\/`)
	if trimmed == "" && dir != "" {
		return dir[:1]
	}
	return trimmed
}

// ParseColor resolves a color spec to a 24-bit RGB value. An empty spec is
// DodgerBlue. Anything unrecognized, including "transparent", resolves to
// white and reports false.
func ParseColor(spec string) (int, bool) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return DefaultColor, true
	}
	if v, ok := namedColors[strings.ToLower(s)]; ok {
		return v, true
	}
	var digits string
	base := 16
	switch {
	case strings.HasPrefix(s, "#"):
		digits = s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		digits = s[2:]
	default:
		digits, base = s, 10
	}
	if base == 16 && len(digits) != 6 {
		return FallbackColor, false
	}
	v, err := strconv.ParseInt(digits, base, 32)
	if err != nil || v < 0 || v > 0xFFFFFF {
		return FallbackColor, false
	}
	return int(v), true
}

var namedColors = map[string]int{
	"black":      0x000000,
	"white":      0xFFFFFF,
	"red":        0xFF0000,
	"green":      0x008000,
	"lime":       0x00FF00,
	"limegreen":  0x32CD32,
	"blue":       0x0000FF,
	"dodgerblue": 0x1E90FF,
	"royalblue":  0x4169E1,
	"navy":       0x000080,
	"cyan":       0x00FFFF,
	"teal":       0x008080,
	"yellow":     0xFFFF00,
	"gold":       0xFFD700,
	"orange":     0xFFA500,
	"orangered":  0xFF4500,
	"crimson":    0xDC143C,
	"magenta":    0xFF00FF,
	"purple":     0x800080,
	"gray":       0x808080,
	"grey":       0x808080,
	"silver":     0xC0C0C0,
}
