package healthcheck

import (
	"time"

	"github.com/robfig/cron/v3"
)

// everySchedule fires at a fixed interval. Unlike cron.Every it keeps
// sub-second precision.
type everySchedule struct{ every time.Duration }

func (s everySchedule) Next(t time.Time) time.Time { return t.Add(s.every) }

func interval(d time.Duration) cron.Schedule {
	if d >= time.Second && d%time.Second == 0 {
		return cron.Every(d)
	}
	return everySchedule{every: d}
}
