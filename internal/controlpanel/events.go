package controlpanel

import (
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/model"
)

// ScreenshotResult reports a captured screenshot by file name, relative to
// the configured screenshot directory.
type ScreenshotResult struct {
	Process model.ProcessType `json:"process"`
	Name    string            `json:"name"`
}

type Events struct {
	StatusUpdated       *eventbus.Event[model.Status]
	EventLogUpdated     *eventbus.Event[model.EventLog]
	AutoModeToggled     *eventbus.Event[model.AutoMode]
	ScreenshotRequested *eventbus.Event[model.ProcessType]
	ScreenshotHandled   *eventbus.Event[ScreenshotResult]
	// AutoScreenshotAwaitingProcessing fires once an automatic screenshot
	// is on disk and the pending status can be sent.
	AutoScreenshotAwaitingProcessing *eventbus.Signal
}

func NewEvents(bus *eventbus.Bus) *Events {
	return &Events{
		StatusUpdated:                    eventbus.NewEvent[model.Status](bus, "panel.status_updated"),
		EventLogUpdated:                  eventbus.NewEvent[model.EventLog](bus, "panel.event_log_updated"),
		AutoModeToggled:                  eventbus.NewEvent[model.AutoMode](bus, "panel.auto_mode_toggled"),
		ScreenshotRequested:              eventbus.NewEvent[model.ProcessType](bus, "panel.screenshot_requested"),
		ScreenshotHandled:                eventbus.NewEvent[ScreenshotResult](bus, "panel.screenshot_handled"),
		AutoScreenshotAwaitingProcessing: eventbus.NewSignal(bus, "panel.auto_screenshot_awaiting"),
	}
}
