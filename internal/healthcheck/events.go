package healthcheck

import (
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/model"
)

type Events struct {
	Started       *eventbus.Signal
	Stopped       *eventbus.Signal
	StatusUpdated *eventbus.Event[model.Status]
}

func NewEvents(bus *eventbus.Bus) *Events {
	return &Events{
		Started:       eventbus.NewSignal(bus, "webhook.checker_started"),
		Stopped:       eventbus.NewSignal(bus, "webhook.checker_stopped"),
		StatusUpdated: eventbus.NewEvent[model.Status](bus, "webhook.status_updated"),
	}
}
