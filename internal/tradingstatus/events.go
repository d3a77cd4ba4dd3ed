package tradingstatus

import (
	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/model"
)

// Events is the aggregator's inbound and outbound surface.
type Events struct {
	// OrderEntryUpdated is the raw host feed; it only reaches the debounce
	// while the aggregator is subscribed to it.
	OrderEntryUpdated *eventbus.Signal
	// ManualOrderEntryUpdated aggregates immediately.
	ManualOrderEntryUpdated *eventbus.Signal
	OrderEntryProcessed     *eventbus.Event[model.Snapshot]

	OrderEntryUpdateSubscribed   *eventbus.Signal
	OrderEntryUpdateUnsubscribed *eventbus.Signal
}

func NewEvents(bus *eventbus.Bus) *Events {
	return &Events{
		OrderEntryUpdated:            eventbus.NewSignal(bus, "trading.order_entry_updated"),
		ManualOrderEntryUpdated:      eventbus.NewSignal(bus, "trading.manual_order_entry_updated"),
		OrderEntryProcessed:          eventbus.NewEvent[model.Snapshot](bus, "trading.order_entry_processed"),
		OrderEntryUpdateSubscribed:   eventbus.NewSignal(bus, "trading.order_entry_update_subscribed"),
		OrderEntryUpdateUnsubscribed: eventbus.NewSignal(bus, "trading.order_entry_update_unsubscribed"),
	}
}
