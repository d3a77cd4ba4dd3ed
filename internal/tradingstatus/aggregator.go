// Package tradingstatus turns raw "order changed" signals into immutable
// position/order snapshots.
//
// State machine: Idle -> Debouncing -> Aggregating -> Idle. Each raw signal
// restarts the debounce timer (trailing edge), so a burst collapses into one
// aggregation that reads the account state as of expiry. Manual requests skip
// the debounce.
package tradingstatus

import (
	"sync"
	"time"

	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/host"
	"discordmessenger/internal/model"
	logx "discordmessenger/pkg/logx"
)

// DefaultDebounce is the quiet period before an automatic aggregation.
const DefaultDebounce = 300 * time.Millisecond

type Option func(*Aggregator)

func WithDebounce(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.debounce = d
		}
	}
}

// WithObserver installs a hook called after every published snapshot.
func WithObserver(fn func(manual bool, snap model.Snapshot)) Option {
	return func(a *Aggregator) { a.observe = fn }
}

type Aggregator struct {
	events   *Events
	account  host.Account
	log      logx.Logger
	debounce time.Duration
	observe  func(manual bool, snap model.Snapshot)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	feed    eventbus.Subscription
	control []func()
}

func New(events *Events, account host.Account, log logx.Logger, opts ...Option) *Aggregator {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Aggregator{
		events:   events,
		account:  account,
		log:      log,
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Attach subscribes the aggregator to its control events and to the raw
// order feed.
func (a *Aggregator) Attach() {
	ev := a.events
	manual := ev.ManualOrderEntryUpdated.SubscribeFunc(func(struct{}) { a.aggregate(true) })
	on := ev.OrderEntryUpdateSubscribed.SubscribeFunc(func(struct{}) { a.SubscribeFeed() })
	off := ev.OrderEntryUpdateUnsubscribed.SubscribeFunc(func(struct{}) { a.UnsubscribeFeed() })

	a.mu.Lock()
	a.control = append(a.control,
		func() { ev.ManualOrderEntryUpdated.Unsubscribe(manual) },
		func() { ev.OrderEntryUpdateSubscribed.Unsubscribe(on) },
		func() { ev.OrderEntryUpdateUnsubscribed.Unsubscribe(off) },
	)
	a.mu.Unlock()

	a.SubscribeFeed()
}

// Detach drops every subscription and cancels a pending debounce.
func (a *Aggregator) Detach() {
	a.UnsubscribeFeed()
	a.mu.Lock()
	control := a.control
	a.control = nil
	a.mu.Unlock()
	for _, undo := range control {
		undo()
	}
}

// SubscribeFeed lets raw order updates reach the debounce. It never
// aggregates by itself. Calling it twice is a no-op.
func (a *Aggregator) SubscribeFeed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.feed != 0 {
		return
	}
	a.feed = a.events.OrderEntryUpdated.SubscribeFunc(func(struct{}) { a.OnOrderChanged() })
	a.log.Debug("order feed subscribed")
}

// UnsubscribeFeed stops raw order updates from reaching the debounce and
// cancels a pending aggregation.
func (a *Aggregator) UnsubscribeFeed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.feed != 0 {
		a.events.OrderEntryUpdated.Unsubscribe(a.feed)
		a.feed = 0
		a.log.Debug("order feed unsubscribed")
	}
	a.stopTimerLocked()
}

// Subscribed reports whether raw order updates feed the debounce.
func (a *Aggregator) Subscribed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.feed != 0
}

// OnOrderChanged restarts the debounce window.
func (a *Aggregator) OnOrderChanged() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.debounce, func() {
		a.mu.Lock()
		stale := gen != a.gen
		if !stale {
			a.timer = nil
		}
		a.mu.Unlock()
		if !stale {
			a.aggregate(false)
		}
	})
}

// Pending reports whether a debounced aggregation is scheduled.
func (a *Aggregator) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

func (a *Aggregator) stopTimerLocked() {
	// Bumping gen invalidates a timer that already fired but has not
	// taken the lock yet.
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Aggregate reads the account now and publishes the snapshot.
func (a *Aggregator) Aggregate() model.Snapshot { return a.aggregate(true) }

func (a *Aggregator) aggregate(manual bool) model.Snapshot {
	snap := model.Snapshot{
		Positions: ProjectPositions(a.account.Positions()),
		Orders:    ProjectOrders(a.account.Orders()),
	}
	a.log.Debug("snapshot aggregated",
		logx.Bool("manual", manual),
		logx.Int("positions", len(snap.Positions)),
		logx.Int("orders", len(snap.Orders)),
	)
	a.events.OrderEntryProcessed.Publish(snap)
	if a.observe != nil {
		a.observe(manual, snap)
	}
	return snap
}
