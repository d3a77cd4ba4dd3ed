package eventbus

import "sync"

// Handler reacts to one published value.
type Handler[T any] func(T) error

// Subscription identifies one Subscribe call so it can be undone.
// The zero value never matches a live subscription.
type Subscription uint64

type subscriber[T any] struct {
	id Subscription
	fn Handler[T]
}

// Event is a typed, named event with an explicit subscriber list.
type Event[T any] struct {
	bus  *Bus
	name string

	mu   sync.Mutex
	seq  Subscription
	subs []subscriber[T]
}

// NewEvent creates an event dispatching through bus. A nil bus still works
// but drops diagnostics.
func NewEvent[T any](bus *Bus, name string) *Event[T] {
	if bus == nil {
		bus = New(nil)
	}
	return &Event[T]{bus: bus, name: name}
}

// Signal is an event without a payload.
type Signal = Event[struct{}]

func NewSignal(bus *Bus, name string) *Signal { return NewEvent[struct{}](bus, name) }

// Name returns the event name used in diagnostics.
func (e *Event[T]) Name() string { return e.name }

// Subscribe appends h to the subscriber list. A nil handler is ignored and
// returns the zero Subscription.
func (e *Event[T]) Subscribe(h Handler[T]) Subscription {
	if h == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.subs = append(e.subs, subscriber[T]{id: e.seq, fn: h})
	return e.seq
}

// SubscribeFunc adapts a handler that cannot fail.
func (e *Event[T]) SubscribeFunc(fn func(T)) Subscription {
	if fn == nil {
		return 0
	}
	return e.Subscribe(func(v T) error {
		fn(v)
		return nil
	})
}

// Unsubscribe removes the subscription. It reports whether it was present.
func (e *Event[T]) Unsubscribe(s Subscription) bool {
	if s == 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub.id == s {
			// Copy so an in-progress Publish keeps its own snapshot.
			next := make([]subscriber[T], 0, len(e.subs)-1)
			next = append(next, e.subs[:i]...)
			next = append(next, e.subs[i+1:]...)
			e.subs = next
			return true
		}
	}
	return false
}

// Len returns the number of current subscribers.
func (e *Event[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Publish calls every handler subscribed at call time, in order.
// Handlers may subscribe or unsubscribe while being called.
func (e *Event[T]) Publish(v T) {
	e.mu.Lock()
	subs := e.subs
	e.mu.Unlock()

	for _, s := range subs {
		fn := s.fn
		e.bus.invoke(e.name, func() error { return fn(v) })
	}
}

// Fire publishes a payload-less signal.
func Fire(s *Signal) {
	if s != nil {
		s.Publish(struct{}{})
	}
}
