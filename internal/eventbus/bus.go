// Package eventbus is the in-process publish/subscribe layer the messenger's
// services talk through.
//
// Contract:
//   - Publish is synchronous and calls handlers in subscription order.
//   - A handler error or panic is reported on the bus print channel and
//     never reaches other handlers or the publisher.
//   - Publishing with no subscribers is a no-op.
//
// Ordering is only promised within one event's subscriber list.
package eventbus

import (
	"fmt"
	"sync"
)

// Printer receives human-readable diagnostic lines.
type Printer func(msg string)

// Bus owns the diagnostic print channel and the fault isolation shared by
// every Event created on it. It holds no subscribers itself.
type Bus struct {
	mu      sync.RWMutex
	printer Printer
	onFault func(event string)
}

// New returns a bus printing diagnostics to p. A nil printer drops them.
func New(p Printer) *Bus {
	return &Bus{printer: p}
}

// SetPrinter swaps the diagnostic sink.
func (b *Bus) SetPrinter(p Printer) {
	b.mu.Lock()
	b.printer = p
	b.mu.Unlock()
}

// OnFault installs a hook called with the event name whenever a handler fails.
func (b *Bus) OnFault(fn func(event string)) {
	b.mu.Lock()
	b.onFault = fn
	b.mu.Unlock()
}

// Print writes msg to the diagnostic sink. It never panics.
func (b *Bus) Print(msg string) {
	if b == nil {
		return
	}
	b.mu.RLock()
	p := b.printer
	b.mu.RUnlock()
	if p == nil {
		return
	}
	func() {
		defer func() { _ = recover() }()
		p(msg)
	}()
}

// invoke runs fn and converts an error or panic into a diagnostic line.
func (b *Bus) invoke(event string, fn func() error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn()
	}()
	if err == nil {
		return
	}
	b.Print(fmt.Sprintf("Error invoking event %s: %v", event, err))

	b.mu.RLock()
	hook := b.onFault
	b.mu.RUnlock()
	if hook != nil {
		func() {
			defer func() { _ = recover() }()
			hook(event)
		}()
	}
}
