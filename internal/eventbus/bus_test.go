package eventbus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type printSink struct {
	mu    sync.Mutex
	lines []string
}

func (p *printSink) print(msg string) {
	p.mu.Lock()
	p.lines = append(p.lines, msg)
	p.mu.Unlock()
}

func (p *printSink) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func TestPublishCallsHandlersInSubscriptionOrder(t *testing.T) {
	ev := NewEvent[int](New(nil), "numbers")
	var got []string
	ev.SubscribeFunc(func(v int) { got = append(got, "a") })
	ev.SubscribeFunc(func(v int) { got = append(got, "b") })
	ev.SubscribeFunc(func(v int) { got = append(got, "c") })

	ev.Publish(1)

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	sink := &printSink{}
	ev := NewSignal(New(sink.print), "empty")

	assert.NotPanics(t, func() { Fire(ev) })
	assert.Empty(t, sink.all())
}

func TestHandlerErrorIsIsolated(t *testing.T) {
	sink := &printSink{}
	bus := New(sink.print)
	var faults []string
	bus.OnFault(func(event string) { faults = append(faults, event) })

	ev := NewEvent[string](bus, "status")
	var after []string
	ev.Subscribe(func(string) error { return errors.New("boom") })
	ev.SubscribeFunc(func(v string) { after = append(after, v) })

	ev.Publish("x")

	assert.Equal(t, []string{"x"}, after, "later handler still runs")
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "Error invoking event status: boom", sink.all()[0])
	assert.Equal(t, []string{"status"}, faults)
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	sink := &printSink{}
	ev := NewEvent[int](New(sink.print), "panicky")
	called := false
	ev.SubscribeFunc(func(int) { panic("bad handler") })
	ev.SubscribeFunc(func(int) { called = true })

	assert.NotPanics(t, func() { ev.Publish(7) })
	assert.True(t, called)
	require.Len(t, sink.all(), 1)
	assert.Contains(t, sink.all()[0], "bad handler")
}

func TestUnsubscribe(t *testing.T) {
	ev := NewEvent[int](New(nil), "n")
	count := 0
	sub := ev.SubscribeFunc(func(int) { count++ })

	ev.Publish(1)
	assert.True(t, ev.Unsubscribe(sub))
	assert.False(t, ev.Unsubscribe(sub), "second unsubscribe is a no-op")
	ev.Publish(2)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, ev.Len())
}

func TestUnsubscribeDuringPublishKeepsSnapshot(t *testing.T) {
	ev := NewEvent[int](New(nil), "n")
	var second Subscription
	calls := 0
	ev.SubscribeFunc(func(int) {
		calls++
		ev.Unsubscribe(second)
	})
	second = ev.SubscribeFunc(func(int) { calls++ })

	ev.Publish(1)
	assert.Equal(t, 2, calls, "snapshot taken at publish time")

	ev.Publish(2)
	assert.Equal(t, 3, calls)
}

func TestNilHandlerIgnored(t *testing.T) {
	ev := NewEvent[int](New(nil), "n")
	assert.Equal(t, Subscription(0), ev.Subscribe(nil))
	assert.Equal(t, 0, ev.Len())
}

func TestPanickingPrinterDoesNotEscape(t *testing.T) {
	bus := New(func(string) { panic("printer down") })
	ev := NewEvent[int](bus, "n")
	ev.Subscribe(func(int) error { return errors.New("x") })

	assert.NotPanics(t, func() { ev.Publish(1) })
}
