package controlpanel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discordmessenger/internal/eventbus"
	"discordmessenger/internal/eventlog"
	"discordmessenger/internal/model"
	"discordmessenger/internal/tradingstatus"
	logx "discordmessenger/pkg/logx"
)

type fixture struct {
	panel   *Panel
	events  *Events
	trading *tradingstatus.Events
	logs    *eventlog.Events
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	bus := eventbus.New(nil)
	f := fixture{
		events:  NewEvents(bus),
		trading: tradingstatus.NewEvents(bus),
		logs:    eventlog.NewEvents(bus),
	}
	f.panel = New(f.events, f.trading, f.logs, logx.Nop())
	f.panel.Attach()
	t.Cleanup(f.panel.Detach)
	return f
}

func count(sig *eventbus.Signal) *int {
	n := new(int)
	sig.SubscribeFunc(func(struct{}) { *n++ })
	return n
}

func TestAutoModeStartsEnabled(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, model.AutoEnabled, f.panel.AutoMode())
	assert.Equal(t, model.AutoEnabled, f.panel.View().AutoMode)
}

func TestToggleAutoModeDrivesFeed(t *testing.T) {
	f := newFixture(t)
	on := count(f.trading.OrderEntryUpdateSubscribed)
	off := count(f.trading.OrderEntryUpdateUnsubscribed)
	manual := count(f.trading.ManualOrderEntryUpdated)
	var modes []model.AutoMode
	f.events.AutoModeToggled.SubscribeFunc(func(m model.AutoMode) { modes = append(modes, m) })

	f.panel.ToggleAutoMode(false)
	f.panel.ToggleAutoMode(true)

	assert.Equal(t, 1, *on)
	assert.Equal(t, 1, *off)
	assert.Equal(t, 0, *manual)
	assert.Equal(t, []model.AutoMode{model.AutoDisabled, model.AutoEnabled}, modes)
}

func TestManualSendFiresManualUpdate(t *testing.T) {
	f := newFixture(t)
	manual := count(f.trading.ManualOrderEntryUpdated)
	f.panel.ManualSend()
	assert.Equal(t, 1, *manual)
}

func TestScreenshotRequestTracksPending(t *testing.T) {
	f := newFixture(t)
	var got []ScreenshotResult
	f.events.ScreenshotHandled.SubscribeFunc(func(r ScreenshotResult) { got = append(got, r) })

	f.panel.RequestScreenshot(model.ProcessManual)
	v := f.panel.View()
	require.NotNil(t, v.Pending)
	assert.Equal(t, model.ProcessManual, v.Pending.Process)
	assert.NotEmpty(t, v.Pending.ID)

	require.NoError(t, f.panel.HandleScreenshot(model.ProcessManual, " shot.png "))
	assert.Nil(t, f.panel.View().Pending)
	assert.Equal(t, []ScreenshotResult{{Process: model.ProcessManual, Name: "shot.png"}}, got)
}

func TestHandleScreenshotRejectsPaths(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"", " ", "..", "../x.png", `dir\x.png`, "a/b.png"} {
		assert.ErrorIs(t, f.panel.HandleScreenshot(model.ProcessAuto, name), ErrInvalidScreenshotName, name)
	}
}

func TestStatusAndRecentEventsAreMirrored(t *testing.T) {
	f := newFixture(t)
	store := eventlog.NewStore()
	store.Attach(f.logs)
	var updated []model.EventLog
	f.events.EventLogUpdated.SubscribeFunc(func(e model.EventLog) { updated = append(updated, e) })

	f.events.StatusUpdated.Publish(model.StatusPartialSuccess)
	f.logs.Report(model.StatusSuccess, "Trading Status Sent")
	f.logs.Report(model.StatusFailed, "Screenshot Sent")

	v := f.panel.View()
	assert.Equal(t, model.StatusPartialSuccess, v.Status)
	require.Len(t, v.Recent, 2)
	assert.Equal(t, "Screenshot Sent", v.Recent[1].Message)
	require.Len(t, updated, 2)
	assert.Equal(t, model.StatusFailed, updated[1].Status)
}

func TestAutoScreenshotPendingSignal(t *testing.T) {
	f := newFixture(t)
	n := count(f.events.AutoScreenshotAwaitingProcessing)
	f.panel.NotifyAutoScreenshotPending()
	assert.Equal(t, 1, *n)
}
