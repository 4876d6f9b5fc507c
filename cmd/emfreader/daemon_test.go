package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"emfreader/internal/buttons"
	"emfreader/internal/navigation"
)

const testTick = 2 // ms

// testDaemon drives a daemon on the sim backend with an explicit clock.
type testDaemon struct {
	t   *testing.T
	d   *daemon
	sim *simLines
	bc  chan StateBroadcast
	now uint32
}

func newTestDaemon(t *testing.T, nav navigation.Config) *testDaemon {
	t.Helper()
	sim := newSimLines()
	bc := make(chan StateBroadcast, 256)
	d := newDaemon(daemonConfig{
		Lines:      sim,
		Backend:    backendSim,
		Navigator:  nav,
		WakeMode:   navigation.PropAudioMode,
		Clock:      &fakeClock{},
		Broadcasts: bc,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	d.start()
	return &testDaemon{t: t, d: d, sim: sim, bc: bc}
}

// advance runs ticks until ms milliseconds have elapsed.
func (td *testDaemon) advance(ms uint32) {
	for end := td.now + ms; td.now != end; {
		td.now += testTick
		td.d.tick(td.now)
	}
}

func (td *testDaemon) press(ch buttons.Channel)   { td.d.handle(ButtonPress{Channel: ch}) }
func (td *testDaemon) release(ch buttons.Channel) { td.d.handle(ButtonRelease{Channel: ch}) }

// hold presses ch for ms milliseconds and lets the line settle afterwards.
func (td *testDaemon) hold(ch buttons.Channel, ms uint32) {
	td.press(ch)
	td.advance(ms)
	td.release(ch)
	td.advance(10)
}

func (td *testDaemon) click(ch buttons.Channel) { td.hold(ch, 50) }

func (td *testDaemon) wantMode(want navigation.Mode) {
	td.t.Helper()
	if got := td.d.nav.Mode(); got != want {
		td.t.Fatalf("mode = %v, want %v", got, want)
	}
}

// drain returns every broadcast queued so far.
func (td *testDaemon) drain() []StateBroadcast {
	var out []StateBroadcast
	for {
		select {
		case b := <-td.bc:
			out = append(out, b)
		default:
			return out
		}
	}
}

type fakeClock struct{ ms uint32 }

func (c *fakeClock) NowMillis() uint32 {
	c.ms += testTick
	return c.ms
}

func TestDaemon_InitializationAdvancesToWakeMode(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.wantMode(navigation.PropAudioMode)

	var changed []BroadcastModeChanged
	for _, b := range td.drain() {
		if mc, ok := b.(BroadcastModeChanged); ok {
			changed = append(changed, mc)
		}
	}
	if len(changed) != 1 || changed[0].From != navigation.Initialization || changed[0].To != navigation.PropAudioMode {
		t.Fatalf("mode_changed broadcasts = %+v, want one initialization -> prop_audio", changed)
	}
}

func TestDaemon_HiddenHoldEntersAndLeavesSettings(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.hold(buttons.ToggleRight, 800)
	td.wantMode(navigation.PropSilenceMode)

	td.hold(buttons.HiddenButton, 800)
	td.wantMode(navigation.SetAudioSelection)
	if got := td.d.nav.SavedMode(); got != navigation.PropSilenceMode {
		t.Fatalf("saved mode = %v, want prop_silence", got)
	}

	// A long hold still leaves settings exactly once.
	td.hold(buttons.HiddenButton, 2000)
	td.wantMode(navigation.PropSilenceMode)
}

func TestDaemon_ShortPressDoesNotHold(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.hold(buttons.ToggleLeft, 700)
	td.wantMode(navigation.PropAudioMode)
}

func TestDaemon_SleepAndWake(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.hold(buttons.ToggleRight, 800)
	td.hold(buttons.ToggleRight, 800)
	td.wantMode(navigation.ShowcaseMode)

	td.d.handle(Sleep{})
	td.advance(testTick)
	td.wantMode(navigation.Sleeping)

	// Toggles do nothing while asleep.
	td.hold(buttons.ToggleRight, 800)
	td.wantMode(navigation.Sleeping)

	td.click(buttons.HiddenButton)
	td.wantMode(navigation.PropAudioMode)
}

func TestDaemon_WakeWithToggleHeldWaitsForHoldDelay(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.now = 100000 // the host clock is far from zero
	td.advance(testTick)
	td.d.handle(Sleep{})
	td.advance(testTick)
	td.wantMode(navigation.Sleeping)

	// The toggle goes down while asleep and stays down across the wake.
	td.press(buttons.ToggleRight)
	td.advance(800)
	td.click(buttons.HiddenButton)
	td.wantMode(navigation.PropAudioMode)

	td.advance(700)
	td.wantMode(navigation.PropAudioMode)

	td.advance(100)
	td.wantMode(navigation.PropSilenceMode)
}

func TestDaemon_StartWithToggleHeldWaitsForHoldDelay(t *testing.T) {
	sim := newSimLines()
	sim.set(buttons.ToggleLeft, true)
	d := newDaemon(daemonConfig{
		Lines:     sim,
		Backend:   backendSim,
		Navigator: navigation.Config{InitialMode: navigation.ShowcaseMode},
		Clock:     &fakeClock{ms: 50000},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	d.start()

	now := d.now
	for end := now + 700; now != end; {
		now += testTick
		d.tick(now)
	}
	if got := d.nav.Mode(); got != navigation.ShowcaseMode {
		t.Fatalf("mode = %v after 700ms of a held toggle, want showcase", got)
	}
	for end := now + 100; now != end; {
		now += testTick
		d.tick(now)
	}
	if got := d.nav.Mode(); got != navigation.PropSilenceMode {
		t.Fatalf("mode = %v, want prop_silence once the hold delay passed", got)
	}
}

func TestDaemon_ResetEvent(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.d.handle(SetMode{Mode: navigation.EmfMode})
	td.d.nav.SetTriggerEvent()

	td.d.handle(Reset{})
	td.wantMode(navigation.Initialization)
	if td.d.nav.TriggerEventAndClear() {
		t.Fatalf("trigger latch survived reset")
	}

	td.advance(testTick)
	td.wantMode(navigation.PropAudioMode)
}

func TestDaemon_TriggerBroadcast(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.drain()

	td.click(buttons.HiddenButton)

	var triggers, clicks int
	for _, b := range td.drain() {
		switch ev := b.(type) {
		case BroadcastTrigger:
			triggers++
			if ev.Mode != navigation.PropAudioMode {
				t.Fatalf("trigger mode = %v, want prop_audio", ev.Mode)
			}
		case BroadcastButtonAction:
			clicks++
			if ev.Channel != buttons.HiddenButton || ev.Action != navigation.Click {
				t.Fatalf("button action = %+v, want hidden click", ev)
			}
		}
	}
	if triggers != 1 || clicks != 1 {
		t.Fatalf("triggers=%d clicks=%d, want 1 and 1", triggers, clicks)
	}

	// The latch was consumed by the daemon.
	if td.d.nav.TriggerEventAndClear() {
		t.Fatalf("trigger latch still raised after tick")
	}
}

func TestDaemon_NoTriggerInShowcase(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.d.handle(SetMode{Mode: navigation.ShowcaseMode})
	td.drain()

	td.click(buttons.HiddenButton)
	for _, b := range td.drain() {
		if _, ok := b.(BroadcastTrigger); ok {
			t.Fatalf("unexpected trigger in showcase mode")
		}
	}
}

func TestDaemon_SetModeEvent(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)

	td.d.handle(SetMode{Mode: navigation.EmfMode})
	td.wantMode(navigation.EmfMode)

	td.d.handle(SetMode{Mode: navigation.NumModes})
	td.wantMode(navigation.EmfMode)
}

func TestDaemon_Snapshot(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization, HoldDelay: 500 * time.Millisecond})
	td.advance(testTick)
	td.press(buttons.ToggleLeft)
	td.advance(2 * testTick)

	reply := make(chan StateSnapshot, 1)
	td.d.handle(RequestStateSnapshot{Reply: reply})

	var snap StateSnapshot
	select {
	case snap = <-reply:
	default:
		t.Fatalf("no snapshot reply")
	}

	if snap.Mode != navigation.PropAudioMode {
		t.Fatalf("snapshot mode = %v, want prop_audio", snap.Mode)
	}
	if snap.HoldDelayMS != 500 {
		t.Fatalf("snapshot hold delay = %d, want 500", snap.HoldDelayMS)
	}
	if snap.Backend != backendSim {
		t.Fatalf("snapshot backend = %q, want sim", snap.Backend)
	}
	if got := snap.Channels["left"]; got != "held" {
		t.Fatalf("left = %q, want held", got)
	}
	if got := snap.Channels["hidden"]; got != "idle" {
		t.Fatalf("hidden = %q, want idle", got)
	}
}

func TestDaemon_StopParksLinesHigh(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.advance(testTick)
	td.press(buttons.HiddenButton)

	td.d.stop()

	for _, ch := range buttons.Channels() {
		if !td.sim.level[ch] || !td.sim.output[ch] {
			t.Fatalf("channel %v not parked high as output", ch)
		}
	}
	if td.sim.set(buttons.HiddenButton, true) {
		t.Fatalf("parked line accepted external drive")
	}
}

func TestDaemon_FullBroadcastQueueDoesNotBlock(t *testing.T) {
	td := newTestDaemon(t, navigation.Config{InitialMode: navigation.Initialization})
	td.d.broadcasts = make(chan StateBroadcast) // unbuffered, nobody reading

	done := make(chan struct{})
	go func() {
		defer close(done)
		td.advance(testTick)
		td.d.handle(SetMode{Mode: navigation.EmfMode})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("daemon blocked on a full broadcast queue")
	}
}

func TestRunDaemon_StopsOnCancel(t *testing.T) {
	sim := newSimLines()
	d := newDaemon(daemonConfig{
		Lines:     sim,
		Backend:   backendSim,
		Navigator: navigation.Config{InitialMode: navigation.Initialization},
		WakeMode:  navigation.EmfMode,
		Clock:     &fakeClock{},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, d, time.Millisecond)
	}()

	reply := make(chan StateSnapshot, 1)
	waitUntil(t, time.Second, func() bool {
		events <- RequestStateSnapshot{Reply: reply}
		snap := <-reply
		return snap.Mode == navigation.EmfMode
	}, "daemon did not reach wake mode")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("runDaemon did not stop")
	}
	if !sim.output[buttons.HiddenButton] {
		t.Fatalf("lines not parked on shutdown")
	}
}
