package main

import (
	"context"
	"log/slog"
	"time"

	"emfreader/internal/buttons"
	"emfreader/internal/navigation"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules:
//   - The daemon loop is the only goroutine that touches the debouncer, the
//     navigator and the simulated lines.
//   - Each tick runs Poll then Update, then the host-side mode hooks, then
//     drains the trigger latch (the daemon plays the EMF/audio collaborator).
//   - IPC and websocket goroutines reach the state only through Events.
//   - State changes leave the loop as StateBroadcasts; a full queue drops them.
//
// ============================================================================

// Clock is the monotonic millisecond counter the scan loop runs on.
type Clock interface {
	NowMillis() uint32
}

// Lines is a button backend that must be released on shutdown.
type Lines interface {
	buttons.Lines
	Close() error
}

// daemon bundles the loop-owned state.
type daemon struct {
	lines    Lines
	sim      *simLines // nil unless the sim backend is active
	backend  string
	deb      *buttons.Debouncer
	nav      *navigation.Navigator
	wakeMode navigation.Mode
	clock    Clock
	now      uint32 // ms of the latest tick

	broadcasts chan<- StateBroadcast
	pending    []StateBroadcast

	logger *slog.Logger
}

type daemonConfig struct {
	Lines      Lines
	Backend    string
	Navigator  navigation.Config
	WakeMode   navigation.Mode
	Clock      Clock
	Broadcasts chan<- StateBroadcast
	Logger     *slog.Logger
}

func newDaemon(cfg daemonConfig) *daemon {
	d := &daemon{
		lines:      cfg.Lines,
		backend:    cfg.Backend,
		wakeMode:   cfg.WakeMode,
		clock:      cfg.Clock,
		broadcasts: cfg.Broadcasts,
		logger:     cfg.Logger,
	}
	if sim, ok := cfg.Lines.(*simLines); ok {
		d.sim = sim
	}
	d.deb = buttons.NewDebouncer(cfg.Lines)
	d.nav = navigation.New(d.deb, cfg.Navigator, navigation.Hooks{
		ModeChanged: d.onModeChanged,
		Dispatched:  d.onDispatched,
	})
	return d
}

func (d *daemon) onModeChanged(from, to navigation.Mode) {
	d.logger.Info("mode changed", "from", from, "to", to)
	d.queue(BroadcastModeChanged{From: from, To: to, At: time.Now().UTC()})
}

func (d *daemon) onDispatched(ch buttons.Channel, a navigation.Action) {
	mode := d.nav.Mode()
	d.logger.Debug("button action", "channel", ch, "action", a, "mode", mode)
	d.queue(BroadcastButtonAction{Channel: ch, Action: a, Mode: mode, At: time.Now().UTC()})
}

func (d *daemon) queue(b StateBroadcast) {
	d.pending = append(d.pending, b)
}

// flush hands queued broadcasts to the websocket side without blocking.
func (d *daemon) flush() {
	if len(d.pending) == 0 {
		return
	}
	if d.broadcasts == nil {
		d.pending = d.pending[:0]
		return
	}
	for _, b := range d.pending {
		select {
		case d.broadcasts <- b:
		default:
			d.logger.Warn("broadcast queue full, dropping state change", "type", b)
		}
	}
	d.pending = d.pending[:0]
}

// start configures the lines and arms the navigator. Call once before the first tick.
func (d *daemon) start() {
	d.now = d.clock.NowMillis()
	d.deb.Enable()
	d.nav.InitAt(d.now)
	d.logger.Info("button scan started", "backend", d.backend, "mode", d.nav.Mode(), "hold_delay", d.nav.HoldDelay())
}

// stop parks the lines at the released level and releases the backend.
func (d *daemon) stop() {
	d.deb.Disable()
	if err := d.lines.Close(); err != nil {
		d.logger.Warn("failed to release button lines", "error", err)
	}
	d.flush()
}

// tick runs one scan cycle at now (ms).
func (d *daemon) tick(now uint32) {
	d.now = now
	d.deb.Poll()
	d.nav.Update(now)
	d.runModeHooks()

	if d.nav.TriggerEventAndClear() {
		mode := d.nav.Mode()
		d.logger.Info("trigger", "mode", mode)
		d.queue(BroadcastTrigger{Mode: mode, At: time.Now().UTC()})
	}

	d.flush()
}

// runModeHooks completes the transient system modes.
func (d *daemon) runModeHooks() {
	switch d.nav.Mode() {
	case navigation.GoToSleep:
		d.nav.SetMode(navigation.Sleeping)

	case navigation.Initialization:
		// Re-arm from a clean slate so the waking click cannot leak into the
		// next mode, and a button still held waits a full hold delay.
		d.deb.Enable()
		d.nav.InitAt(d.now)
		d.nav.SetMode(d.wakeMode)
	}
}

// handle applies one external event.
func (d *daemon) handle(ev Event) {
	switch e := ev.(type) {
	case ButtonPress:
		d.drive(e.Channel, true)

	case ButtonRelease:
		d.drive(e.Channel, false)

	case SetMode:
		if !d.nav.SetMode(e.Mode) {
			d.logger.Warn("mode rejected", "mode", e.Mode)
		}

	case Sleep:
		d.nav.SetMode(navigation.GoToSleep)

	case Reset:
		d.logger.Info("navigator reset")
		d.nav.Reset(d.now)

	case RequestStateSnapshot:
		if e.Reply == nil {
			return
		}
		select {
		case e.Reply <- d.snapshot():
		default:
			d.logger.Warn("snapshot reply dropped (receiver not ready)")
		}

	default:
		d.logger.Debug("ignoring event", "type", ev)
	}

	d.flush()
}

func (d *daemon) drive(ch buttons.Channel, pressed bool) {
	if d.sim == nil {
		d.logger.Warn("virtual button ignored (hardware backend)", "channel", ch, "backend", d.backend)
		return
	}
	if !d.sim.set(ch, pressed) {
		d.logger.Warn("virtual button ignored", "channel", ch)
	}
}

func (d *daemon) snapshot() StateSnapshot {
	states := d.deb.Snapshot()
	channels := make(map[string]string, len(states))
	for _, ch := range buttons.Channels() {
		channels[ch.String()] = states[ch].String()
	}
	return StateSnapshot{
		Mode:        d.nav.Mode(),
		SavedMode:   d.nav.SavedMode(),
		Channels:    channels,
		HoldDelayMS: d.nav.HoldDelay().Milliseconds(),
		Backend:     d.backend,
		At:          time.Now().UTC(),
	}
}

// runDaemon is the main daemon loop. It exits when ctx is canceled or the
// events channel is closed, parking the lines on the way out.
func runDaemon(ctx context.Context, events <-chan Event, d *daemon, interval time.Duration) {
	if interval <= 0 {
		interval = buttons.DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.start()
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				d.logger.Info("daemon stopping (events channel closed)")
				return
			}
			d.handle(ev)

		case <-ticker.C:
			d.tick(d.clock.NowMillis())
		}
	}
}
