// Package navigation turns the per-tick button classifications into click and
// hold actions and drives the device mode state machine with them.
//
// A Navigator is owned by a single goroutine. Update is expected to run once
// per poll tick, right after the debouncer's Poll.
package navigation

import (
	"fmt"
	"time"

	"emfreader/internal/buttons"
)

// DefaultHoldDelay is how long a channel must stay held, measured from the
// last gate reset, before a hold action fires.
const DefaultHoldDelay = 750 * time.Millisecond

// StateReader is the read-only view of the debouncer the navigator consumes.
type StateReader interface {
	StateOf(ch buttons.Channel) buttons.Classification
}

// Action is a discrete navigation action dispatched for a channel.
type Action int

const (
	Click Action = iota
	Hold
)

func (a Action) String() string {
	switch a {
	case Click:
		return "click"
	case Hold:
		return "hold"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// GateScope selects which gates are marked processed when an action fires.
type GateScope int

const (
	// GateChannel marks only the triggering channel's gate.
	GateChannel GateScope = iota
	// GateAll marks every channel's gate whenever any channel fires.
	// Kept selectable until it is confirmed against the deployed device.
	GateAll
)

func (s GateScope) String() string {
	switch s {
	case GateChannel:
		return "channel"
	case GateAll:
		return "all"
	default:
		return fmt.Sprintf("gate_scope(%d)", int(s))
	}
}

// ParseGateScope converts "channel" or "all" to a GateScope.
func ParseGateScope(s string) (GateScope, error) {
	switch s {
	case "channel", "":
		return GateChannel, nil
	case "all":
		return GateAll, nil
	default:
		return 0, fmt.Errorf("invalid gate scope %q (must be channel or all)", s)
	}
}

// Config tunes a Navigator. A zero HoldDelay selects DefaultHoldDelay.
// InitialMode is used as given, so the zero Config starts in GoToSleep;
// ExitAudioSelection and out-of-range values fall back to Initialization.
type Config struct {
	HoldDelay   time.Duration
	GateScope   GateScope
	InitialMode Mode
}

// Hooks are optional observers invoked synchronously from Update/SetMode.
// They must not call back into the Navigator.
type Hooks struct {
	// ModeChanged fires after every assignment that changes the current mode.
	ModeChanged func(from, to Mode)
	// Dispatched fires when a click or hold passes its gate, before the handler runs.
	Dispatched func(ch buttons.Channel, a Action)
}

// Behavior maps a mode to the handler that runs for it. Modes with no entry are no-ops.
type Behavior map[Mode]func(n *Navigator)

type binding struct {
	click Behavior
	hold  Behavior
}

type gate struct {
	lastInteraction uint32 // ms
	processed       bool
}

// Navigator owns the per-channel gates, the current mode, the mode saved
// before entering settings, and the trigger latch.
type Navigator struct {
	input  StateReader
	holdMS uint32
	scope  GateScope
	hooks  Hooks

	gates    [buttons.NumChannels]gate
	bindings [buttons.NumChannels]binding

	mode      Mode
	saved     Mode
	trigger   bool
	initState Mode
}

// New returns a navigator reading classifications from input, with the
// reference bindings installed and the gates reset.
func New(input StateReader, cfg Config, hooks Hooks) *Navigator {
	hold := cfg.HoldDelay
	if hold <= 0 {
		hold = DefaultHoldDelay
	}
	initial := cfg.InitialMode
	if initial >= NumModes || initial == ExitAudioSelection {
		initial = Initialization
	}

	n := &Navigator{
		input:     input,
		holdMS:    uint32(hold / time.Millisecond),
		scope:     cfg.GateScope,
		hooks:     hooks,
		mode:      initial,
		initState: initial,
	}
	n.bindings = defaultBindings()
	n.Init()
	return n
}

// Init resets every channel gate to (0, not processed).
func (n *Navigator) Init() { n.InitAt(0) }

// InitAt resets every channel gate to (now, not processed), so a button
// already held when the gates are re-armed waits a full hold delay.
func (n *Navigator) InitAt(now uint32) {
	for i := range n.gates {
		n.gates[i] = gate{lastInteraction: now}
	}
}

// Update inspects every channel's classification and dispatches at most one
// action per press-or-hold episode. now is a monotonic millisecond counter;
// wraparound is tolerated.
func (n *Navigator) Update(now uint32) {
	for ch := buttons.Channel(0); ch < buttons.NumChannels; ch++ {
		g := &n.gates[ch]

		switch state := n.input.StateOf(ch); {
		case state == buttons.JustReleased:
			// Clicks fire on release so a hold never also produces a click.
			g.lastInteraction = now
			if !g.processed {
				n.markProcessed(ch)
				n.dispatch(ch, Click)
			}

		case state == buttons.Held && after(now, g.lastInteraction+n.holdMS):
			g.lastInteraction = now
			if !g.processed {
				n.markProcessed(ch)
				n.dispatch(ch, Hold)
			}

		case state == buttons.Idle:
			g.lastInteraction = now
			g.processed = false
		}
	}
}

// after reports whether a is later than b on a wrapping uint32 clock.
func after(a, b uint32) bool {
	return int32(a-b) > 0
}

func (n *Navigator) markProcessed(ch buttons.Channel) {
	if n.scope == GateAll {
		for i := range n.gates {
			n.gates[i].processed = true
		}
		return
	}
	n.gates[ch].processed = true
}

func (n *Navigator) dispatch(ch buttons.Channel, a Action) {
	if n.hooks.Dispatched != nil {
		n.hooks.Dispatched(ch, a)
	}
	switch a {
	case Click:
		n.OnClick(ch)
	case Hold:
		n.OnHold(ch)
	}
}

// OnClick runs the click behavior bound to ch for the current mode.
// Unknown channels and unbound modes are no-ops.
func (n *Navigator) OnClick(ch buttons.Channel) {
	if !ch.Valid() {
		return
	}
	n.run(n.bindings[ch].click)
}

// OnHold runs the hold behavior bound to ch for the current mode.
// Unknown channels and unbound modes are no-ops.
func (n *Navigator) OnHold(ch buttons.Channel) {
	if !ch.Valid() {
		return
	}
	n.run(n.bindings[ch].hold)
}

func (n *Navigator) run(b Behavior) {
	if h, ok := b[n.mode]; ok && h != nil {
		h(n)
	}
}

// Bind replaces the click and hold behaviors of ch. A nil Behavior disables that action.
func (n *Navigator) Bind(ch buttons.Channel, click, hold Behavior) {
	if !ch.Valid() {
		return
	}
	n.bindings[ch] = binding{click: click, hold: hold}
}

// SetMode assigns m as the current mode. Values at or above NumModes are
// rejected and SetMode reports false. ExitAudioSelection redirects straight
// to the mode saved when settings were entered.
func (n *Navigator) SetMode(m Mode) bool {
	if m >= NumModes {
		return false
	}
	if m == ExitAudioSelection {
		m = n.saved
	}
	from := n.mode
	n.mode = m
	if from != m && n.hooks.ModeChanged != nil {
		n.hooks.ModeChanged(from, m)
	}
	return true
}

// Mode returns the current mode.
func (n *Navigator) Mode() Mode { return n.mode }

// SavedMode returns the mode that leaving settings will restore.
func (n *Navigator) SavedMode() Mode { return n.saved }

// HoldDelay returns the configured hold delay.
func (n *Navigator) HoldDelay() time.Duration {
	return time.Duration(n.holdMS) * time.Millisecond
}

// SetTriggerEvent raises the trigger latch.
func (n *Navigator) SetTriggerEvent() { n.trigger = true }

// TriggerEventAndClear returns the latch and clears it. There is no peek.
func (n *Navigator) TriggerEventAndClear() bool {
	t := n.trigger
	n.trigger = false
	return t
}

// Reset returns the navigator to its constructed state: gates re-armed at
// now, trigger dropped, mode back to the initial mode.
func (n *Navigator) Reset(now uint32) {
	n.InitAt(now)
	n.trigger = false
	n.saved = 0
	n.SetMode(n.initState)
}

// enterSettings remembers the current ring mode and opens audio selection.
func (n *Navigator) enterSettings() {
	n.saved = n.mode
	n.SetMode(SetAudioSelection)
}
