// Package buttons polls the prop's physical buttons and classifies each one
// into a per-tick transient state.
//
// The debouncer is edge-triggered: it compares the previous and current raw
// read of a channel, so Poll must run on a fixed cadence (DefaultPollInterval).
// Polling much slower than the cadence can miss JustPressed/JustReleased
// edges entirely.
package buttons

import (
	"fmt"
	"time"
)

// DefaultPollInterval is the reference scan cadence.
const DefaultPollInterval = 2 * time.Millisecond

// Channel identifies one physical input. The set is fixed at build time.
type Channel int

const (
	HiddenButton Channel = iota
	ToggleLeft
	ToggleRight

	// NumChannels is the number of channels; it is not a valid Channel.
	NumChannels
)

var channelNames = [NumChannels]string{
	HiddenButton: "hidden",
	ToggleLeft:   "left",
	ToggleRight:  "right",
}

func (c Channel) String() string {
	if c.Valid() {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Valid reports whether c is one of the configured channels.
func (c Channel) Valid() bool {
	return c >= 0 && c < NumChannels
}

// ParseChannel converts a channel name ("hidden", "left", "right") to a Channel.
func ParseChannel(s string) (Channel, error) {
	for i, name := range channelNames {
		if name == s {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q (must be hidden, left or right)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Channel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid channel %d", int(c))
	}
	return []byte(channelNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Channel) UnmarshalText(b []byte) error {
	v, err := ParseChannel(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Channels returns every channel in storage order.
func Channels() []Channel {
	out := make([]Channel, 0, NumChannels)
	for c := Channel(0); c < NumChannels; c++ {
		out = append(out, c)
	}
	return out
}

// Classification is the per-tick state of a channel.
type Classification int

const (
	Idle Classification = iota
	JustPressed
	Held
	JustReleased
)

func (s Classification) String() string {
	switch s {
	case Idle:
		return "idle"
	case JustPressed:
		return "just_pressed"
	case Held:
		return "held"
	case JustReleased:
		return "just_released"
	default:
		return fmt.Sprintf("classification(%d)", int(s))
	}
}

// Classify derives a classification from the previous and current pressed
// state of a single channel.
func Classify(last, current bool) Classification {
	switch {
	case !last && current:
		return JustPressed
	case last && current:
		return Held
	case last && !current:
		return JustReleased
	default:
		return Idle
	}
}

// Lines is the pin-level capability the debouncer consumes.
//
// ReadLevel returns the raw electrical level (true = high). Buttons are
// active low: a low level means pressed.
type Lines interface {
	ReadLevel(ch Channel) bool
	ConfigureInput(ch Channel)
	ConfigureOutputHigh(ch Channel)
}

// Debouncer owns the raw-read history and classification of every channel.
// It is not safe for concurrent use; Poll must never run concurrently with itself.
type Debouncer struct {
	lines Lines

	last    [NumChannels]bool
	current [NumChannels]bool
	state   [NumChannels]Classification
}

// NewDebouncer returns a debouncer reading from lines. Call Enable before the first Poll.
func NewDebouncer(lines Lines) *Debouncer {
	return &Debouncer{lines: lines}
}

// Enable configures every channel as an input and clears the read history.
func (d *Debouncer) Enable() {
	for ch := Channel(0); ch < NumChannels; ch++ {
		d.lines.ConfigureInput(ch)
		d.last[ch] = false
		d.current[ch] = false
	}
}

// Disable drives every line as an output at the released (high) level.
// The read history is left untouched.
func (d *Debouncer) Disable() {
	for ch := Channel(0); ch < NumChannels; ch++ {
		d.lines.ConfigureOutputHigh(ch)
	}
}

// Poll samples every channel once and recomputes its classification.
func (d *Debouncer) Poll() {
	for ch := Channel(0); ch < NumChannels; ch++ {
		d.current[ch] = !d.lines.ReadLevel(ch)
		d.state[ch] = Classify(d.last[ch], d.current[ch])
		d.last[ch] = d.current[ch]
	}
}

// StateOf returns the classification computed by the last Poll.
// It panics if ch is out of range: the channel set is fixed, so a bad id is a wiring bug.
func (d *Debouncer) StateOf(ch Channel) Classification {
	if !ch.Valid() {
		panic(fmt.Sprintf("buttons: channel %d out of range [0,%d)", int(ch), int(NumChannels)))
	}
	return d.state[ch]
}

// Snapshot returns the classification of every channel.
func (d *Debouncer) Snapshot() [NumChannels]Classification {
	return d.state
}
