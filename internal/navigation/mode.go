package navigation

import "fmt"

// Mode is the device's top-level operating state.
type Mode uint8

const (
	GoToSleep Mode = iota
	Sleeping
	Initialization
	PropAudioMode
	PropSilenceMode
	ShowcaseMode
	EmfMode
	SetAudioSelection
	ExitAudioSelection

	// NumModes is the terminal sentinel; SetMode rejects it and anything above.
	NumModes
)

var modeNames = [NumModes]string{
	GoToSleep:          "go_to_sleep",
	Sleeping:           "sleeping",
	Initialization:     "initialization",
	PropAudioMode:      "prop_audio",
	PropSilenceMode:    "prop_silence",
	ShowcaseMode:       "showcase",
	EmfMode:            "emf",
	SetAudioSelection:  "set_audio_selection",
	ExitAudioSelection: "exit_audio_selection",
}

// ring is the cyclic set of normal operating modes, in navigation order.
// System and settings states are not part of it.
var ring = [...]Mode{PropAudioMode, PropSilenceMode, ShowcaseMode, EmfMode}

func (m Mode) String() string {
	if m < NumModes {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode converts a mode name such as "showcase" to a Mode.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler so modes travel as names in JSON.
func (m Mode) MarshalText() ([]byte, error) {
	if m >= NumModes {
		return nil, fmt.Errorf("invalid mode %d", uint8(m))
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// InRing reports whether m is one of the cyclic normal modes.
func (m Mode) InRing() bool {
	return ringIndex(m) >= 0
}

// Next returns the ring mode after m, wrapping from the last to the first.
// Modes outside the ring are returned unchanged.
func (m Mode) Next() Mode {
	i := ringIndex(m)
	if i < 0 {
		return m
	}
	return ring[(i+1)%len(ring)]
}

// Prev returns the ring mode before m, wrapping from the first to the last.
// Modes outside the ring are returned unchanged.
func (m Mode) Prev() Mode {
	i := ringIndex(m)
	if i < 0 {
		return m
	}
	return ring[(i+len(ring)-1)%len(ring)]
}

// RingModes returns the cyclic modes in navigation order.
func RingModes() []Mode {
	out := make([]Mode, len(ring))
	copy(out, ring[:])
	return out
}

func ringIndex(m Mode) int {
	for i, r := range ring {
		if r == m {
			return i
		}
	}
	return -1
}
