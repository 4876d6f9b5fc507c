package main

import (
	"encoding/json"
	"fmt"
	"time"

	"emfreader/internal/buttons"
	"emfreader/internal/navigation"
)

// ============================================================================
// Events - inputs to the daemon loop
// ============================================================================
// Events come from IPC clients and the state websocket. Only the daemon loop
// touches the debouncer and navigator; everything else talks to it through
// the events channel.
// ============================================================================

// Event is a marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// ButtonPress drives a simulated line low (pressed).
type ButtonPress struct {
	Channel buttons.Channel `json:"channel"`
}

func (ButtonPress) eventMarker() {}

// ButtonRelease drives a simulated line high (released).
type ButtonRelease struct {
	Channel buttons.Channel `json:"channel"`
}

func (ButtonRelease) eventMarker() {}

// SetMode asks the navigator's validated setter for a mode.
type SetMode struct {
	Mode navigation.Mode `json:"mode"`
}

func (SetMode) eventMarker() {}

// Sleep puts the device to sleep; a hidden click wakes it again.
type Sleep struct{}

func (Sleep) eventMarker() {}

// Reset returns the navigator to its initial mode with the gates re-armed
// and the trigger latch dropped.
type Reset struct{}

func (Reset) eventMarker() {}

// StatusQuery is the wire form of a snapshot request. The IPC layer turns it
// into a RequestStateSnapshot carrying a reply channel.
type StatusQuery struct{}

func (StatusQuery) eventMarker() {}

// RequestStateSnapshot asks the loop for a StateSnapshot. Not serializable.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// StateSnapshot is a copy of the daemon-owned state safe to hand to other goroutines.
type StateSnapshot struct {
	Mode        navigation.Mode   `json:"mode"`
	SavedMode   navigation.Mode   `json:"saved_mode"`
	Channels    map[string]string `json:"channels"`
	HoldDelayMS int64             `json:"hold_delay_ms"`
	Backend     string            `json:"backend"`
	At          time.Time         `json:"at"`
}

// ============================================================================
// Broadcasts - outputs of the daemon loop
// ============================================================================

// StateBroadcast is a state change published to websocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastModeChanged is emitted on every mode change.
type BroadcastModeChanged struct {
	From navigation.Mode
	To   navigation.Mode
	At   time.Time
}

func (BroadcastModeChanged) broadcastMarker() {}

// BroadcastButtonAction is emitted when a click or hold passes its gate.
type BroadcastButtonAction struct {
	Channel buttons.Channel
	Action  navigation.Action
	Mode    navigation.Mode
	At      time.Time
}

func (BroadcastButtonAction) broadcastMarker() {}

// BroadcastTrigger is emitted when the daemon consumes the trigger latch.
type BroadcastTrigger struct {
	Mode navigation.Mode
	At   time.Time
}

func (BroadcastTrigger) broadcastMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "press":
		var e ButtonPress
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonPress: %w", err)
		}
		return e, nil

	case "release":
		var e ButtonRelease
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonRelease: %w", err)
		}
		return e, nil

	case "set_mode":
		var e SetMode
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetMode: %w", err)
		}
		return e, nil

	case "sleep":
		return Sleep{}, nil

	case "reset":
		return Reset{}, nil

	case "status":
		return StatusQuery{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ButtonPress:
		env.Type = "press"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonPress: %w", err)
		}
		env.Data = data

	case ButtonRelease:
		env.Type = "release"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonRelease: %w", err)
		}
		env.Data = data

	case SetMode:
		env.Type = "set_mode"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal SetMode: %w", err)
		}
		env.Data = data

	case Sleep:
		env.Type = "sleep"
	case Reset:
		env.Type = "reset"
	case StatusQuery:
		env.Type = "status"

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
