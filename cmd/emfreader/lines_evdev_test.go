package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"emfreader/internal/buttons"
)

func encodeInputEvents(t *testing.T, evs ...inputEvent) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, ev := range evs {
		if err := binary.Write(&buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return &buf
}

func TestReadKeyEvents(t *testing.T) {
	keys := newKeyMap(KeysConfig{Hidden: defaultKeyHidden, Left: defaultKeyLeft, Right: defaultKeyRight})
	r := encodeInputEvents(t,
		inputEvent{Type: evKey, Code: defaultKeyHidden, Value: keyPress},
		inputEvent{Type: 0x00, Code: 0, Value: 0}, // EV_SYN
		inputEvent{Type: evKey, Code: defaultKeyHidden, Value: keyRepeat},
		inputEvent{Type: evKey, Code: 30, Value: keyPress}, // KEY_A, unmapped
		inputEvent{Type: evKey, Code: defaultKeyHidden, Value: keyRelease},
		inputEvent{Type: evKey, Code: defaultKeyRight, Value: keyPress},
	)

	events := make(chan Event, 8)
	err := readKeyEvents(context.Background(), r, keys, events, testLogger())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want EOF", err)
	}
	close(events)

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	want := []Event{
		ButtonPress{Channel: buttons.HiddenButton},
		ButtonRelease{Channel: buttons.HiddenButton},
		ButtonPress{Channel: buttons.ToggleRight},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestReadKeyEventsStopsOnCancel(t *testing.T) {
	keys := newKeyMap(KeysConfig{Hidden: defaultKeyHidden, Left: defaultKeyLeft, Right: defaultKeyRight})
	r := encodeInputEvents(t, inputEvent{Type: evKey, Code: defaultKeyLeft, Value: keyPress})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and unread: only cancellation can release the send.
	if err := readKeyEvents(ctx, r, keys, make(chan Event), testLogger()); err != nil {
		t.Fatalf("err = %v, want nil after cancel", err)
	}
}

func TestValidateEvdevKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIO.Backend = backendEvdev
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default evdev config invalid: %v", err)
	}

	cfg.GPIO.Evdev.Keys.Left = cfg.GPIO.Evdev.Keys.Right
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate key code error")
	}
}
