package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"emfreader/internal/buttons"
)

// The evdev backend reads buttons exposed by the kernel gpio-keys driver.
// A reader goroutine turns key events into ButtonPress/ButtonRelease events;
// the daemon loop applies them to a simLines level store, so the debouncer
// still polls levels on its own cadence.

// Linux input_event (from <linux/input.h>):
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
// timeval follows the platform word size, so a record is 24 bytes on 64-bit
// and 16 bytes on 32-bit kernels (armv7 Raspberry Pi OS).
type inputEvent struct {
	Time  eventTime
	Type  uint16
	Code  uint16
	Value int32
}

const (
	evKey = 0x01

	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// keyMap maps evdev key codes to channels.
type keyMap map[uint16]buttons.Channel

func newKeyMap(k KeysConfig) keyMap {
	return keyMap{
		uint16(k.Hidden): buttons.HiddenButton,
		uint16(k.Left):   buttons.ToggleLeft,
		uint16(k.Right):  buttons.ToggleRight,
	}
}

// openEvdevDevice opens the input device for reading.
func openEvdevDevice(path string) (*os.File, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("open input device %s: %w", path, err)
	}
	return f, nil
}

// readKeyEvents decodes input events from r and queues button events until
// r fails or ctx is canceled. Closing r is how the caller unblocks it.
func readKeyEvents(ctx context.Context, r io.Reader, keys keyMap, events chan<- Event, logger *slog.Logger) error {
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read input event: %w", err)
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}
		if ev.Type != evKey {
			continue
		}
		ch, ok := keys[ev.Code]
		if !ok {
			continue
		}

		var out Event
		switch ev.Value {
		case keyPress:
			out = ButtonPress{Channel: ch}
		case keyRelease:
			out = ButtonRelease{Channel: ch}
		default:
			// keyRepeat: the line is still low; nothing to change.
			continue
		}

		select {
		case events <- out:
		case <-ctx.Done():
			return nil
		}
		logger.Debug("input key", "channel", ch, "code", ev.Code, "value", ev.Value)
	}
}
