package main

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"emfreader/internal/buttons"
)

// rpioLines drives the buttons through /dev/gpiomem on a Raspberry Pi.
// Buttons pull the line to ground when pressed.
type rpioLines struct {
	pins   [buttons.NumChannels]rpio.Pin
	pullUp bool
}

func openRPIOLines(cfg GPIOConfig) (*rpioLines, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	l := &rpioLines{pullUp: cfg.PullUp}
	l.pins[buttons.HiddenButton] = rpio.Pin(cfg.Pins.Hidden)
	l.pins[buttons.ToggleLeft] = rpio.Pin(cfg.Pins.Left)
	l.pins[buttons.ToggleRight] = rpio.Pin(cfg.Pins.Right)
	return l, nil
}

func (l *rpioLines) ReadLevel(ch buttons.Channel) bool {
	return l.pins[ch].Read() == rpio.High
}

func (l *rpioLines) ConfigureInput(ch buttons.Channel) {
	l.pins[ch].Input()
	if l.pullUp {
		l.pins[ch].PullUp()
	}
}

func (l *rpioLines) ConfigureOutputHigh(ch buttons.Channel) {
	l.pins[ch].Output()
	l.pins[ch].High()
}

func (l *rpioLines) Close() error {
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpio memory: %w", err)
	}
	return nil
}
