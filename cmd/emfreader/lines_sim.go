package main

import "emfreader/internal/buttons"

// simLines is a Lines backend with no hardware behind it. Levels are driven
// by ButtonPress/ButtonRelease events, so it must only be touched from the
// daemon loop.
type simLines struct {
	level  [buttons.NumChannels]bool // true = high = released
	output [buttons.NumChannels]bool
}

func newSimLines() *simLines {
	s := &simLines{}
	for i := range s.level {
		s.level[i] = true
	}
	return s
}

func (s *simLines) ReadLevel(ch buttons.Channel) bool { return s.level[ch] }

func (s *simLines) ConfigureInput(ch buttons.Channel) { s.output[ch] = false }

func (s *simLines) ConfigureOutputHigh(ch buttons.Channel) {
	s.output[ch] = true
	s.level[ch] = true
}

// set drives a line to the pressed (low) or released (high) level.
// Lines configured as outputs ignore external drive.
func (s *simLines) set(ch buttons.Channel, pressed bool) bool {
	if !ch.Valid() || s.output[ch] {
		return false
	}
	s.level[ch] = !pressed
	return true
}

func (s *simLines) Close() error { return nil }
