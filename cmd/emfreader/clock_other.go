//go:build !linux

package main

import "time"

// monotonicClock falls back to the runtime's monotonic reading.
type monotonicClock struct {
	start time.Time
}

func newMonotonicClock() Clock { return monotonicClock{start: time.Now()} }

func (c monotonicClock) NowMillis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
