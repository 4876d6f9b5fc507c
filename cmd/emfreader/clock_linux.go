//go:build linux

package main

import "golang.org/x/sys/unix"

// monotonicClock reads CLOCK_MONOTONIC relative to the moment the clock was
// created, so the counter starts near zero when the daemon starts. The
// millisecond value is truncated to 32 bits and wraps after ~49.7 days; the
// navigator compares it wrap-safely.
type monotonicClock struct {
	base uint32
}

func newMonotonicClock() Clock { return monotonicClock{base: readMonotonicMillis()} }

func (c monotonicClock) NowMillis() uint32 {
	return readMonotonicMillis() - c.base
}

func readMonotonicMillis() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Nano() / 1e6)
}
