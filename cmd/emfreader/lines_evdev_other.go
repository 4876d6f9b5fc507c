//go:build !linux

package main

// eventTime mirrors the 64-bit timeval; evdev devices only exist on linux.
type eventTime struct {
	Sec  int64
	Usec int64
}
