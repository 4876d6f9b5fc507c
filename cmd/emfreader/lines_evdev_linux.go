//go:build linux

package main

import "golang.org/x/sys/unix"

// eventTime is the kernel timeval for this GOARCH.
type eventTime = unix.Timeval
