//go:build linux

package main

import (
	"encoding/binary"
	"strconv"
	"testing"
)

func TestInputEventSizeMatchesKernel(t *testing.T) {
	// Two words of timeval, then type, code and value.
	want := 2*strconv.IntSize/8 + 8
	if got := binary.Size(inputEvent{}); got != want {
		t.Fatalf("input_event size = %d, want %d on %d-bit", got, want, strconv.IntSize)
	}
}
