package main

import (
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args  []string
		types []string
		data  string // of the first step
	}{
		{[]string{"press", "hidden"}, []string{"press"}, `{"channel":"hidden"}`},
		{[]string{"release", "left"}, []string{"release"}, `{"channel":"left"}`},
		{[]string{"click", "right"}, []string{"press", "release"}, `{"channel":"right"}`},
		{[]string{"set-mode", "showcase"}, []string{"set_mode"}, `{"mode":"showcase"}`},
		{[]string{"sleep"}, []string{"sleep"}, ""},
		{[]string{"reset"}, []string{"reset"}, ""},
		{[]string{"status"}, []string{"status"}, ""},
	}

	for _, tt := range tests {
		steps, err := parseCommand(tt.args, time.Second)
		if err != nil {
			t.Fatalf("parseCommand(%v): %v", tt.args, err)
		}
		if len(steps) != len(tt.types) {
			t.Fatalf("parseCommand(%v) = %d steps, want %d", tt.args, len(steps), len(tt.types))
		}
		for i, s := range steps {
			if s.msg.Type != tt.types[i] {
				t.Fatalf("parseCommand(%v)[%d].Type = %q, want %q", tt.args, i, s.msg.Type, tt.types[i])
			}
		}
		if got := string(steps[0].msg.Data); got != tt.data {
			t.Fatalf("parseCommand(%v) data = %s, want %s", tt.args, got, tt.data)
		}
	}
}

func TestParseCommandHoldOutlastsDelay(t *testing.T) {
	steps, err := parseCommand([]string{"hold", "hidden"}, 750*time.Millisecond)
	if err != nil {
		t.Fatalf("parseCommand: %v", err)
	}
	if steps[0].pause <= 750*time.Millisecond {
		t.Fatalf("hold pause = %v, want longer than the hold delay", steps[0].pause)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, args := range [][]string{
		{"press"},
		{"press", "middle"},
		{"set-mode", "party"},
		{"explode"},
	} {
		if _, err := parseCommand(args, time.Second); err == nil {
			t.Fatalf("parseCommand(%v): expected error", args)
		}
	}
}
