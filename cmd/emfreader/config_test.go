package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emfreader/internal/navigation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emfreader.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	nav, wake, err := cfg.NavigatorSettings()
	if err != nil {
		t.Fatalf("NavigatorSettings: %v", err)
	}
	if nav.HoldDelay != navigation.DefaultHoldDelay {
		t.Fatalf("hold delay = %v, want %v", nav.HoldDelay, navigation.DefaultHoldDelay)
	}
	if nav.GateScope != navigation.GateChannel {
		t.Fatalf("gate scope = %v, want channel", nav.GateScope)
	}
	if nav.InitialMode != navigation.Initialization || wake != navigation.PropAudioMode {
		t.Fatalf("modes = %v/%v, want initialization/prop_audio", nav.InitialMode, wake)
	}
	if cfg.PollInterval() != 2*time.Millisecond {
		t.Fatalf("poll interval = %v, want 2ms", cfg.PollInterval())
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
gpio:
  backend: sim
  pins:
    hidden: 5
poll:
  interval_ms: 4
navigation:
  hold_delay_ms: 1000
  gate_scope: all
  wake_mode: emf
logging:
  level: debug
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.GPIO.Backend != backendSim || cfg.GPIO.Pins.Hidden != 5 {
		t.Fatalf("gpio = %+v", cfg.GPIO)
	}
	// Unset keys keep their defaults.
	if cfg.GPIO.Pins.Left != defaultPinLeft || !cfg.GPIO.PullUp {
		t.Fatalf("defaults lost: %+v", cfg.GPIO)
	}
	if cfg.IPC.SocketPath != defaultIPCSocket {
		t.Fatalf("socket path = %q, want default", cfg.IPC.SocketPath)
	}

	nav, wake, err := cfg.NavigatorSettings()
	if err != nil {
		t.Fatalf("NavigatorSettings: %v", err)
	}
	if nav.HoldDelay != time.Second || nav.GateScope != navigation.GateAll || wake != navigation.EmfMode {
		t.Fatalf("navigator settings = %+v wake=%v", nav, wake)
	}
}

func TestLoadConfigFileRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "navigation:\n  hold_delay: 500\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadConfigFileRejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "poll:\n  interval_ms: 2\n---\n{}\n")
	if _, err := LoadConfigFile(path); err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing document error", err)
	}
}

func TestFlagOverridesApply(t *testing.T) {
	cfg := DefaultConfig()
	backend := backendSim
	hold := 300
	scope := "all"
	listen := ""
	FlagOverrides{
		GPIOBackend: &backend,
		HoldDelayMS: &hold,
		GateScope:   &scope,
		WSListen:    &listen,
	}.Apply(&cfg)

	if cfg.GPIO.Backend != backendSim || cfg.Navigation.HoldDelayMS != 300 || cfg.Navigation.GateScope != "all" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Explicit zero values are applied too.
	if cfg.WS.Listen != "" {
		t.Fatalf("ws listen = %q, want empty", cfg.WS.Listen)
	}
	// Untouched fields stay.
	if cfg.Poll.IntervalMS != defaultPollIntervalMS {
		t.Fatalf("poll interval changed: %d", cfg.Poll.IntervalMS)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.GPIO.Backend = "sysfs" }},
		{"duplicate pin", func(c *Config) { c.GPIO.Pins.Left = c.GPIO.Pins.Hidden }},
		{"pin out of range", func(c *Config) { c.GPIO.Pins.Right = 40 }},
		{"zero poll interval", func(c *Config) { c.Poll.IntervalMS = 0 }},
		{"hold not above poll", func(c *Config) { c.Navigation.HoldDelayMS = 2 }},
		{"bad gate scope", func(c *Config) { c.Navigation.GateScope = "some" }},
		{"bad initial mode", func(c *Config) { c.Navigation.InitialMode = "disco" }},
		{"exit as initial mode", func(c *Config) { c.Navigation.InitialMode = "exit_audio_selection" }},
		{"wake mode outside ring", func(c *Config) { c.Navigation.WakeMode = "sleeping" }},
		{"empty socket", func(c *Config) { c.IPC.SocketPath = "" }},
		{"relative ws path", func(c *Config) { c.WS.Path = "ws" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidateSimIgnoresPins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GPIO.Backend = backendSim
	cfg.GPIO.Pins = PinsConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sim backend should not check pins: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/emf.sock"); got != filepath.Join(home, "emf.sock") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/tmp/emf.sock"); got != "/tmp/emf.sock" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
