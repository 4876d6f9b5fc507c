package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"emfreader/internal/navigation"
)

// Config is the top-level YAML configuration for the emfreader daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Button line backend and pin mapping
	GPIO GPIOConfig `yaml:"gpio"`

	// Scan cadence
	Poll PollConfig `yaml:"poll"`

	// Mode navigation tuning
	Navigation NavigationConfig `yaml:"navigation"`

	// IPC configuration (emf-ctl and scripts)
	IPC IPCConfig `yaml:"ipc"`

	// State websocket
	WS WSConfig `yaml:"ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type GPIOConfig struct {
	Backend string      `yaml:"backend"` // "rpio", "evdev" or "sim"
	Pins    PinsConfig  `yaml:"pins"`
	PullUp  bool        `yaml:"pull_up"`
	Evdev   EvdevConfig `yaml:"evdev"`
}

// PinsConfig maps channels to BCM GPIO numbers.
type PinsConfig struct {
	Hidden int `yaml:"hidden"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

// EvdevConfig selects a gpio-keys input device and its key codes.
type EvdevConfig struct {
	Device string     `yaml:"device"`
	Keys   KeysConfig `yaml:"keys"`
}

type KeysConfig struct {
	Hidden int `yaml:"hidden"`
	Left   int `yaml:"left"`
	Right  int `yaml:"right"`
}

type PollConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

type NavigationConfig struct {
	HoldDelayMS int    `yaml:"hold_delay_ms"`
	GateScope   string `yaml:"gate_scope"`   // "channel" or "all"
	InitialMode string `yaml:"initial_mode"` // mode at power-on
	WakeMode    string `yaml:"wake_mode"`    // ring mode entered once initialization completes
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type WSConfig struct {
	Listen string `yaml:"listen"` // empty disables the websocket server
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	backendRPIO  = "rpio"
	backendEvdev = "evdev"
	backendSim   = "sim"
)

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		GPIO: GPIOConfig{
			Backend: backendRPIO,
			Pins: PinsConfig{
				Hidden: defaultPinHidden,
				Left:   defaultPinLeft,
				Right:  defaultPinRight,
			},
			PullUp: true,
			Evdev: EvdevConfig{
				Device: defaultInputDevice,
				Keys: KeysConfig{
					Hidden: defaultKeyHidden,
					Left:   defaultKeyLeft,
					Right:  defaultKeyRight,
				},
			},
		},
		Poll: PollConfig{
			IntervalMS: defaultPollIntervalMS,
		},
		Navigation: NavigationConfig{
			HoldDelayMS: defaultHoldDelayMS,
			GateScope:   navigation.GateChannel.String(),
			InitialMode: navigation.Initialization.String(),
			WakeMode:    navigation.PropAudioMode.String(),
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		WS: WSConfig{
			Listen: defaultWSListen,
			Path:   defaultWSPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds flag values that were explicitly set on the command line.
// A nil pointer means "not set"; a non-nil pointer is applied even if it is a zero value.
type FlagOverrides struct {
	GPIOBackend *string
	InputDevice *string

	PollIntervalMS *int

	HoldDelayMS *int
	GateScope   *string
	InitialMode *string

	IPCSocketPath *string
	WSListen      *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.GPIOBackend != nil {
		cfg.GPIO.Backend = *o.GPIOBackend
	}
	if o.InputDevice != nil {
		cfg.GPIO.Evdev.Device = *o.InputDevice
	}
	if o.PollIntervalMS != nil {
		cfg.Poll.IntervalMS = *o.PollIntervalMS
	}
	if o.HoldDelayMS != nil {
		cfg.Navigation.HoldDelayMS = *o.HoldDelayMS
	}
	if o.GateScope != nil {
		cfg.Navigation.GateScope = *o.GateScope
	}
	if o.InitialMode != nil {
		cfg.Navigation.InitialMode = *o.InitialMode
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSListen != nil {
		cfg.WS.Listen = *o.WSListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// GPIO
	switch c.GPIO.Backend {
	case backendRPIO:
		pins := []int{c.GPIO.Pins.Hidden, c.GPIO.Pins.Left, c.GPIO.Pins.Right}
		seen := make(map[int]bool, len(pins))
		for _, p := range pins {
			if p < 0 || p > maxBCMPin {
				return fmt.Errorf("gpio.pins: pin %d out of range 0..%d", p, maxBCMPin)
			}
			if seen[p] {
				return fmt.Errorf("gpio.pins: pin %d assigned twice", p)
			}
			seen[p] = true
		}
	case backendEvdev:
		if c.GPIO.Evdev.Device == "" {
			return errors.New("gpio.evdev.device must not be empty")
		}
		keys := []int{c.GPIO.Evdev.Keys.Hidden, c.GPIO.Evdev.Keys.Left, c.GPIO.Evdev.Keys.Right}
		seen := make(map[int]bool, len(keys))
		for _, k := range keys {
			if k <= 0 || k > maxKeyCode {
				return fmt.Errorf("gpio.evdev.keys: code %d out of range 1..%d", k, maxKeyCode)
			}
			if seen[k] {
				return fmt.Errorf("gpio.evdev.keys: code %d assigned twice", k)
			}
			seen[k] = true
		}
	case backendSim:
	default:
		return fmt.Errorf("gpio.backend must be %q, %q or %q", backendRPIO, backendEvdev, backendSim)
	}

	// Poll
	if c.Poll.IntervalMS < 1 || c.Poll.IntervalMS > 100 {
		return errors.New("poll.interval_ms must be between 1 and 100")
	}

	// Navigation
	if c.Navigation.HoldDelayMS <= 0 {
		return errors.New("navigation.hold_delay_ms must be > 0")
	}
	if c.Navigation.HoldDelayMS <= c.Poll.IntervalMS {
		return errors.New("navigation.hold_delay_ms must be greater than poll.interval_ms")
	}
	if _, _, err := c.NavigatorSettings(); err != nil {
		return err
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// WS
	if c.WS.Listen != "" && (c.WS.Path == "" || c.WS.Path[0] != '/') {
		return errors.New("ws.path must start with /")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// NavigatorSettings converts the navigation section into the navigator config
// plus the mode the daemon enters once initialization completes.
func (c *Config) NavigatorSettings() (navigation.Config, navigation.Mode, error) {
	scope, err := navigation.ParseGateScope(c.Navigation.GateScope)
	if err != nil {
		return navigation.Config{}, 0, fmt.Errorf("navigation.gate_scope: %w", err)
	}
	initial, err := navigation.ParseMode(c.Navigation.InitialMode)
	if err != nil {
		return navigation.Config{}, 0, fmt.Errorf("navigation.initial_mode: %w", err)
	}
	if initial == navigation.ExitAudioSelection {
		return navigation.Config{}, 0, errors.New("navigation.initial_mode must not be exit_audio_selection")
	}
	wake, err := navigation.ParseMode(c.Navigation.WakeMode)
	if err != nil {
		return navigation.Config{}, 0, fmt.Errorf("navigation.wake_mode: %w", err)
	}
	if !wake.InRing() {
		return navigation.Config{}, 0, fmt.Errorf("navigation.wake_mode must be one of %v", navigation.RingModes())
	}

	return navigation.Config{
		HoldDelay:   time.Duration(c.Navigation.HoldDelayMS) * time.Millisecond,
		GateScope:   scope,
		InitialMode: initial,
	}, wake, nil
}

// PollInterval returns the scan cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
