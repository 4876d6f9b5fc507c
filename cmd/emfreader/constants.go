package main

// Defaults (keep DefaultConfig aligned with these)
const (
	defaultPollIntervalMS = 2   // Button scan cadence (ms)
	defaultHoldDelayMS    = 750 // Hold detection delay (ms)

	// BCM numbering. Buttons short the line to ground.
	defaultPinHidden = 17
	defaultPinLeft   = 27
	defaultPinRight  = 22
	maxBCMPin        = 27

	// gpio-keys defaults: KEY_PROG1, KEY_LEFT, KEY_RIGHT.
	defaultInputDevice = "/dev/input/event0"
	defaultKeyHidden   = 148
	defaultKeyLeft     = 105
	defaultKeyRight    = 106
	maxKeyCode         = 0x2ff

	defaultIPCSocket = "/tmp/emfreader.sock"
	defaultWSListen  = "127.0.0.1:3002"
	defaultWSPath    = "/ws/state"
)

// Queue sizes
const (
	eventQueueSize     = 64
	broadcastQueueSize = 128
)
