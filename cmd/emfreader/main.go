package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("emfreader v%s\n", version)
	fmt.Println("Button scan and mode navigation daemon for the EMF reader prop")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  emfreader [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Polls the hidden button and the left/right toggle every few milliseconds,")
	fmt.Println("  turns presses into click and hold actions, and steps the prop through")
	fmt.Println("  its modes. State changes are published on a websocket; emf-ctl talks to")
	fmt.Println("  the daemon over a Unix socket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -gpio-backend string")
	fmt.Println("        Button backend: rpio|evdev|sim (default \"rpio\")")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Printf("        gpio-keys input device for the evdev backend (default %q)\n", defaultInputDevice)
	fmt.Println()
	fmt.Println("  -poll-interval-ms int")
	fmt.Printf("        Button scan interval in ms (default %d)\n", defaultPollIntervalMS)
	fmt.Println()
	fmt.Println("  -hold-delay-ms int")
	fmt.Printf("        Hold threshold in ms (default %d)\n", defaultHoldDelayMS)
	fmt.Println()
	fmt.Println("  -gate-scope string")
	fmt.Println("        Gates marked when an action fires: channel|all (default \"channel\")")
	fmt.Println()
	fmt.Println("  -initial-mode string")
	fmt.Println("        Mode at power-on (default \"initialization\")")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Printf("        State websocket listen address, empty disables (default %q)\n", defaultWSListen)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run on the prop with the default pin mapping")
	fmt.Println("  emfreader -config /etc/emfreader.yaml")
	fmt.Println()
	fmt.Println("  # Run on a workstation and drive the buttons with emf-ctl")
	fmt.Println("  emfreader -gpio-backend sim -log-level debug")
	fmt.Println("  emf-ctl hold hidden")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - The rpio backend maps /dev/gpiomem (run as root or add user to 'gpio' group)")
	fmt.Println("  - Buttons are active low; lines are parked high on shutdown")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		gpioBackend    = flag.String("gpio-backend", backendRPIO, "Button backend: rpio|evdev|sim")
		inputDevice    = flag.String("input-device", defaultInputDevice, "gpio-keys input device for the evdev backend")
		pollIntervalMS = flag.Int("poll-interval-ms", defaultPollIntervalMS, "Button scan interval in ms")
		holdDelayMS    = flag.Int("hold-delay-ms", defaultHoldDelayMS, "Hold threshold in ms")
		gateScope      = flag.String("gate-scope", "channel", "Gates marked when an action fires: channel|all")
		initialMode    = flag.String("initial-mode", "initialization", "Mode at power-on")
		ipcSocketPath  = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		wsListen       = flag.String("ws-listen", defaultWSListen, "State websocket listen address (empty disables)")
		logLevelStr    = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Only explicitly set flags override the config file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "gpio-backend":
			overrides.GPIOBackend = gpioBackend
		case "input-device":
			overrides.InputDevice = inputDevice
		case "poll-interval-ms":
			overrides.PollIntervalMS = pollIntervalMS
		case "hold-delay-ms":
			overrides.HoldDelayMS = holdDelayMS
		case "gate-scope":
			overrides.GateScope = gateScope
		case "initial-mode":
			overrides.InitialMode = initialMode
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "ws-listen":
			overrides.WSListen = wsListen
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Validate already parsed the level.
	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("emfreader stopped", "error", err)
		os.Exit(1)
	}
}

// run wires the backend, daemon, IPC server and state websocket, and blocks
// until a signal arrives or one of them fails.
func run(cfg Config, logger *slog.Logger) error {
	navCfg, wakeMode, err := cfg.NavigatorSettings()
	if err != nil {
		return err
	}

	lines, err := openLines(cfg.GPIO)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := make(chan Event, eventQueueSize)

	// Broadcasts only flow when someone can receive them.
	var broadcasts chan StateBroadcast
	if cfg.WS.Listen != "" {
		broadcasts = make(chan StateBroadcast, broadcastQueueSize)
	}

	d := newDaemon(daemonConfig{
		Lines:      lines,
		Backend:    cfg.GPIO.Backend,
		Navigator:  navCfg,
		WakeMode:   wakeMode,
		Clock:      newMonotonicClock(),
		Broadcasts: broadcasts,
		Logger:     logger,
	})

	logger.Debug("configuration",
		"gpio_backend", cfg.GPIO.Backend,
		"pins", cfg.GPIO.Pins,
		"pull_up", cfg.GPIO.PullUp,
		"input_device", cfg.GPIO.Evdev.Device,
		"poll_interval_ms", cfg.Poll.IntervalMS,
		"hold_delay_ms", cfg.Navigation.HoldDelayMS,
		"gate_scope", cfg.Navigation.GateScope,
		"initial_mode", cfg.Navigation.InitialMode,
		"wake_mode", cfg.Navigation.WakeMode,
		"ipc_socket", cfg.IPC.SocketPath,
		"ws_listen", cfg.WS.Listen)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.GPIO.Backend == backendEvdev {
		f, err := openEvdevDevice(cfg.GPIO.Evdev.Device)
		if err != nil {
			_ = lines.Close()
			return err
		}
		keys := newKeyMap(cfg.GPIO.Evdev.Keys)

		g.Go(func() error {
			return readKeyEvents(ctx, f, keys, events, logger)
		})
		g.Go(func() error {
			// Closing the device unblocks the reader.
			<-ctx.Done()
			return f.Close()
		})
		logger.Info("reading buttons from input device", "device", cfg.GPIO.Evdev.Device)
	}

	g.Go(func() error {
		runDaemon(ctx, events, d, cfg.PollInterval())
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})

	if cfg.WS.Listen != "" {
		ws := NewServer(logger, events, ServerConfig{})
		mux := http.NewServeMux()
		ws.Register(mux, cfg.WS.Path)

		srv := &http.Server{
			Addr:              cfg.WS.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			logger.Info("state websocket listening", "addr", cfg.WS.Listen, "path", cfg.WS.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("state websocket server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("emfreader running", "version", version, "backend", cfg.GPIO.Backend, "ipc", cfg.IPC.SocketPath)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// openLines returns the configured button backend.
func openLines(cfg GPIOConfig) (Lines, error) {
	switch cfg.Backend {
	case backendRPIO:
		l, err := openRPIOLines(cfg)
		if err != nil {
			return nil, fmt.Errorf("open rpio backend: %w", err)
		}
		return l, nil
	case backendEvdev, backendSim:
		// evdev key events are applied to the same level store as virtual presses.
		return newSimLines(), nil
	default:
		return nil, fmt.Errorf("unknown gpio backend %q", cfg.Backend)
	}
}
