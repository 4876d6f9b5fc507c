package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"emfreader/internal/buttons"
	"emfreader/internal/navigation"
)

// ============================================================================
// emf-ctl - Command-line IPC Client
// ============================================================================
// Sends events to the emfreader daemon over its Unix socket.
//
// Usage:
//   emf-ctl click hidden
//   emf-ctl hold right
//   emf-ctl set-mode showcase
//   emf-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/emfreader.sock)
// ============================================================================

const defaultSocket = "/tmp/emfreader.sock"

// Release timing for the compound commands.
const (
	clickDuration = 50 * time.Millisecond
	holdMargin    = 100 * time.Millisecond
)

// envelope mirrors the daemon's line-delimited JSON wire format.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse is the daemon's reply.
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// step is one message to send, followed by an optional pause.
type step struct {
	msg   envelope
	pause time.Duration
}

func main() {
	socketPath := defaultSocket
	holdDelay := navigation.DefaultHoldDelay

	args := os.Args[1:]
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		switch strings.TrimLeft(args[0], "-") {
		case "socket":
			if len(args) < 2 {
				fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
				os.Exit(1)
			}
			socketPath = args[1]
			args = args[2:]

		case "hold-delay-ms":
			if len(args) < 2 {
				fmt.Fprintf(os.Stderr, "error: -hold-delay-ms requires an argument\n")
				os.Exit(1)
			}
			var ms int
			if _, err := fmt.Sscanf(args[1], "%d", &ms); err != nil || ms <= 0 {
				fmt.Fprintf(os.Stderr, "error: invalid hold delay %q\n", args[1])
				os.Exit(1)
			}
			holdDelay = time.Duration(ms) * time.Millisecond
			args = args[2:]

		case "h", "help":
			printUsage()
			os.Exit(0)

		default:
			fmt.Fprintf(os.Stderr, "error: unknown option: %s\n", args[0])
			printUsage()
			os.Exit(1)
		}
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" {
		printUsage()
		os.Exit(0)
	}

	steps, err := parseCommand(args, holdDelay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	for _, s := range steps {
		resp, err := send(socketPath, s.msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(resp.Data) > 0 {
			var pretty map[string]any
			if err := json.Unmarshal(resp.Data, &pretty); err == nil {
				out, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Println(string(out))
			} else {
				fmt.Println(string(resp.Data))
			}
		}
		time.Sleep(s.pause)
	}

	fmt.Println("ok")
}

// parseCommand turns a command line into the messages to send.
func parseCommand(args []string, holdDelay time.Duration) ([]step, error) {
	needArg := func(what string) (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("%s requires a %s", args[0], what)
		}
		return args[1], nil
	}
	channelMsg := func(typ string) (envelope, error) {
		name, err := needArg("channel (hidden, left, right)")
		if err != nil {
			return envelope{}, err
		}
		ch, err := buttons.ParseChannel(name)
		if err != nil {
			return envelope{}, err
		}
		data, err := json.Marshal(struct {
			Channel buttons.Channel `json:"channel"`
		}{ch})
		if err != nil {
			return envelope{}, fmt.Errorf("marshal channel: %w", err)
		}
		return envelope{Type: typ, Data: data}, nil
	}
	pressRelease := func(held time.Duration) ([]step, error) {
		press, err := channelMsg("press")
		if err != nil {
			return nil, err
		}
		release, _ := channelMsg("release")
		return []step{{msg: press, pause: held}, {msg: release}}, nil
	}

	switch args[0] {
	case "press":
		m, err := channelMsg("press")
		return []step{{msg: m}}, err

	case "release":
		m, err := channelMsg("release")
		return []step{{msg: m}}, err

	case "click":
		return pressRelease(clickDuration)

	case "hold":
		return pressRelease(holdDelay + holdMargin)

	case "set-mode", "mode":
		name, err := needArg("mode")
		if err != nil {
			return nil, err
		}
		mode, err := navigation.ParseMode(name)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(struct {
			Mode navigation.Mode `json:"mode"`
		}{mode})
		if err != nil {
			return nil, fmt.Errorf("marshal mode: %w", err)
		}
		return []step{{msg: envelope{Type: "set_mode", Data: data}}}, nil

	case "sleep":
		return []step{{msg: envelope{Type: "sleep"}}}, nil

	case "reset":
		return []step{{msg: envelope{Type: "reset"}}}, nil

	case "status":
		return []step{{msg: envelope{Type: "status"}}}, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, msg envelope) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(msg)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send %s: %w", msg.Type, err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `emf-ctl - Control the emfreader daemon via IPC

Usage:
  emf-ctl [options] <command> [args]

Options:
  -socket PATH          Unix domain socket path (default: %s)
  -hold-delay-ms N      Hold threshold used by "hold" (default: %d)

Commands:
  press <channel>       Drive a virtual button low (sim backend)
  release <channel>     Drive a virtual button high (sim backend)
  click <channel>       Press and release after %s
  hold <channel>        Press and release after the hold threshold plus %s
  set-mode <mode>       Request a mode (%s)
  sleep                 Put the prop to sleep
  reset                 Return the navigator to its initial mode
  status                Print the daemon state
  help, -h, --help      Show this help message

Channels: hidden, left, right

Examples:
  emf-ctl hold hidden
  emf-ctl set-mode emf
  emf-ctl -socket /run/emfreader.sock status
`, defaultSocket, navigation.DefaultHoldDelay.Milliseconds(), clickDuration, holdMargin, modeNames())
}

func modeNames() string {
	var names []string
	for m := navigation.Mode(0); m < navigation.NumModes; m++ {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}
