// Package interactive provides the interactive command-line interface
// of vhal-daemon.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/openvhal/vhal-go/pkg/fakehw"
	"github.com/openvhal/vhal-go/pkg/hal"
	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// Shell is a readline command loop acting as a HAL client. Watched
// properties are printed as they arrive.
type Shell struct {
	rl  *readline.Instance
	out io.Writer

	m  *hal.Manager
	hw *fakehw.Hardware

	mu       sync.Mutex
	clientID hal.ClientID
	watching bool
}

// New creates a shell with its readline instance.
func New() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vhal> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Stderr returns a writer that coordinates with the readline prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc, m *hal.Manager, hw *fakehw.Hardware) {
	defer s.rl.Close()
	s.attach(m, hw)
	defer s.unregister()

	// Readline blocks; closing it unblocks the loop on shutdown.
	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if s.dispatch(input) {
			fmt.Fprintln(s.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

func (s *Shell) attach(m *hal.Manager, hw *fakehw.Hardware) {
	s.m = m
	s.hw = hw
}

// dispatch runs one command line and reports whether the shell should exit.
func (s *Shell) dispatch(input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	out := s.Stdout()

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "list", "ls":
		s.cmdList(out)
	case "get", "g":
		s.cmdGet(out, args)
	case "set", "s":
		s.cmdSet(out, args)
	case "dump", "d":
		s.m.Dump(out, args)
	case "watch", "w":
		s.cmdWatch(out, args)
	case "unwatch", "uw":
		s.cmdUnwatch(out, args)
	case "subs":
		s.cmdSubs(out)
	case "inject":
		s.cmdInject(out, args)
	case "fail":
		s.cmdFail(out, args)
	case "health":
		s.cmdHealth(out, args)
	case "stats":
		s.cmdStats(out)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.Stdout(), `
VHAL Commands:
  Properties:
    list                     - List configured properties
    get <prop>[@area]        - Read a property value
    set <prop>[@area] <v..>  - Write a property value
    dump [options]           - Run a debug dump command (dump --help)

  Subscriptions:
    watch <prop> [rate]      - Print events of a property
    unwatch <prop>           - Stop printing events of a property
    subs                     - Show hardware subscriptions

  Fake hardware:
    inject <prop>[@area] <v..> - Report a hardware event
    fail <prop> <status>     - Fail later sets of a property (OK clears)
    health ok|<message>      - Set the hardware health

  General:
    stats                    - Show manager statistics
    help                     - Show this help
    quit                     - Exit

  Properties may be given by name (PERF_VEHICLE_SPEED) or ID (0x11600207).`)
}

func (s *Shell) cmdList(out io.Writer) {
	configs := s.m.GetAllPropConfigs()
	fmt.Fprintf(out, "%d properties:\n", len(configs))
	for _, cfg := range configs {
		fmt.Fprintf(out, "  %-24s 0x%08x  %-10s %-10s %s\n",
			vehicle.PropertyName(cfg.Prop), uint32(cfg.Prop), cfg.Access, cfg.ChangeMode,
			vehicle.PropertyTypeOf(cfg.Prop))
	}
}

func (s *Shell) cmdGet(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: get <prop>[@area]")
		return
	}
	propID, areaID, err := parseTarget(args[0])
	if err != nil {
		fmt.Fprintf(out, "Invalid property: %v\n", err)
		return
	}
	v, err := s.m.Get(propID, areaID)
	if err != nil {
		fmt.Fprintf(out, "Get failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, v)
}

func (s *Shell) cmdSet(out io.Writer, args []string) {
	v, ok := s.parseValueArgs(out, "set", args)
	if !ok {
		return
	}
	if err := s.m.Set(v); err != nil {
		fmt.Fprintf(out, "Set failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "OK")
}

func (s *Shell) cmdInject(out io.Writer, args []string) {
	v, ok := s.parseValueArgs(out, "inject", args)
	if !ok {
		return
	}
	if err := s.hw.InjectEvent(v); err != nil {
		fmt.Fprintf(out, "Inject failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "OK")
}

func (s *Shell) parseValueArgs(out io.Writer, cmd string, args []string) (vehicle.PropertyValue, bool) {
	if len(args) < 2 {
		fmt.Fprintf(out, "Usage: %s <prop>[@area] <value...>\n", cmd)
		return vehicle.PropertyValue{}, false
	}
	propID, areaID, err := parseTarget(args[0])
	if err != nil {
		fmt.Fprintf(out, "Invalid property: %v\n", err)
		return vehicle.PropertyValue{}, false
	}
	raw, err := parseValue(propID, args[1:])
	if err != nil {
		fmt.Fprintf(out, "Invalid value: %v\n", err)
		return vehicle.PropertyValue{}, false
	}
	return vehicle.PropertyValue{Prop: propID, AreaID: areaID, Value: raw}, true
}

func (s *Shell) cmdWatch(out io.Writer, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(out, "Usage: watch <prop> [rate]")
		return
	}
	propID, areaID, err := parseTarget(args[0])
	if err != nil {
		fmt.Fprintf(out, "Invalid property: %v\n", err)
		return
	}
	var rate float64 = 1
	if len(args) == 2 {
		if rate, err = strconv.ParseFloat(args[1], 32); err != nil {
			fmt.Fprintf(out, "Invalid rate: %v\n", err)
			return
		}
	}
	id, err := s.register()
	if err != nil {
		fmt.Fprintf(out, "Register failed: %v\n", err)
		return
	}
	opts := vehicle.SubscribeOptions{
		PropID:       propID,
		AreaMask:     vehicle.AreaMask(areaID),
		SampleRateHz: float32(rate),
		Flags:        vehicle.FlagHalEvent,
	}
	if err := s.m.Subscribe(id, []vehicle.SubscribeOptions{opts}); err != nil {
		fmt.Fprintf(out, "Watch failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Watching %s\n", vehicle.PropertyName(propID))
}

func (s *Shell) cmdUnwatch(out io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: unwatch <prop>")
		return
	}
	propID, _, err := parseTarget(args[0])
	if err != nil {
		fmt.Fprintf(out, "Invalid property: %v\n", err)
		return
	}
	s.mu.Lock()
	id, watching := s.clientID, s.watching
	s.mu.Unlock()
	if !watching {
		fmt.Fprintln(out, "Not watching anything")
		return
	}
	if err := s.m.Unsubscribe(id, propID); err != nil {
		fmt.Fprintf(out, "Unwatch failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Stopped watching %s\n", vehicle.PropertyName(propID))
}

func (s *Shell) cmdSubs(out io.Writer) {
	subs := s.m.HardwareSubscriptions()
	if len(subs) == 0 {
		fmt.Fprintln(out, "No hardware subscriptions")
		return
	}
	for _, o := range subs {
		fmt.Fprintf(out, "  %s\n", o)
	}
}

func (s *Shell) cmdFail(out io.Writer, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(out, "Usage: fail <prop> <status>")
		return
	}
	propID, _, err := parseTarget(args[0])
	if err != nil {
		fmt.Fprintf(out, "Invalid property: %v\n", err)
		return
	}
	code, err := parseStatus(args[1])
	if err != nil {
		fmt.Fprintf(out, "Invalid status: %v\n", err)
		return
	}
	s.hw.InjectSetError(propID, code)
	fmt.Fprintf(out, "Sets of %s now report %s\n", vehicle.PropertyName(propID), code)
}

func (s *Shell) cmdHealth(out io.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: health ok|<message>")
		return
	}
	if strings.EqualFold(args[0], "ok") {
		s.hw.SetHealth(nil)
		fmt.Fprintln(out, "Hardware healthy")
		return
	}
	s.hw.SetHealth(errors.New(strings.Join(args, " ")))
	fmt.Fprintln(out, "Hardware unhealthy")
}

func (s *Shell) cmdStats(out io.Writer) {
	ps := s.m.PoolStats()
	fmt.Fprintln(out, "\nManager Status")
	fmt.Fprintln(out, "-------------------------------------------")
	fmt.Fprintf(out, "  Clients:          %d\n", s.m.ClientCount())
	fmt.Fprintf(out, "  Pending requests: %d\n", s.m.PendingRequests())
	fmt.Fprintf(out, "  HW subscriptions: %d\n", len(s.m.HardwareSubscriptions()))
	fmt.Fprintf(out, "  Generators:       %d\n", s.hw.Generators())
	fmt.Fprintf(out, "  Pool:             obtained=%d reused=%d recycled=%d disposed=%d free=%d\n",
		ps.Obtained, ps.Reused, ps.Recycled, ps.Disposed, ps.FreeValues)
	fmt.Fprintln(out)
}

func (s *Shell) register() (hal.ClientID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		return s.clientID, nil
	}
	out := s.Stdout()
	id, err := s.m.RegisterClient(&vehicle.CallbackFuncs{
		PropertyEvent: func(values []vehicle.PropertyValue) error {
			for _, v := range values {
				fmt.Fprintf(out, "[EVENT] %s\n", v)
			}
			return nil
		},
		PropertySetError: func(code vehicle.StatusCode, propID, areaID int32) error {
			fmt.Fprintf(out, "[ERROR] %s area %d: %s\n", vehicle.PropertyName(propID), areaID, code)
			return nil
		},
	})
	if err != nil {
		return hal.ClientID{}, err
	}
	s.clientID = id
	s.watching = true
	return id, nil
}

func (s *Shell) unregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watching {
		return
	}
	_ = s.m.UnregisterClient(s.clientID)
	s.watching = false
}
