// Command vhal-daemon runs the vehicle HAL manager on top of the fake
// hardware.
//
// Usage:
//
//	vhal-daemon [flags]
//
// Flags:
//
//	-config string        Property configuration YAML (built-in set if empty)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-state string         Snapshot file used to restore and save property values
//	-protocol-log string  Write structured HAL events (CBOR) to this file
//	-record string        Record every callback of a catch-all client to this file
//	-mqtt string          MQTT broker (host:port or URL); empty disables the bridge
//	-mqtt-prefix string   Topic prefix (default "vhal")
//	-mqtt-format string   Payload format: cbor, json (default "cbor")
//	-mqtt-props string    Comma separated properties to publish
//	-accept-sets          Accept set commands on <prefix>/set
//	-mqtt-retries int     Broker connect attempts before giving up (default 5)
//	-simulate             Drive speed, RPM and gear with synthetic data
//	-interactive          Start the interactive shell
//
// Examples:
//
//	# Interactive shell with the built-in property set
//	vhal-daemon -interactive
//
//	# Publish speed and gear to a local broker as JSON
//	vhal-daemon -simulate -mqtt localhost:1883 -mqtt-format json \
//	    -mqtt-props PERF_VEHICLE_SPEED,GEAR_SELECTION
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openvhal/vhal-go/cmd/vhal-daemon/interactive"
	"github.com/openvhal/vhal-go/pkg/bridge"
	"github.com/openvhal/vhal-go/pkg/fakehw"
	"github.com/openvhal/vhal-go/pkg/hal"
	vlog "github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/persistence"
	"github.com/openvhal/vhal-go/pkg/propconfig"
	"github.com/openvhal/vhal-go/pkg/vehicle"
	"github.com/openvhal/vhal-go/pkg/wire"
)

// Config holds the daemon configuration.
type Config struct {
	ConfigFile  string
	LogLevel    string
	StateFile   string
	ProtocolLog string
	RecordFile  string

	MQTTBroker  string
	MQTTPrefix  string
	MQTTFormat  string
	MQTTProps   string
	AcceptSets  bool
	MQTTRetries int

	Simulate    bool
	Interactive bool

	BatchWindow    time.Duration
	RequestTimeout time.Duration
	Heartbeat      time.Duration
	AsyncDelay     time.Duration
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Property configuration YAML (built-in set if empty)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.StateFile, "state", "", "Snapshot file used to restore and save property values")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write structured HAL events (CBOR) to this file")
	flag.StringVar(&config.RecordFile, "record", "", "Record every callback of a catch-all client to this file")

	flag.StringVar(&config.MQTTBroker, "mqtt", "", "MQTT broker (host:port or URL); empty disables the bridge")
	flag.StringVar(&config.MQTTPrefix, "mqtt-prefix", "vhal", "MQTT topic prefix")
	flag.StringVar(&config.MQTTFormat, "mqtt-format", "cbor", "MQTT payload format: cbor, json")
	flag.StringVar(&config.MQTTProps, "mqtt-props", "PERF_VEHICLE_SPEED,GEAR_SELECTION", "Comma separated properties to publish")
	flag.BoolVar(&config.AcceptSets, "accept-sets", false, "Accept set commands on <prefix>/set")
	flag.IntVar(&config.MQTTRetries, "mqtt-retries", 5, "Broker connect attempts before giving up (0 retries forever)")

	flag.BoolVar(&config.Simulate, "simulate", false, "Drive speed, RPM and gear with synthetic data")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the interactive shell")

	flag.DurationVar(&config.BatchWindow, "batch-window", hal.DefaultBatchWindow, "Event batching window")
	flag.DurationVar(&config.RequestTimeout, "request-timeout", hal.DefaultRequestTimeout, "Timeout of asynchronous requests")
	flag.DurationVar(&config.Heartbeat, "heartbeat", hal.DefaultHeartbeatInterval, "VHAL_HEARTBEAT interval (0 disables)")
	flag.DurationVar(&config.AsyncDelay, "async-delay", 0, "Artificial latency of asynchronous hardware requests")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vhal-daemon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var shell *interactive.Shell
	var logOut io.Writer = os.Stderr
	if config.Interactive {
		var err error
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		logOut = shell.Stderr()
	}
	logger, err := setupLogging(logOut, config.LogLevel)
	if err != nil {
		return err
	}

	decls, err := loadDeclarations()
	if err != nil {
		return err
	}
	logger.Info("properties loaded", "count", len(decls), "file", config.ConfigFile)

	hw := fakehw.New(decls, fakehw.Config{AsyncDelay: config.AsyncDelay, Logger: logger})
	defer hw.Close()

	var store *persistence.Store
	if config.StateFile != "" {
		store = persistence.NewStore(config.StateFile)
		if err := restoreState(store, hw, logger); err != nil {
			logger.Warn("state not restored", "path", store.Path(), "error", err)
		}
	}

	protoLogger, closeProto, err := setupProtocolLog(logger)
	if err != nil {
		return err
	}
	defer closeProto()

	mcfg := hal.DefaultConfig()
	mcfg.BatchWindow = config.BatchWindow
	mcfg.RequestTimeout = config.RequestTimeout
	mcfg.HeartbeatInterval = config.Heartbeat
	mcfg.Logger = logger
	mcfg.ProtocolLogger = protoLogger

	m, err := hal.NewManager(hw, mcfg)
	if err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	defer m.Close()
	logger.Info("manager started", "properties", len(m.GetAllPropConfigs()))

	if config.RecordFile != "" {
		closeRec, err := startRecorder(m, decls)
		if err != nil {
			return err
		}
		defer closeRec()
	}

	var mqttClient *bridge.MQTTClient
	if config.MQTTBroker != "" {
		mqttClient, err = startBridge(ctx, m, logger)
		if err != nil {
			return err
		}
		defer mqttClient.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	if config.Simulate {
		sim := newSimulator(hw, logger)
		g.Go(func() error {
			sim.Run(gctx)
			return nil
		})
	}
	if shell != nil {
		g.Go(func() error {
			shell.Run(gctx, cancel, m, hw)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon stopped", "error", err)
	}

	logger.Info("shutting down")
	if store != nil {
		if err := saveState(store, hw); err != nil {
			logger.Error("state not saved", "path", store.Path(), "error", err)
		} else {
			logger.Info("state saved", "path", store.Path())
		}
	}
	return nil
}

func setupLogging(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func loadDeclarations() ([]propconfig.Declaration, error) {
	if config.ConfigFile == "" {
		return propconfig.Default(), nil
	}
	return propconfig.LoadFile(config.ConfigFile)
}

func restoreState(store *persistence.Store, hw *fakehw.Hardware, logger *slog.Logger) error {
	snap, err := store.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	n := hw.Restore(snap.Values)
	logger.Info("state restored", "path", store.Path(), "values", n, "saved_at", snap.SavedAt)
	return nil
}

func saveState(store *persistence.Store, hw *fakehw.Hardware) error {
	return store.Save(&persistence.ValueSnapshot{Values: hw.Snapshot()})
}

// setupProtocolLog returns the structured event logger. Debug level adds
// an slog mirror of every event.
func setupProtocolLog(logger *slog.Logger) (vlog.Logger, func(), error) {
	var loggers []vlog.Logger
	closeFn := func() {}

	if config.ProtocolLog != "" {
		fl, err := vlog.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			written, failed := fl.Counts()
			logger.Info("protocol log closed", "path", config.ProtocolLog, "written", written, "failed", failed)
			_ = fl.Close()
		}
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, vlog.NewSlogAdapter(logger).WithLevel(slog.LevelDebug))
	}
	if len(loggers) == 0 {
		return nil, closeFn, nil
	}
	return vlog.NewMultiLogger(loggers...), closeFn, nil
}

// startRecorder registers a client that subscribes to every subscribable
// property and writes each callback as a wire frame.
func startRecorder(m *hal.Manager, decls []propconfig.Declaration) (func(), error) {
	f, err := os.Create(config.RecordFile)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	rec := wire.NewStreamCallback(f, "recorder")
	id, err := m.RegisterClient(rec)
	if err != nil {
		f.Close()
		return nil, err
	}

	var opts []vehicle.SubscribeOptions
	for _, cfg := range propconfig.Configs(decls) {
		if !cfg.Access.CanRead() || cfg.ChangeMode == vehicle.ChangeModeStatic {
			continue
		}
		opts = append(opts, vehicle.SubscribeOptions{
			PropID:       cfg.Prop,
			SampleRateHz: cfg.MaxSampleRate,
			Flags:        vehicle.FlagHalEvent,
		})
	}
	if err := m.Subscribe(id, opts); err != nil {
		_ = m.UnregisterClient(id)
		f.Close()
		return nil, fmt.Errorf("recorder subscribe: %w", err)
	}
	return func() {
		_ = m.UnregisterClient(id)
		f.Close()
	}, nil
}

func startBridge(ctx context.Context, m *hal.Manager, logger *slog.Logger) (*bridge.MQTTClient, error) {
	format, err := bridge.ParseFormat(config.MQTTFormat)
	if err != nil {
		return nil, err
	}
	props, err := parseProps(config.MQTTProps)
	if err != nil {
		return nil, err
	}

	mcfg := bridge.DefaultMQTTConfig()
	mcfg.Broker = config.MQTTBroker
	mcfg.Logger = logger
	client := bridge.NewMQTTClient(mcfg)
	retry := bridge.NewBackoff(bridge.BackoffConfig{})
	if err := bridge.ConnectWithRetry(ctx, client, retry, config.MQTTRetries, logger); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", config.MQTTBroker, err)
	}

	var opts []vehicle.SubscribeOptions
	for _, p := range props {
		opts = append(opts, vehicle.SubscribeOptions{PropID: p, SampleRateHz: 1, Flags: vehicle.FlagHalEvent})
	}
	b := bridge.New(client, bridge.Config{
		TopicPrefix: config.MQTTPrefix,
		Format:      format,
		Properties:  opts,
		AcceptSets:  config.AcceptSets,
		Logger:      logger,
	})
	if err := b.Attach(m); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("attach bridge: %w", err)
	}
	logger.Info("bridge attached", "broker", config.MQTTBroker, "prefix", config.MQTTPrefix, "format", format)
	return client, nil
}

func parseProps(s string) ([]int32, error) {
	var out []int32
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := propconfig.ParsePropID(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
