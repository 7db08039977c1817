package hal

import (
	"io"
	"log/slog"
	"time"

	"github.com/openvhal/vhal-go/pkg/log"
	"github.com/openvhal/vhal-go/pkg/objpool"
	"github.com/openvhal/vhal-go/pkg/pending"
)

// Default configuration values.
const (
	DefaultBatchWindow         = 10 * time.Millisecond
	DefaultRequestTimeout      = pending.DefaultTimeout
	DefaultMaxPendingPerClient = pending.DefaultMaxPendingPerClient
	DefaultHeartbeatInterval   = 3 * time.Second
	DefaultMaxPooledVectorSize = 20
)

// Config configures a Manager.
type Config struct {
	// BatchWindow is how long the consumer waits for more events after
	// the first one of a batch arrives.
	BatchWindow time.Duration

	// RequestTimeout bounds how long asynchronous requests stay pending.
	RequestTimeout time.Duration

	// MaxPendingPerClient caps pending asynchronous requests per client.
	MaxPendingPerClient int

	// HeartbeatInterval is the VHAL_HEARTBEAT period. Zero disables the
	// heartbeat.
	HeartbeatInterval time.Duration

	// MaxPooledVectorSize is the largest per-client batch delivered from
	// the reusable buffer; larger batches get a fresh slice.
	MaxPooledVectorSize int

	// ObjectPool configures the value pool handed to the hardware.
	ObjectPool objpool.Config

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives structured HAL events. Nil disables them.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		BatchWindow:         DefaultBatchWindow,
		RequestTimeout:      DefaultRequestTimeout,
		MaxPendingPerClient: DefaultMaxPendingPerClient,
		HeartbeatInterval:   DefaultHeartbeatInterval,
		MaxPooledVectorSize: DefaultMaxPooledVectorSize,
		ObjectPool:          objpool.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.BatchWindow <= 0 {
		c.BatchWindow = DefaultBatchWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxPendingPerClient <= 0 {
		c.MaxPendingPerClient = DefaultMaxPendingPerClient
	}
	if c.MaxPooledVectorSize <= 0 {
		c.MaxPooledVectorSize = DefaultMaxPooledVectorSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
	return c
}
