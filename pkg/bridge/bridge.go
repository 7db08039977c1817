package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/openvhal/vhal-go/pkg/hal"
	"github.com/openvhal/vhal-go/pkg/vehicle"
	"github.com/openvhal/vhal-go/pkg/wire"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Subscriber delivers payloads received on a topic.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
}

// Format selects the payload encoding.
type Format uint8

const (
	FormatCBOR Format = iota
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatJSON:
		return "json"
	default:
		return "UNKNOWN"
	}
}

// ParseFormat parses "cbor" or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "cbor", "":
		return FormatCBOR, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown payload format %q", s)
}

// Config configures a Bridge.
type Config struct {
	// TopicPrefix is prepended to every topic. Defaults to "vhal".
	TopicPrefix string

	Format Format

	// Properties are subscribed when the bridge is attached.
	Properties []vehicle.SubscribeOptions

	// AcceptSets enables the <prefix>/set command topic.
	AcceptSets bool

	Logger *slog.Logger
}

// Stats counts bridge traffic.
type Stats struct {
	Published uint64
	Errors    uint64
	Commands  uint64
}

// Bridge is a HAL client that publishes what it receives.
type Bridge struct {
	config Config
	logger *slog.Logger
	pub    Publisher

	mu       sync.Mutex
	manager  *hal.Manager
	clientID hal.ClientID

	nextRequest atomic.Int64
	published   atomic.Uint64
	errors      atomic.Uint64
	commands    atomic.Uint64
}

// New creates a bridge publishing to pub.
func New(pub Publisher, cfg Config) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "vhal"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{config: cfg, logger: cfg.Logger, pub: pub}
}

// Attach registers the bridge with m and subscribes the configured
// properties.
func (b *Bridge) Attach(m *hal.Manager) error {
	var sub Subscriber
	if b.config.AcceptSets {
		var ok bool
		if sub, ok = b.pub.(Subscriber); !ok {
			return fmt.Errorf("publisher %T cannot receive set commands", b.pub)
		}
	}

	id, err := m.RegisterClient(b)
	if err != nil {
		return err
	}
	if len(b.config.Properties) > 0 {
		if err := m.Subscribe(id, b.config.Properties); err != nil {
			_ = m.UnregisterClient(id)
			return fmt.Errorf("subscribe bridge properties: %w", err)
		}
	}

	b.mu.Lock()
	b.manager = m
	b.clientID = id
	b.mu.Unlock()

	if sub != nil {
		if err := sub.Subscribe(b.Topic("set"), b.HandleSetCommand); err != nil {
			return err
		}
	}
	b.logger.Info("bridge attached",
		slog.String("client_id", id.String()),
		slog.Int("properties", len(b.config.Properties)),
		slog.String("format", b.config.Format.String()))
	return nil
}

// Detach unregisters the bridge from its manager.
func (b *Bridge) Detach() error {
	b.mu.Lock()
	m, id := b.manager, b.clientID
	b.manager = nil
	b.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.UnregisterClient(id)
}

// Topic joins the prefix and a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.config.TopicPrefix + "/" + suffix
}

// PropertyTopic returns the topic events of propID are published to.
func (b *Bridge) PropertyTopic(propID int32) string {
	return b.Topic(fmt.Sprintf("0x%08x", uint32(propID)))
}

// Stats returns the traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Errors:    b.errors.Load(),
		Commands:  b.commands.Load(),
	}
}

// OnPropertyEvent implements vehicle.Callback.
func (b *Bridge) OnPropertyEvent(values []vehicle.PropertyValue) error {
	var firstErr error
	for _, v := range values {
		if err := b.publish(b.PropertyTopic(v.Prop), v); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OnPropertySet implements vehicle.Callback.
func (b *Bridge) OnPropertySet(value vehicle.PropertyValue) error {
	return b.publish(b.PropertyTopic(value.Prop)+"/set", value)
}

// OnPropertySetError implements vehicle.Callback.
func (b *Bridge) OnPropertySetError(code vehicle.StatusCode, propID, areaID int32) error {
	return b.publish(b.Topic("errors"), vehicle.PropError{PropID: propID, AreaID: areaID, ErrorCode: code})
}

// OnGetValues implements vehicle.Callback.
func (b *Bridge) OnGetValues(results []vehicle.GetValueResult) error {
	return b.publish(b.Topic("results"), results)
}

// OnSetValues implements vehicle.Callback.
func (b *Bridge) OnSetValues(results []vehicle.SetValueResult) error {
	return b.publish(b.Topic("results"), results)
}

// HandleSetCommand decodes a JSON property value and submits it as an
// asynchronous set. Its result is published to <prefix>/results.
func (b *Bridge) HandleSetCommand(payload []byte) {
	b.commands.Add(1)
	var v vehicle.PropertyValue
	if err := json.Unmarshal(payload, &v); err != nil {
		b.errors.Add(1)
		b.logger.Warn("invalid set command", slog.Any("error", err))
		return
	}

	b.mu.Lock()
	m, id := b.manager, b.clientID
	b.mu.Unlock()
	if m == nil {
		b.errors.Add(1)
		return
	}

	req := vehicle.SetValueRequest{RequestID: b.nextRequest.Add(1), Value: v}
	if err := m.SetValues(id, []vehicle.SetValueRequest{req}); err != nil {
		b.errors.Add(1)
		b.logger.Warn("set command rejected",
			slog.String("prop", vehicle.PropertyName(v.Prop)),
			slog.Any("error", err))
		_ = b.publish(b.Topic("results"), []vehicle.SetValueResult{{RequestID: req.RequestID, Status: vehicle.StatusOf(err)}})
	}
}

func (b *Bridge) publish(topic string, v any) error {
	payload, err := b.encode(v)
	if err != nil {
		b.errors.Add(1)
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := b.pub.Publish(topic, payload); err != nil {
		b.errors.Add(1)
		b.logger.Debug("publish failed", slog.String("topic", topic), slog.Any("error", err))
		return err
	}
	b.published.Add(1)
	return nil
}

func (b *Bridge) encode(v any) ([]byte, error) {
	if b.config.Format == FormatJSON {
		return json.Marshal(v)
	}
	if pv, ok := v.(vehicle.PropertyValue); ok {
		return wire.MarshalValue(pv)
	}
	return wire.Marshal(v)
}

var _ vehicle.Callback = (*Bridge)(nil)
