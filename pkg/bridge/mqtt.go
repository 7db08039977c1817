package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT errors.
var (
	ErrNotConnected   = errors.New("mqtt not connected")
	ErrPublishTimeout = errors.New("mqtt publish timeout")
)

// MQTTConfig configures an MQTTClient.
type MQTTConfig struct {
	// Broker is host:port or a full URL such as tcp://localhost:1883.
	Broker string

	ClientID string
	QoS      byte

	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// DefaultMQTTConfig returns defaults for a local broker.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:         "tcp://localhost:1883",
		ClientID:       "vhal-bridge",
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
	}
}

// MQTTClient is a Publisher and Subscriber backed by paho.
type MQTTClient struct {
	config MQTTConfig
	logger *slog.Logger
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
}

// NewMQTTClient creates an unconnected client.
func NewMQTTClient(cfg MQTTConfig) *MQTTClient {
	def := DefaultMQTTConfig()
	if cfg.Broker == "" {
		cfg.Broker = def.Broker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = def.ClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MQTTClient{config: cfg, logger: cfg.Logger}
}

// Connect makes one attempt to connect to the broker. Once connected,
// the client reconnects on its own after a lost connection; use
// ConnectWithRetry for the initial connection.
func (c *MQTTClient) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(c.config.Broker))
	opts.SetClientID(c.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(DefaultRetryMax)

	opts.OnConnect = func(mqtt.Client) {
		c.setConnected(true)
		c.logger.Info("mqtt connection established",
			slog.String("broker", c.config.Broker),
			slog.String("client_id", c.config.ClientID))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.setConnected(false)
		c.logger.Warn("mqtt connection lost, will auto-reconnect",
			slog.String("broker", c.config.Broker),
			slog.Any("error", err))
	}

	c.client = mqtt.NewClient(opts)
	c.logger.Info("connecting to mqtt broker", slog.String("broker", c.config.Broker))

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(c.config.ConnectTimeout):
		return fmt.Errorf("mqtt connection timeout after %s", c.config.ConnectTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	c.setConnected(true)
	return nil
}

// Publish implements Publisher.
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.config.QoS, false, payload)
	if !token.WaitTimeout(c.config.PublishTimeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

// Subscribe implements Subscriber.
func (c *MQTTClient) Subscribe(topic string, handler func(payload []byte)) error {
	if c.client == nil {
		return ErrNotConnected
	}
	token := c.client.Subscribe(topic, c.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	c.logger.Info("subscribed to mqtt topic", slog.String("topic", topic))
	return nil
}

// Connected reports whether the broker connection is up.
func (c *MQTTClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close disconnects from the broker.
func (c *MQTTClient) Close() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Info("mqtt disconnected")
	}
	c.setConnected(false)
	return nil
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func brokerURL(broker string) string {
	for _, scheme := range []string{"tcp://", "ssl://", "ws://", "wss://", "mqtt://", "mqtts://"} {
		if strings.HasPrefix(broker, scheme) {
			return broker
		}
	}
	return "tcp://" + broker
}

var (
	_ Publisher  = (*MQTTClient)(nil)
	_ Subscriber = (*MQTTClient)(nil)
)
