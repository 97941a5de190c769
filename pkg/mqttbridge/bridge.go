// Package mqttbridge accepts operator commands over MQTT.
//
// Commands arrive on <prefix>/cmd/<type> with the same JSON body the HTTP
// API takes. Every command gets an ack or error reply on <prefix>/ack, and
// watchdog transitions are published retained on <prefix>/state.
package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

const (
	// DefaultPrefix is the topic root.
	DefaultPrefix = "rover"

	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

// ErrBadTopic is returned for a command topic that does not match <prefix>/cmd/<type>.
var ErrBadTopic = errors.New("mqttbridge: invalid command topic")

// Handler executes a command envelope and returns the reply.
// *gateway.Gateway satisfies it.
type Handler interface {
	HandleMessage(msg *protocol.Message) *protocol.Message
}

// publisher is the part of mqtt.Client used for outbound messages.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Config holds the broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
	QoS      byte

	// Deadline is reported alongside published state transitions.
	Deadline time.Duration
}

// DefaultClientID returns a unique client id of the form rover-<uuid>.
func DefaultClientID() string {
	return "rover-" + uuid.NewString()
}

// Bridge connects the broker to a command handler.
type Bridge struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	client mqtt.Client
	pub    publisher

	received atomic.Uint64
	replied  atomic.Uint64
	failed   atomic.Uint64
	ignored  atomic.Uint64
}

// New creates a bridge. It does not connect until Run is called.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqttbridge: broker is required")
	}
	if handler == nil {
		return nil, errors.New("mqttbridge: handler is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID()
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqttbridge: invalid qos %d", cfg.QoS)
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "mqtt_bridge"),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(2 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true).
		SetWill(b.StateTopic(), `{"type":"state","data":{"state":"offline"}}`, 1, true)

	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	b.pub = b.client
	return b, nil
}

// CommandTopic is the subscription filter for commands.
func (b *Bridge) CommandTopic() string { return b.cfg.Prefix + "/cmd/+" }

// AckTopic carries command replies.
func (b *Bridge) AckTopic() string { return b.cfg.Prefix + "/ack" }

// StateTopic carries retained watchdog state.
func (b *Bridge) StateTopic() string { return b.cfg.Prefix + "/state" }

// Run connects and serves until ctx is cancelled. The broker being
// unreachable is not fatal: paho keeps retrying in the background.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("connecting to broker", "broker", b.cfg.Broker, "client_id", b.cfg.ClientID, "prefix", b.cfg.Prefix)
	token := b.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
	case <-ctx.Done():
		b.client.Disconnect(disconnectQuiesce)
		return ctx.Err()
	}

	<-ctx.Done()
	b.Close()
	return ctx.Err()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	if b.client.IsConnected() {
		b.client.Disconnect(disconnectQuiesce)
		b.logger.Info("MQTT client disconnected")
	}
}

func (b *Bridge) onConnect(client mqtt.Client) {
	topic := b.CommandTopic()
	b.logger.Info("connected to broker, subscribing", "topic", topic)
	if token := client.Subscribe(topic, b.cfg.QoS, b.handleCommand); token.Wait() && token.Error() != nil {
		b.logger.Error("failed to subscribe", "topic", topic, slog.Any("error", token.Error()))
	}
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	b.logger.Error("connection lost, reconnecting", slog.Any("error", err))
}

// handleCommand runs on paho's callback goroutine.
func (b *Bridge) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	b.received.Add(1)

	// The broker replays retained messages on every subscribe. A replayed
	// drive would count as a fresh operator command.
	if msg.Retained() {
		b.ignored.Add(1)
		b.logger.Warn("ignoring retained command", "topic", msg.Topic())
		return
	}

	t, err := ParseCommandTopic(b.cfg.Prefix, msg.Topic())
	if err != nil {
		b.ignored.Add(1)
		b.logger.Warn("ignoring message", "topic", msg.Topic(), slog.Any("error", err))
		return
	}

	env := &protocol.Message{
		Type:      t,
		ID:        fmt.Sprintf("mqtt-%d", msg.MessageID()),
		Timestamp: time.Now().UnixMilli(),
		Data:      msg.Payload(),
	}
	reply := b.handler.HandleMessage(env)
	if reply.Type == protocol.TypeError {
		b.logger.Debug("command failed", "type", t)
	}

	if err := b.publishMessage(b.AckTopic(), false, reply); err != nil {
		b.logger.Error("failed to publish reply", "topic", b.AckTopic(), slog.Any("error", err))
	}
}

// NotifyTransition publishes a watchdog transition as retained state.
// Safe to call from the watchdog goroutine; it does not wait for the broker.
func (b *Bridge) NotifyTransition(from, to watchdog.State, age time.Duration) {
	msg, err := protocol.NewStateMessage(to.String(), from.String(), age, b.cfg.Deadline)
	if err != nil {
		b.logger.Error("encode state message", slog.Any("error", err))
		return
	}
	if err := b.publishMessage(b.StateTopic(), true, msg); err != nil {
		b.logger.Warn("failed to publish state", slog.Any("error", err))
	}
}

func (b *Bridge) publishMessage(topic string, retained bool, msg *protocol.Message) error {
	payload, err := msg.Bytes()
	if err != nil {
		return err
	}
	if b.client != nil && !b.client.IsConnected() {
		b.failed.Add(1)
		return errors.New("MQTT client is not connected")
	}

	token := b.pub.Publish(topic, b.cfg.QoS, retained, payload)
	b.replied.Add(1)
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			b.failed.Add(1)
			b.logger.Error("failed to publish message", "topic", topic, slog.Any("error", token.Error()))
		}
	}()
	return nil
}

// Stats reports message counters.
type Stats struct {
	Received uint64 `json:"received"`
	Replied  uint64 `json:"replied"`
	Failed   uint64 `json:"failed"`
	Ignored  uint64 `json:"ignored"`
}

// Stats returns a snapshot of the message counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Received: b.received.Load(),
		Replied:  b.replied.Load(),
		Failed:   b.failed.Load(),
		Ignored:  b.ignored.Load(),
	}
}

// ParseCommandTopic extracts the command type from <prefix>/cmd/<type>.
func ParseCommandTopic(prefix, topic string) (protocol.MessageType, error) {
	rest, ok := strings.CutPrefix(topic, strings.TrimSuffix(prefix, "/")+"/cmd/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	t := protocol.MessageType(rest)
	if !protocol.IsCommand(t) && t != protocol.TypePing {
		return "", fmt.Errorf("%w: unknown command %q", ErrBadTopic, rest)
	}
	return t, nil
}
