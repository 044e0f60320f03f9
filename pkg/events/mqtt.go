package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Prefix   string
	QoS      byte
	Timeout  time.Duration
}

// DefaultMQTTConfig returns settings for a local broker.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:  "tcp://localhost:1883",
		Prefix:  "facecam",
		Timeout: 10 * time.Second,
	}
}

// MQTTPublisher publishes over a connected paho client.
type MQTTPublisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// Publish sends payload and waits for the broker to accept it.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	return waitToken(p.client.Publish(topic, p.qos, false, payload), p.timeout, "publish to "+topic)
}

// waitToken waits for a paho token; a timeout counts as a failure.
func waitToken(token mqtt.Token, timeout time.Duration, op string) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%s: timed out", op)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Disconnect closes the connection, allowing 250ms for in-flight work.
func (p *MQTTPublisher) Disconnect() {
	p.client.Disconnect(250)
}

// ConnectMQTT connects to the broker and returns a publisher. The
// handler, if set, receives every payload on the command topic; the
// subscription is renewed on reconnect.
func ConnectMQTT(ctx context.Context, cfg MQTTConfig, logger *slog.Logger, handler func(ctx context.Context, payload []byte) error) (*MQTTPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "facecam-" + uuid.New().String()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMQTTConfig().Timeout
	}

	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(5 * time.Second)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("connected to MQTT", "broker", cfg.Broker, "client_id", cfg.ClientID)
		if handler == nil {
			return
		}
		topic := CommandTopic(cfg.Prefix)
		token := c.Subscribe(topic, cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
			payload := m.Payload()
			go handler(ctx, payload)
		})
		if err := waitToken(token, cfg.Timeout, "subscribe to "+topic); err != nil {
			logger.Error("failed to subscribe", "topic", topic, "error", err)
			return
		}
		logger.Info("subscribed", "topic", topic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(client.Connect(), cfg.Timeout, "connect to MQTT broker "+cfg.Broker); err != nil {
		return nil, err
	}

	return &MQTTPublisher{client: client, qos: cfg.QoS, timeout: cfg.Timeout}, nil
}
