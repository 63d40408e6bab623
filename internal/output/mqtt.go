package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/muurk/roastlink/internal/config"
	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/netmon"
	"github.com/muurk/roastlink/internal/sensor"
	"go.uber.org/zap"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectMs   = 250
)

// MQTT publishes each reading field on its own subtopic so downstream
// automation can subscribe to single values:
//
//	<base>/temp_celsius
//	<base>/temp_fahrenheit
//	<base>/timestamp
//
// Status records go to <base>/status as one JSON document.
type MQTT struct {
	cfg  config.MQTTConfig
	unit string

	client mqtt.Client
}

// NewMQTT returns an unconnected MQTT output.
func NewMQTT(cfg config.MQTTConfig, unit string) *MQTT {
	return &MQTT{cfg: cfg, unit: unit}
}

// Name implements Output.
func (m *MQTT) Name() string { return "mqtt" }

// RequiresNetwork implements Output.
func (m *MQTT) RequiresNetwork() bool { return true }

// Init implements Output: connects to the broker.
func (m *MQTT) Init(netmon.Manager) error {
	opts := mqtt.NewClientOptions().
		AddBroker(BrokerURL(m.cfg)).
		SetClientID("roastlink-" + uuid.NewString()[:8]).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return fmt.Errorf("mqtt connect to %s timed out", BrokerURL(m.cfg))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s failed: %w", BrokerURL(m.cfg), err)
	}

	m.client = client
	logging.Info("MQTT output connected",
		zap.String("broker", BrokerURL(m.cfg)),
		zap.String("base_topic", m.cfg.BaseTopic),
		zap.Bool("auth", m.cfg.Username != ""),
	)
	return nil
}

// SendReading implements Output.
func (m *MQTT) SendReading(r sensor.Reading) error {
	if m.client == nil {
		return errors.New("mqtt output not initialized")
	}

	fields := map[string]string{
		"temp_celsius":    strconv.FormatFloat(r.Celsius, 'f', 2, 64),
		"temp_fahrenheit": strconv.FormatFloat(r.Fahrenheit, 'f', 2, 64),
		"timestamp":       r.CapturedAt.Format(time.RFC3339),
	}

	for sub, value := range fields {
		topic := m.cfg.BaseTopic + "/" + sub
		token := m.client.Publish(topic, 0, false, value)
		if !token.WaitTimeout(mqttPublishTimeout) {
			return fmt.Errorf("mqtt publish to %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
		}
	}
	return nil
}

// SendStatus implements Output.
func (m *MQTT) SendStatus(status map[string]any) error {
	if m.client == nil {
		return errors.New("mqtt output not initialized")
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	topic := m.cfg.BaseTopic + "/status"
	token := m.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s failed: %w", topic, err)
	}
	return nil
}

// Close implements Output.
func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(mqttDisconnectMs)
		logging.Info("MQTT output disconnected")
	}
}

// BrokerURL builds the paho broker URL for a config.
func BrokerURL(cfg config.MQTTConfig) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)
}
