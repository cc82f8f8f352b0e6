package publish

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/state"
)

// DefaultTopic is the topic prefix when none is configured.
const DefaultTopic = "tigerscale"

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes the scale state to an MQTT broker: the full state
// as JSON on <topic>/state and each changed field on <topic>/<field>.
type MQTTPublisher struct {
	client client
	topic  string
	qos    byte
	retain bool
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "tigerscale-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logging.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logging.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg MQTTConfig) *MQTTPublisher {
	topic := strings.TrimRight(cfg.Topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTTPublisher{client: c, topic: topic, qos: cfg.QoS, retain: cfg.Retain}
}

// PublishState publishes the whole state as JSON.
func (p *MQTTPublisher) PublishState(st state.ClientState) error {
	data, err := json.Marshal(NewStatePayload(st))
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return p.publish(p.topic+"/state", data)
}

// PublishChange publishes the changed field, then the whole state.
func (p *MQTTPublisher) PublishChange(c state.Change) error {
	if value, ok := fieldValue(c); ok {
		if err := p.publish(p.topic+"/"+c.Field.String(), []byte(value)); err != nil {
			return err
		}
	}
	return p.PublishState(c.State)
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	logging.Debug("MQTT publish", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// fieldValue renders the plain-text value of a changed field.
func fieldValue(c state.Change) (string, bool) {
	st := c.State
	switch c.Field {
	case state.FieldWeight:
		return strconv.FormatFloat(st.Weight, 'f', -1, 64), true
	case state.FieldTag:
		return st.TagID, true
	case state.FieldCalibrationFactor:
		return strconv.FormatFloat(st.CalibrationFactor, 'f', -1, 64), true
	case state.FieldAPIKey:
		return st.APIKeyStatus.String(), true
	case state.FieldDisplayName:
		return st.DisplayName, true
	case state.FieldCloudStatus:
		return st.CloudStatus.String(), true
	case state.FieldUptime:
		return strconv.FormatFloat(st.UptimeSeconds, 'f', -1, 64), true
	case state.FieldCloudPush:
		return st.CloudPush.Phase.String(), true
	case state.FieldWiFi:
		return st.WiFi, true
	case state.FieldIP:
		return st.IP, true
	default:
		return "", false
	}
}
