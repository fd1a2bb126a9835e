package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/config"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/output"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/sensor"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "gpio-input-client"
	DefaultStateTopic = "gpio-input/%s/%d"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	keyPayloadOn           = "payload_on"
	keyPayloadOff          = "payload_off"
	componentBinarySensor  = "binary_sensor"
	componentSensor        = "sensor"
	stateClassMeasurement  = "measurement"
	valueTemplateValue     = "{{ value_json.value }}"
)

// Entity is one input announced through discovery: a button, a matrix cell
// (by virtual pin) or an analog channel.
type Entity struct {
	Type sensor.InputType
	Pin  int
}

// publisher is the part of mqtt.Client used to send messages.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTOutput struct {
	client     mqtt.Client
	pub        publisher
	stateTopic string
	logger     *zap.Logger
}

func NewMQTT(cfg config.MQTTConfig, entities []Entity, logger *zap.Logger) (output.Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID).SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.String("server", cfg.Server), zap.Error(err))
	})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	logger.Info("mqtt connected", zap.String("server", cfg.Server), zap.String("client_id", cfg.ClientID))

	m := newOutput(client, cfg.StateTopic, logger)
	m.client = client
	if cfg.DiscoveryTopic != "" {
		m.announce(cfg, entities)
	}
	return m, nil
}

func newOutput(pub publisher, stateTopic string, logger *zap.Logger) *MQTTOutput {
	if stateTopic == "" {
		stateTopic = DefaultStateTopic
	}
	return &MQTTOutput{pub: pub, stateTopic: stateTopic, logger: logger}
}

// announce publishes one retained Home Assistant discovery message per
// entity. Failures are logged; state publishing works without discovery.
func (m *MQTTOutput) announce(cfg config.MQTTConfig, entities []Entity) {
	for _, e := range entities {
		component, payload := discoveryPayload(cfg, e, formatStateTopic(m.stateTopic, e.Type, e.Pin))
		topic := discoveryTopic(cfg.DiscoveryTopic, component, objectID(cfg, e))
		if err := publishJSON(m.pub, topic, true, payload); err != nil {
			m.logger.Warn("mqtt discovery publish", zap.String("topic", topic), zap.Error(err))
		}
	}
}

func (m *MQTTOutput) Publish(events []output.Event) error {
	for _, e := range events {
		topic := formatStateTopic(m.stateTopic, e.Type, e.Pin)
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		token := m.pub.Publish(topic, 0, false, b)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, token.Error())
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// formatStateTopic substitutes %s with the input type and %d with the pin.
func formatStateTopic(base string, t sensor.InputType, pin int) string {
	return strings.NewReplacer("%s", t.String(), "%d", strconv.Itoa(pin)).Replace(base)
}

func discoveryTopic(prefix, component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", strings.TrimSuffix(prefix, "/"), component, objectID)
}

func objectID(cfg config.MQTTConfig, e Entity) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	return fmt.Sprintf("%s_%s_%d", uid, e.Type, e.Pin)
}

// discoveryPayload returns the Home Assistant component for the entity and
// its config message. Digital inputs are binary sensors, analog channels
// plain sensors.
func discoveryPayload(cfg config.MQTTConfig, e Entity, stateTopic string) (string, map[string]interface{}) {
	name := cfg.DiscoveryName
	if name == "" {
		name = cfg.ClientID
	}
	payload := map[string]interface{}{
		keyName:                fmt.Sprintf("%s %s %d", name, e.Type, e.Pin),
		keyStateTopic:          stateTopic,
		keyValueTemplate:       valueTemplateValue,
		keyJSONAttributesTopic: stateTopic,
		keyUniqueID:            objectID(cfg, e),
	}
	if e.Type == sensor.Analog {
		payload[keyStateClass] = stateClassMeasurement
		return componentSensor, payload
	}
	payload[keyPayloadOn] = "1"
	payload[keyPayloadOff] = "0"
	return componentBinarySensor, payload
}

func publishJSON(pub publisher, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := pub.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
