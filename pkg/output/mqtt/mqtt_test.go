package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/config"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/output"
	"github.com/ericogr/gpio-input-to-mqtt/pkg/sensor"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	p.msgs = append(p.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: p.err}
}

func TestFormatStateTopic(t *testing.T) {
	tests := []struct {
		base string
		typ  sensor.InputType
		pin  int
		want string
	}{
		{DefaultStateTopic, sensor.Button, 7, "gpio-input/button/7"},
		{DefaultStateTopic, sensor.Matrix, 134, "gpio-input/matrix/134"},
		{"keys/%d", sensor.Analog, 0, "keys/0"},
		{"keys/all", sensor.Button, 3, "keys/all"},
	}
	for _, tt := range tests {
		if got := formatStateTopic(tt.base, tt.typ, tt.pin); got != tt.want {
			t.Fatalf("formatStateTopic(%q, %v, %d) = %q; want %q", tt.base, tt.typ, tt.pin, got, tt.want)
		}
	}
}

func TestPublishEvents(t *testing.T) {
	pub := &fakePublisher{}
	m := newOutput(pub, "", zap.NewNop())
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	events := []output.Event{
		{Reading: sensor.Reading{HasValue: true, Value: 1, Type: sensor.Matrix, Pin: 133}, Timestamp: ts},
		{Reading: sensor.Reading{HasValue: true, Value: 700, Type: sensor.Analog, Pin: 2}, Timestamp: ts},
	}
	if err := m.Publish(events); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(pub.msgs) != 2 {
		t.Fatalf("messages: %d", len(pub.msgs))
	}
	if pub.msgs[0].topic != "gpio-input/matrix/133" || pub.msgs[0].retained {
		t.Fatalf("first message: %+v", pub.msgs[0])
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(pub.msgs[1].payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload["type"] != "analog" || payload["value"] != 700.0 || payload["pin"] != 2.0 {
		t.Fatalf("payload: %v", payload)
	}
	if payload["timestamp"] != "2025-09-19T14:41:54Z" {
		t.Fatalf("timestamp: %v", payload["timestamp"])
	}
	if _, ok := payload["HasValue"]; ok {
		t.Fatalf("payload leaks HasValue: %v", payload)
	}
}

func TestPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker gone")}
	m := newOutput(pub, "", zap.NewNop())
	err := m.Publish([]output.Event{{Reading: sensor.Reading{HasValue: true, Type: sensor.Button, Pin: 1}}})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestAnnounce(t *testing.T) {
	pub := &fakePublisher{}
	m := newOutput(pub, "", zap.NewNop())
	cfg := config.MQTTConfig{ClientID: "pad", DiscoveryTopic: "homeassistant/"}
	m.announce(cfg, []Entity{{Type: sensor.Button, Pin: 7}, {Type: sensor.Analog, Pin: 0}})

	if len(pub.msgs) != 2 {
		t.Fatalf("messages: %d", len(pub.msgs))
	}
	if pub.msgs[0].topic != "homeassistant/binary_sensor/pad_button_7/config" || !pub.msgs[0].retained {
		t.Fatalf("button discovery: %+v", pub.msgs[0])
	}
	if pub.msgs[1].topic != "homeassistant/sensor/pad_analog_0/config" {
		t.Fatalf("analog discovery topic: %s", pub.msgs[1].topic)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(pub.msgs[0].payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload[keyStateTopic] != "gpio-input/button/7" || payload[keyPayloadOn] != "1" || payload[keyUniqueID] != "pad_button_7" {
		t.Fatalf("button payload: %v", payload)
	}
	if err := json.Unmarshal(pub.msgs[1].payload, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload[keyStateClass] != stateClassMeasurement {
		t.Fatalf("analog payload: %v", payload)
	}
}
