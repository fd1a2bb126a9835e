package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseKeyIntMap(t *testing.T) {
	tests := []struct {
		in   string
		want map[int]int
		ok   bool
	}{
		{"", map[int]int{}, true},
		{"0=5,1=10", map[int]int{0: 5, 1: 10}, true},
		{" 0 = 8 , 2=0", map[int]int{0: 8, 2: 0}, true},
		{"bad", nil, false},
		{"0=x", nil, false},
	}
	for _, tt := range tests {
		got, err := parseKeyIntMap(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseKeyIntMap(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseKeyIntMap(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseIntList(t *testing.T) {
	tests := []struct {
		in   string
		want []int
		ok   bool
	}{
		{"", []int{}, true},
		{"2,3,4", []int{2, 3, 4}, true},
		{" 17 , 27,", []int{17, 27}, true},
		{"2,x", nil, false},
	}
	for _, tt := range tests {
		got, err := parseIntList(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseIntList(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseIntList(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("defaults changed: %+v", cfg)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-platform", "simulation",
		"-buttons", "17,27",
		"-debounce", "5",
		"-matrix-rows", "2,3,4",
		"-matrix-cols", "5,6,7,8",
		"-analogs", "1=8,0=2",
		"-i2c-address", "0x49",
		"-scan-interval-ms", "5",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Platform != PlatformSimulation || cfg.I2CAddress != 0x49 || cfg.ScanIntervalMs != 5 {
		t.Fatalf("scalars: %+v", cfg)
	}
	wantButtons := []ButtonConfig{{Pin: 17, Debounce: 5}, {Pin: 27, Debounce: 5}}
	if !reflect.DeepEqual(cfg.Buttons, wantButtons) {
		t.Fatalf("buttons: %+v", cfg.Buttons)
	}
	wantMatrix := []MatrixConfig{{Rows: []int{2, 3, 4}, Cols: []int{5, 6, 7, 8}, Debounce: 5}}
	if !reflect.DeepEqual(cfg.Matrices, wantMatrix) {
		t.Fatalf("matrices: %+v", cfg.Matrices)
	}
	wantAnalogs := []AnalogConfig{{Pin: 1, Sensitivity: 8}, {Pin: 0, Sensitivity: 2}}
	if !reflect.DeepEqual(cfg.Analogs, wantAnalogs) {
		t.Fatalf("analogs: %+v", cfg.Analogs)
	}
	if got := cfg.DigitalPins(); !reflect.DeepEqual(got, []int{17, 27, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("digital pins: %v", got)
	}
}

func TestLoadFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	js := `{"platform": "simulation", "scan_interval_ms": 20, "buttons": [{"pin": 4, "debounce": 2}]}`
	if err := os.WriteFile(path, []byte(js), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load([]string{"-config", path, "-scan-interval-ms", "7"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScanIntervalMs != 7 {
		t.Fatalf("flag did not override file: %d", cfg.ScanIntervalMs)
	}
	if len(cfg.Buttons) != 1 || cfg.Buttons[0].Pin != 4 {
		t.Fatalf("buttons from file lost: %+v", cfg.Buttons)
	}
	if cfg.I2CBus != "1" {
		t.Fatalf("default not kept for missing key: %q", cfg.I2CBus)
	}
}

func TestLoadMQTTFlagsCreateOutput(t *testing.T) {
	cfg, err := Load([]string{"-mqtt-server", "tcp://broker:1883", "-mqtt-topic", "pad/%d"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].Type != OutputMQTT {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	m := cfg.Outputs[1].MQTT
	if m.Server != "tcp://broker:1883" || m.StateTopic != "pad/%d" {
		t.Fatalf("mqtt: %+v", m)
	}

	cfg, err = Load([]string{"-outputs", "MQTT", "-mqtt-server", "tcp://b:1883"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Outputs) != 1 || cfg.Outputs[0].MQTT.Server != "tcp://b:1883" {
		t.Fatalf("flags not applied to existing mqtt output: %+v", cfg.Outputs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero interval", func(c *Config) { c.ScanIntervalMs = 0 }, false},
		{"unknown platform", func(c *Config) { c.Platform = "arduino" }, false},
		{"bad sample rate", func(c *Config) { c.SampleRate = 0 }, false},
		{"sample rate between steps", func(c *Config) { c.SampleRate = 200 }, false},
		{"sample rate above max", func(c *Config) { c.SampleRate = 1000 }, false},
		{"supported sample rate", func(c *Config) { c.SampleRate = 475 }, true},
		{"simulation ignores sample rate", func(c *Config) {
			c.Platform = PlatformSimulation
			c.SampleRate = 500
		}, true},
		{"analog channel out of range", func(c *Config) { c.Analogs = []AnalogConfig{{Pin: 14}} }, false},
		{"simulation analog pin", func(c *Config) {
			c.Platform = PlatformSimulation
			c.Analogs = []AnalogConfig{{Pin: 14}}
		}, true},
		{"empty matrix", func(c *Config) { c.Matrices = []MatrixConfig{{Rows: []int{1}}} }, false},
		{"mqtt without server", func(c *Config) { c.Outputs = []OutputConfig{{Type: OutputMQTT}} }, false},
		{"unknown output", func(c *Config) { c.Outputs = []OutputConfig{{Type: "serial"}} }, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); (err == nil) != tt.ok {
			t.Fatalf("%s: ok=%v err=%v", tt.name, tt.ok, err)
		}
	}
}
