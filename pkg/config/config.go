package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	PlatformPeriph     = "periph"
	PlatformSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type string      `json:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

// ButtonConfig describes one standalone switch. Buttons are active-low with
// the internal pull-up unless ActiveHigh is set, in which case the pin is
// pulled down and reads pressed when driven high.
type ButtonConfig struct {
	Pin        int  `json:"pin"`
	Debounce   int  `json:"debounce"`
	ActiveHigh bool `json:"active_high,omitempty"`
}

// UnmarshalJSON applies DefaultDebounce when the entry has no debounce key.
// An explicit 0 still selects zero-latency mode.
func (b *ButtonConfig) UnmarshalJSON(data []byte) error {
	type plain ButtonConfig
	v := plain{Debounce: DefaultDebounce}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = ButtonConfig(v)
	return nil
}

type MatrixConfig struct {
	Rows     []int `json:"rows"`
	Cols     []int `json:"cols"`
	Debounce int   `json:"debounce"`
}

// UnmarshalJSON applies DefaultDebounce when the entry has no debounce key.
func (m *MatrixConfig) UnmarshalJSON(data []byte) error {
	type plain MatrixConfig
	v := plain{Debounce: DefaultDebounce}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MatrixConfig(v)
	return nil
}

type AnalogConfig struct {
	Pin         int `json:"pin"`
	Sensitivity int `json:"sensitivity"`
}

type Config struct {
	Platform       string         `json:"platform"`
	I2CBus         string         `json:"i2c_bus"`
	I2CAddress     int            `json:"i2c_address"`
	SampleRate     int            `json:"sample_rate"`
	ScanIntervalMs int            `json:"scan_interval_ms"`
	LogLevel       string         `json:"log_level"`
	Buttons        []ButtonConfig `json:"buttons"`
	Matrices       []MatrixConfig `json:"matrices"`
	Analogs        []AnalogConfig `json:"analogs"`
	Outputs        []OutputConfig `json:"outputs"`
}

// DefaultDebounce applies to inputs given on the command line and to JSON
// entries that omit debounce.
const DefaultDebounce = 3

func DefaultConfig() Config {
	return Config{
		Platform:       PlatformPeriph,
		I2CBus:         "1",
		I2CAddress:     0x48,
		SampleRate:     860,
		ScanIntervalMs: 10,
		LogLevel:       "info",
		Outputs:        []OutputConfig{{Type: OutputConsole}},
	}
}

// Load reads configuration from an optional JSON file and the given
// command-line arguments. Flags override values present in the JSON file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("gpio-input-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagPlatform := fs.String("platform", "", "platform: periph|simulation")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus of the ADS1115 (e.g., '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "ADS1115 I2C address (decimal or 0x hex)")
	flagSampleRate := fs.Int("sample-rate", -1, "ADS1115 sample rate in SPS: 8|16|32|64|128|250|475|860")
	flagInterval := fs.Int("scan-interval-ms", -1, "Scan tick period in ms")
	flagLogLevel := fs.String("log-level", "", "log level: debug|info|warn|error")
	flagButtons := fs.String("buttons", "", "Comma-separated button pins e.g. 17,27")
	flagDebounce := fs.Int("debounce", -1, "Debounce threshold in scans for buttons and matrix cells given by flags")
	flagMatrixRows := fs.String("matrix-rows", "", "Comma-separated matrix row pins")
	flagMatrixCols := fs.String("matrix-cols", "", "Comma-separated matrix column pins")
	flagAnalogs := fs.String("analogs", "", "Comma-separated analog channels with sensitivity e.g. 0=5,1=8")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic, may contain %s (type) and %d (pin)")
	flagDiscovery := fs.String("mqtt-discovery-topic", "", "Home Assistant discovery prefix (e.g. homeassistant); empty disables discovery")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if *flagPlatform != "" {
		cfg.Platform = *flagPlatform
	}
	if *flagI2CBus != "" {
		cfg.I2CBus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2CAddress = v
	}
	if *flagSampleRate != -1 {
		cfg.SampleRate = *flagSampleRate
	}
	if *flagInterval != -1 {
		cfg.ScanIntervalMs = *flagInterval
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	debounce := DefaultDebounce
	if *flagDebounce != -1 {
		debounce = *flagDebounce
	}
	if *flagButtons != "" {
		pins, err := parseIntList(*flagButtons)
		if err != nil {
			return cfg, fmt.Errorf("buttons: %w", err)
		}
		cfg.Buttons = cfg.Buttons[:0]
		for _, p := range pins {
			cfg.Buttons = append(cfg.Buttons, ButtonConfig{Pin: p, Debounce: debounce})
		}
	}
	if *flagMatrixRows != "" || *flagMatrixCols != "" {
		rows, err := parseIntList(*flagMatrixRows)
		if err != nil {
			return cfg, fmt.Errorf("matrix-rows: %w", err)
		}
		cols, err := parseIntList(*flagMatrixCols)
		if err != nil {
			return cfg, fmt.Errorf("matrix-cols: %w", err)
		}
		cfg.Matrices = []MatrixConfig{{Rows: rows, Cols: cols, Debounce: debounce}}
	}
	if *flagAnalogs != "" {
		m, err := parseKeyIntMap(*flagAnalogs)
		if err != nil {
			return cfg, fmt.Errorf("analogs: %w", err)
		}
		cfg.Analogs = cfg.Analogs[:0]
		for _, pin := range parseKeys(*flagAnalogs) {
			cfg.Analogs = append(cfg.Analogs, AnalogConfig{Pin: pin, Sensitivity: m[pin]})
		}
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}
	mqttFlags := MQTTConfig{
		Server:         *flagMQTTServer,
		Username:       *flagMQTTUser,
		Password:       *flagMQTTPass,
		ClientID:       *flagClientID,
		StateTopic:     *flagTopic,
		DiscoveryTopic: *flagDiscovery,
	}
	if mqttFlags != (MQTTConfig{}) {
		applyMQTTFlags(&cfg, mqttFlags)
	}

	return cfg, cfg.Validate()
}

// applyMQTTFlags copies the non-empty flag values into every mqtt output,
// creating one if none is configured.
func applyMQTTFlags(cfg *Config, f MQTTConfig) {
	applied := false
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type != OutputMQTT {
			continue
		}
		if cfg.Outputs[i].MQTT == nil {
			cfg.Outputs[i].MQTT = &MQTTConfig{}
		}
		mergeMQTT(cfg.Outputs[i].MQTT, f)
		applied = true
	}
	if !applied {
		out := OutputConfig{Type: OutputMQTT, MQTT: &MQTTConfig{}}
		mergeMQTT(out.MQTT, f)
		cfg.Outputs = append(cfg.Outputs, out)
	}
}

func mergeMQTT(dst *MQTTConfig, f MQTTConfig) {
	if f.Server != "" {
		dst.Server = f.Server
	}
	if f.Username != "" {
		dst.Username = f.Username
	}
	if f.Password != "" {
		dst.Password = f.Password
	}
	if f.ClientID != "" {
		dst.ClientID = f.ClientID
	}
	if f.StateTopic != "" {
		dst.StateTopic = f.StateTopic
	}
	if f.DiscoveryTopic != "" {
		dst.DiscoveryTopic = f.DiscoveryTopic
	}
}

// Validate rejects configurations that cannot be run. Sensor parameters that
// have a sane clamped interpretation (sensitivity, matrix size, debounce) are
// left to the sensors.
func (c Config) Validate() error {
	if c.ScanIntervalMs <= 0 {
		return errors.New("scan-interval-ms must be > 0")
	}
	switch c.Platform {
	case PlatformPeriph:
		switch c.SampleRate {
		case 8, 16, 32, 64, 128, 250, 475, 860:
		default:
			return fmt.Errorf("sample-rate %d: the ADS1115 supports 8, 16, 32, 64, 128, 250, 475 or 860 SPS", c.SampleRate)
		}
		for _, a := range c.Analogs {
			if a.Pin < 0 || a.Pin > 3 {
				return fmt.Errorf("analog pin %d: the ADS1115 has channels 0-3", a.Pin)
			}
		}
	case PlatformSimulation:
	default:
		return fmt.Errorf("unknown platform %q", c.Platform)
	}
	for i, m := range c.Matrices {
		if len(m.Rows) == 0 || len(m.Cols) == 0 {
			return fmt.Errorf("matrix %d: rows and cols are required", i)
		}
	}
	for _, o := range c.Outputs {
		switch o.Type {
		case OutputConsole:
		case OutputMQTT:
			if o.MQTT == nil || o.MQTT.Server == "" {
				return errors.New("mqtt output requires a server")
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	return nil
}

// DigitalPins lists every GPIO referenced by buttons and matrices.
func (c Config) DigitalPins() []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, b := range c.Buttons {
		add(b.Pin)
	}
	for _, m := range c.Matrices {
		for _, p := range m.Rows {
			add(p)
		}
		for _, p := range m.Cols {
			add(p)
		}
	}
	return out
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	parts := parseCSV(s)
	out := make([]int, 0, len(parts))
	for _, t := range parts {
		v, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("invalid pin '%s': %w", t, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseKeyIntMap parses "k=v,k=v" into a map. An empty string yields an
// empty map.
func parseKeyIntMap(s string) (map[int]int, error) {
	out := make(map[int]int)
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry '%s', want key=value", p)
		}
		k, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid key '%s': %w", kv[0], err)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value '%s': %w", kv[1], err)
		}
		out[k] = v
	}
	return out, nil
}

// parseKeys returns the keys of a "k=v" list in the order given, so that
// sensors are built in command-line order. Invalid entries are skipped;
// parseKeyIntMap reports them.
func parseKeys(s string) []int {
	out := make([]int, 0)
	seen := make(map[int]bool)
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		k, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
