package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/climate-controller/internal/model"
)

const (
	DriverGPIOCDev = "gpiocdev"
	DriverPinctrl  = "pinctrl"
	DriverFake     = "fake"
)

// Targets is a set-point block as written in the config file. Single-point
// devices use DefaultTarget; two-point devices use DefaultLow and DefaultHigh.
type Targets struct {
	DefaultTarget *float64 `json:"default_target_temperature"`
	DefaultLow    *float64 `json:"default_target_temperature_low"`
	DefaultHigh   *float64 `json:"default_target_temperature_high"`
}

type Relay struct {
	Pins []model.GPIOPin `json:"pins"`
}

type Relays struct {
	Driver string `json:"driver"`
	Chip   string `json:"chip"`
	// a configured heat or cool relay is what makes the device support that action
	Idle *Relay `json:"idle"`
	Cool *Relay `json:"cool"`
	Heat *Relay `json:"heat"`
}

type Sensor struct {
	model.Sensor
	PollIntervalSeconds int     `json:"poll_interval_seconds"`
	ReadRetries         int     `json:"read_retries"`
	AnomalyDelta        float64 `json:"anomaly_delta"`
	MaxAnomalies        int     `json:"max_anomalies"`
}

type MQTT struct {
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type Config struct {
	ConfigFile string
	DBPath     string
	LogFile    string
	LogLevel   zerolog.Level

	Targets
	Away           *Targets `json:"away_config"`
	Hysteresis     *float64 `json:"hysteresis"`
	MinTemperature float64  `json:"min_temperature"`
	MaxTemperature float64  `json:"max_temperature"`

	Sensor Sensor `json:"sensor"`
	Relays Relays `json:"relays"`
	MQTT   MQTT   `json:"mqtt"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`
	APIPort   int    `json:"api_port"`
	SafeMode  bool   `json:"safe_mode"`

	BootScriptFilePath string `json:"boot_script_file_path"`
	OSServicePath      string `json:"os_service_path"`
	MainServicePath    string `json:"main_service_path"`

	// resolved from Targets and Away by validate
	Normal      model.TargetConfig  `json:"-"`
	AwayProfile *model.TargetConfig `json:"-"`
}

func Load() Config {
	var (
		configFile, dbPath, logFile, logLevel string
	)

	flag.StringVar(&configFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&dbPath, "db", "data/climate.db", "Path to sqlite state database")
	flag.StringVar(&logFile, "log-file", "/var/log/climate-controller.log", "Log file path, empty for stderr")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	file, err := os.Open(configFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	cfg := Parse(file)
	cfg.ConfigFile = configFile
	cfg.DBPath = dbPath
	cfg.LogFile = logFile
	cfg.LogLevel = parseLogLevel(logLevel)
	return cfg
}

// Parse decodes a JSON config, fills defaults and validates it. It panics on
// any error.
func Parse(r io.Reader) Config {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.MinTemperature == 0 && cfg.MaxTemperature == 0 {
		cfg.MinTemperature = 7
		cfg.MaxTemperature = 35
	}
	if cfg.Sensor.PollIntervalSeconds == 0 {
		cfg.Sensor.PollIntervalSeconds = 30
	}
	if cfg.Sensor.ReadRetries == 0 {
		cfg.Sensor.ReadRetries = 3
	}
	if cfg.Sensor.AnomalyDelta == 0 {
		cfg.Sensor.AnomalyDelta = 5
	}
	if cfg.Sensor.MaxAnomalies == 0 {
		cfg.Sensor.MaxAnomalies = 3
	}
	if cfg.Relays.Driver == "" {
		cfg.Relays.Driver = DriverGPIOCDev
	}
	if cfg.Relays.Chip == "" {
		cfg.Relays.Chip = "gpiochip0"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "climate"
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.DDAgentAddr == "" {
		cfg.DDAgentAddr = "127.0.0.1:8125"
	}
	if cfg.DDNamespace == "" {
		cfg.DDNamespace = "climate_controller."
	}
	if cfg.BootScriptFilePath == "" {
		cfg.BootScriptFilePath = "/usr/local/bin/climate-relays.sh"
	}
	if cfg.OSServicePath == "" {
		cfg.OSServicePath = "/etc/systemd/system/climate-relays.service"
	}
	if cfg.MainServicePath == "" {
		cfg.MainServicePath = "/etc/systemd/system/climate-controller.service"
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) SupportsHeat() bool {
	return cfg.Relays.Heat != nil
}

func (cfg *Config) SupportsCool() bool {
	return cfg.Relays.Cool != nil
}

// HysteresisValue is the configured hysteresis, 0 when absent.
func (cfg *Config) HysteresisValue() float64 {
	if cfg.Hysteresis == nil {
		return 0
	}
	return *cfg.Hysteresis
}

// TwoPoint reports whether the device is driven by a low/high pair.
func (cfg *Config) TwoPoint() bool {
	return cfg.HysteresisValue() <= 0 || (cfg.SupportsHeat() && cfg.SupportsCool())
}

func (cfg *Config) validate() {
	if !cfg.SupportsHeat() && !cfg.SupportsCool() {
		panic("At least one of relays.heat or relays.cool must be configured")
	}
	if cfg.HysteresisValue() < 0 {
		panic("hysteresis must not be negative")
	}
	if cfg.MinTemperature >= cfg.MaxTemperature {
		panic(fmt.Sprintf("min_temperature (%.1f) must be below max_temperature (%.1f)", cfg.MinTemperature, cfg.MaxTemperature))
	}

	normal, err := cfg.resolveTargets("", cfg.Targets)
	if err != nil {
		panic(err.Error())
	}
	cfg.Normal = normal

	if cfg.Away != nil {
		away, err := cfg.resolveTargets("away_config.", *cfg.Away)
		if err != nil {
			panic(err.Error())
		}
		cfg.AwayProfile = &away
	}

	cfg.validateRelays()
}

func (cfg *Config) resolveTargets(prefix string, t Targets) (model.TargetConfig, error) {
	if cfg.TwoPoint() {
		if t.DefaultTarget != nil {
			return model.TargetConfig{}, fmt.Errorf("%sdefault_target_temperature is not allowed for two-point devices, use %sdefault_target_temperature_low and %sdefault_target_temperature_high", prefix, prefix, prefix)
		}
		var missing []string
		if t.DefaultLow == nil {
			missing = append(missing, prefix+"default_target_temperature_low")
		}
		if t.DefaultHigh == nil {
			missing = append(missing, prefix+"default_target_temperature_high")
		}
		if len(missing) > 0 {
			return model.TargetConfig{}, fmt.Errorf("Missing required target config fields: %s", strings.Join(missing, ", "))
		}
		return model.TargetConfig{DefaultLow: t.DefaultLow, DefaultHigh: t.DefaultHigh}, nil
	}

	if t.DefaultLow != nil || t.DefaultHigh != nil {
		return model.TargetConfig{}, fmt.Errorf("%sdefault_target_temperature_low and %sdefault_target_temperature_high are not allowed for single-point devices, use %sdefault_target_temperature", prefix, prefix, prefix)
	}
	if t.DefaultTarget == nil {
		return model.TargetConfig{}, fmt.Errorf("Missing required target config field: %sdefault_target_temperature", prefix)
	}
	if cfg.SupportsHeat() {
		return model.TargetConfig{DefaultLow: t.DefaultTarget}, nil
	}
	return model.TargetConfig{DefaultHigh: t.DefaultTarget}, nil
}

func (cfg *Config) validateRelays() {
	switch cfg.Relays.Driver {
	case DriverGPIOCDev, DriverPinctrl, DriverFake:
	default:
		panic(fmt.Sprintf("Unknown relays.driver %q. Valid drivers: gpiocdev, pinctrl, fake", cfg.Relays.Driver))
	}

	var (
		usedPins  = map[int]string{}
		conflicts []string
		empty     []string
	)
	for _, named := range cfg.NamedRelays() {
		if len(named.Relay.Pins) == 0 {
			empty = append(empty, "relays."+named.Name)
			continue
		}
		for _, pin := range named.Relay.Pins {
			if other, exists := usedPins[pin.Number]; exists {
				conflicts = append(conflicts, fmt.Sprintf("relays.%s and relays.%s both use pin %d", named.Name, other, pin.Number))
			} else {
				usedPins[pin.Number] = named.Name
			}
		}
	}

	if len(empty) > 0 {
		panic("Relays without pins: " + strings.Join(empty, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO pins: " + strings.Join(conflicts, ", "))
	}
}

type NamedRelay struct {
	Name  string
	Relay *Relay
}

// NamedRelays lists the configured relays in idle, cool, heat order.
func (cfg *Config) NamedRelays() []NamedRelay {
	var out []NamedRelay
	for _, r := range []NamedRelay{
		{"idle", cfg.Relays.Idle},
		{"cool", cfg.Relays.Cool},
		{"heat", cfg.Relays.Heat},
	} {
		if r.Relay != nil {
			out = append(out, r)
		}
	}
	return out
}
