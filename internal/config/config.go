// Package config loads go-rover settings from .env, the environment,
// command-line flags and an optional actuator YAML file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/mqttbridge"
	"github.com/teslashibe/go-rover/pkg/normalize"
	"github.com/teslashibe/go-rover/pkg/watchdog"
	"github.com/teslashibe/go-rover/pkg/web"
)

// Defaults.
const (
	DefaultAddr           = "0.0.0.0:5000"
	DefaultSink           = "log"
	DefaultMaestroDevice  = "/dev/ttyACM0"
	DefaultBackendURL     = "http://127.0.0.1:8000"
	DefaultBackendTimeout = 500 * time.Millisecond
	DefaultTTSCommand     = "espeak"
	DefaultStaticDir      = "./static"
	DefaultLogLevel       = "info"
)

// Config is the full process configuration. Immutable after startup.
type Config struct {
	Addr      string
	StaticDir string
	Debug     bool

	HardwareDisabled bool
	Sink             string
	MaestroDevice    string
	BackendURL       string
	BackendTimeout   time.Duration
	TTSCommand       string

	DriveGain        float64
	WatchdogPeriod   time.Duration
	WatchdogDeadline time.Duration

	ActuatorsFile string
	Ranges        normalize.Ranges
	Phrases       normalize.PhraseTable

	MQTTBroker   string
	MQTTPrefix   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	LogLevel string
	LogFile  string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:             DefaultAddr,
		StaticDir:        DefaultStaticDir,
		Sink:             DefaultSink,
		MaestroDevice:    DefaultMaestroDevice,
		BackendURL:       DefaultBackendURL,
		BackendTimeout:   DefaultBackendTimeout,
		TTSCommand:       DefaultTTSCommand,
		DriveGain:        normalize.DefaultGain,
		WatchdogPeriod:   watchdog.DefaultInterval,
		WatchdogDeadline: watchdog.DefaultDeadline,
		Ranges:           normalize.DefaultRanges(),
		Phrases:          normalize.DefaultPhrases(),
		MQTTPrefix:       mqttbridge.DefaultPrefix,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads .env (if present) and the environment. Flags are bound
// separately with BindFlags so they can override these values.
func Load() (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Malformed values are reported
// together rather than silently replaced by defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	e := env{get: getenv}

	cfg.Addr = e.str("ROVER_ADDR", cfg.Addr)
	cfg.StaticDir = e.str("ROVER_STATIC_DIR", cfg.StaticDir)
	cfg.Debug = e.boolean("ROVER_DEBUG", cfg.Debug)

	cfg.HardwareDisabled = e.boolean("ROVER_HARDWARE_DISABLED", cfg.HardwareDisabled)
	cfg.Sink = e.str("ROVER_SINK", cfg.Sink)
	cfg.MaestroDevice = e.str("ROVER_MAESTRO_DEVICE", cfg.MaestroDevice)
	cfg.BackendURL = e.str("ROVER_BACKEND_URL", cfg.BackendURL)
	cfg.BackendTimeout = e.duration("ROVER_BACKEND_TIMEOUT", cfg.BackendTimeout)
	cfg.TTSCommand = e.str("ROVER_TTS_COMMAND", cfg.TTSCommand)

	cfg.DriveGain = e.float("ROVER_DRIVE_GAIN", cfg.DriveGain)
	cfg.WatchdogPeriod = e.duration("ROVER_WATCHDOG_PERIOD", cfg.WatchdogPeriod)
	cfg.WatchdogDeadline = e.duration("ROVER_WATCHDOG_DEADLINE", cfg.WatchdogDeadline)

	cfg.ActuatorsFile = e.str("ROVER_ACTUATORS_FILE", cfg.ActuatorsFile)

	cfg.MQTTBroker = e.str("ROVER_MQTT_BROKER", cfg.MQTTBroker)
	cfg.MQTTPrefix = e.str("ROVER_MQTT_PREFIX", cfg.MQTTPrefix)
	cfg.MQTTClientID = e.str("ROVER_MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTUsername = e.str("ROVER_MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = e.str("ROVER_MQTT_PASSWORD", cfg.MQTTPassword)

	cfg.LogLevel = e.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = e.str("ROVER_LOG_FILE", cfg.LogFile)

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, nil
}

// BindFlags registers command-line overrides on fs. The current values
// (normally from the environment) become the flag defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP bind address")
	fs.BoolVar(&c.HardwareDisabled, "no-hardware", c.HardwareDisabled, "Log commands instead of driving hardware")
	fs.StringVar(&c.Sink, "sink", c.Sink, "Actuator sink: log, maestro or http")
	fs.StringVar(&c.ActuatorsFile, "actuators", c.ActuatorsFile, "YAML file with actuator ranges and phrases")
	fs.StringVar(&c.StaticDir, "static", c.StaticDir, "Operator UI directory")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Enable request logging")
}

// actuatorFile is the YAML layout of ROVER_ACTUATORS_FILE.
type actuatorFile struct {
	Ranges  *normalize.Ranges     `yaml:"ranges"`
	Phrases normalize.PhraseTable `yaml:"phrases"`
}

// LoadActuatorsFile merges ActuatorsFile into Ranges and Phrases.
// Sections absent from the file keep their defaults.
func (c *Config) LoadActuatorsFile() error {
	if c.ActuatorsFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ActuatorsFile)
	if err != nil {
		return fmt.Errorf("read actuators file: %w", err)
	}

	var f actuatorFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse actuators file %s: %w", c.ActuatorsFile, err)
	}
	if f.Ranges != nil {
		c.Ranges = *f.Ranges
	}
	if len(f.Phrases) > 0 {
		c.Phrases = f.Phrases
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.DriveGain <= 0 {
		errs = append(errs, fmt.Errorf("drive gain %v must be positive", c.DriveGain))
	}
	if err := c.WatchdogConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	switch k := actuator.Kind(c.Sink); k {
	case actuator.KindLog, actuator.KindMaestro, actuator.KindHTTP:
	default:
		if c.HardwareDisabled {
			errs = append(errs, fmt.Errorf("%w: %q", actuator.ErrUnknownKind, k))
		}
	}
	if err := c.ActuatorConfig().Validate(); err != nil {
		errs = append(errs, err)
	} else if err := c.Ranges.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("actuator ranges: %w", err))
	}
	if len(c.Phrases) == 0 {
		errs = append(errs, errors.New("phrase table is empty"))
	}
	for id, text := range c.Phrases {
		if strings.TrimSpace(text) == "" {
			errs = append(errs, fmt.Errorf("phrase %d is empty", id))
		}
	}
	return errors.Join(errs...)
}

// ActuatorConfig returns the sink settings.
func (c *Config) ActuatorConfig() actuator.Config {
	return actuator.Config{
		Kind:             actuator.Kind(c.Sink),
		HardwareDisabled: c.HardwareDisabled,
		MaestroDevice:    c.MaestroDevice,
		TTSCommand:       c.TTSCommand,
		BackendURL:       c.BackendURL,
		BackendTimeout:   c.BackendTimeout,
		Ranges:           c.Ranges,
	}
}

// WatchdogConfig returns the watchdog timing.
func (c *Config) WatchdogConfig() watchdog.Config {
	return watchdog.Config{Interval: c.WatchdogPeriod, Deadline: c.WatchdogDeadline}
}

// GatewayConfig returns the gateway parameters.
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{Gain: c.DriveGain, Phrases: c.Phrases}
}

// WebConfig returns the HTTP server settings.
func (c *Config) WebConfig(version string) web.Config {
	return web.Config{Addr: c.Addr, StaticDir: c.StaticDir, Debug: c.Debug, Version: version}
}

// MQTTEnabled reports whether the MQTT bridge should run.
func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// MQTTConfig returns the bridge settings.
func (c *Config) MQTTConfig() mqttbridge.Config {
	return mqttbridge.Config{
		Broker:   c.MQTTBroker,
		ClientID: c.MQTTClientID,
		Username: c.MQTTUsername,
		Password: c.MQTTPassword,
		Prefix:   c.MQTTPrefix,
		QoS:      1,
		Deadline: c.WatchdogDeadline,
	}
}

// env reads typed values and collects parse errors.
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

// duration accepts Go durations ("250ms") and bare seconds ("0.6").
func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
	return def
}
