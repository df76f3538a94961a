package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel        = "info"
	DefaultInterval        = 5 * time.Second
	DefaultPrefix          = "SenseLog"
	DefaultAddr            = ":5000"
	DefaultSensorDriver    = "bme280"
	DefaultSensorAddress   = 0x76
	DefaultShutdownTimeout = 10 * time.Second

	// Offsets measured against a reference instrument.
	DefaultTemperatureOffset = -17.2
	DefaultHumidityOffset    = 8.5
	DefaultAltitudeOffset    = -65

	configName = "senselog"
	envPrefix  = "SENSELOG"
)

type Config struct {
	Interval        time.Duration     `mapstructure:"interval"`
	LogLevel        string            `mapstructure:"log_level"`
	PIDFile         string            `mapstructure:"pid_file"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
	Output          OutputConfig      `mapstructure:"output"`
	Sensor          SensorConfig      `mapstructure:"sensor"`
	Calibration     CalibrationConfig `mapstructure:"calibration"`
	HTTP            HTTPConfig        `mapstructure:"http"`
	Archive         ArchiveConfig     `mapstructure:"archive"`
	MQTT            MQTTConfig        `mapstructure:"mqtt"`
}

type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
}

type SensorConfig struct {
	Driver      string `mapstructure:"driver"`
	Bus         string `mapstructure:"bus"`
	Address     uint16 `mapstructure:"address"`
	Temperature bool   `mapstructure:"temperature"`
	Humidity    bool   `mapstructure:"humidity"`
	Pressure    bool   `mapstructure:"pressure"`
}

type CalibrationConfig struct {
	TemperatureOffset float64 `mapstructure:"temperature_offset"`
	HumidityOffset    float64 `mapstructure:"humidity_offset"`
	AltitudeOffset    float64 `mapstructure:"altitude_offset"`
}

type HTTPConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

type ArchiveConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	DBPath       string        `mapstructure:"db_path"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	QoS      byte   `mapstructure:"qos"`
	Retained bool   `mapstructure:"retained"`
}

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"interval":           "interval",
	"log-level":          "log_level",
	"pid-file":           "pid_file",
	"shutdown-timeout":   "shutdown_timeout",
	"output-dir":         "output.dir",
	"prefix":             "output.prefix",
	"sensor":             "sensor.driver",
	"i2c-bus":            "sensor.bus",
	"i2c-address":        "sensor.address",
	"temperature":        "sensor.temperature",
	"humidity":           "sensor.humidity",
	"pressure":           "sensor.pressure",
	"temperature-offset": "calibration.temperature_offset",
	"humidity-offset":    "calibration.humidity_offset",
	"altitude-offset":    "calibration.altitude_offset",
	"addr":               "http.addr",
	"static-dir":         "http.static_dir",
	"archive":            "archive.enabled",
	"archive-db":         "archive.db_path",
	"mqtt":               "mqtt.enabled",
	"mqtt-broker":        "mqtt.broker",
	"mqtt-topic":         "mqtt.topic",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), configName+".pid"))
	v.SetDefault("shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.prefix", DefaultPrefix)
	v.SetDefault("sensor.driver", DefaultSensorDriver)
	v.SetDefault("sensor.bus", "")
	v.SetDefault("sensor.address", DefaultSensorAddress)
	v.SetDefault("sensor.temperature", true)
	v.SetDefault("sensor.humidity", true)
	v.SetDefault("sensor.pressure", true)
	v.SetDefault("calibration.temperature_offset", DefaultTemperatureOffset)
	v.SetDefault("calibration.humidity_offset", DefaultHumidityOffset)
	v.SetDefault("calibration.altitude_offset", DefaultAltitudeOffset)
	v.SetDefault("http.addr", DefaultAddr)
	v.SetDefault("http.static_dir", "static")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.db_path", "/var/lib/senselog/samples.db")
	v.SetDefault("archive.batch_size", 10)
	v.SetDefault("archive.batch_timeout", 30*time.Second)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "senselog/samples")
	v.SetDefault("mqtt.client_id", configName)
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retained", true)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)

	fs.String("config", "", "Path to configuration file")
	fs.Duration("interval", DefaultInterval, "Interval between samples")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("pid-file", "", "Path to PID file")
	fs.Duration("shutdown-timeout", DefaultShutdownTimeout, "Maximum time to wait for the sampler on shutdown")
	fs.String("output-dir", ".", "Directory for sample log files")
	fs.String("prefix", DefaultPrefix, "Sample log file name prefix")
	fs.String("sensor", DefaultSensorDriver, "Sensor driver (bme280, simulated)")
	fs.String("i2c-bus", "", "I2C bus name, empty for the first bus")
	fs.Uint16("i2c-address", DefaultSensorAddress, "I2C address of the sensor")
	fs.Bool("temperature", true, "Sample temperature")
	fs.Bool("humidity", true, "Sample humidity")
	fs.Bool("pressure", true, "Sample pressure")
	fs.Float64("temperature-offset", DefaultTemperatureOffset, "Temperature offset in °F")
	fs.Float64("humidity-offset", DefaultHumidityOffset, "Humidity offset in %")
	fs.Float64("altitude-offset", DefaultAltitudeOffset, "Altitude offset in feet")
	fs.String("addr", DefaultAddr, "HTTP listen address")
	fs.String("static-dir", "static", "Directory the live chart is written to")
	fs.Bool("archive", false, "Archive samples to SQLite")
	fs.String("archive-db", "", "Path to the SQLite archive")
	fs.Bool("mqtt", false, "Publish samples over MQTT")
	fs.String("mqtt-broker", "", "MQTT broker URL")
	fs.String("mqtt-topic", "", "MQTT topic for samples")

	return fs
}

// Load resolves the configuration from defaults, the config file, the
// environment and the given command line arguments, in increasing priority.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	// Only flags set explicitly override the file and environment.
	fs.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	path, _ := fs.GetString("config")
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks value ranges that the loader cannot express.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.ShutdownTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "shutdown_timeout must be positive")
	}
	if c.Output.Prefix == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "output.prefix must not be empty")
	}
	switch c.Sensor.Driver {
	case "bme280", "simulated":
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown sensor driver "+c.Sensor.Driver)
	}
	if c.Archive.Enabled && c.Archive.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "archive.db_path must be set")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt.broker and mqtt.topic must be set")
	}
	if c.MQTT.QoS > 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, "mqtt.qos must be 0, 1 or 2")
	}

	return nil
}
