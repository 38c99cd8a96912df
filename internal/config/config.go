// Package config handles configuration defaults, loading and validation for
// a clanker fleet. Values come from flags, CLANKERS_* environment variables
// and an optional config file, merged by viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/clankers-project/clankers/internal/util"
)

const (
	EnvPrefix             = "CLANKERS"
	DefaultReportInterval = 30
	DefaultRateLimitRPS   = 20
	DefaultTopicPrefix    = "clankers"
)

// Config keys, as used in config files. Environment variables are the
// upper-cased key with dots replaced by underscores, behind EnvPrefix.
const (
	KeyDestination     = "destination"
	KeyThreads         = "threads"
	KeyClankers        = "clankers"
	KeyNameList        = "name_list"
	KeyMessageList     = "message_list"
	KeyMessageInterval = "message_interval"
	KeyReportInterval  = "report_interval"
	KeyLogLevel        = "log.level"
	KeyLogDirectory    = "log.directory"
	KeyLogConsole      = "log.console"
	KeyLogMaxSize      = "log.max_size_mb"
	KeyLogMaxBackups   = "log.max_backups"
	KeyAPIListen       = "api.listen"
	KeyAPIRateLimit    = "api.rate_limit_rps"
	KeyMQTTBroker      = "mqtt.broker"
	KeyMQTTClientID    = "mqtt.client_id"
	KeyMQTTTopicPrefix = "mqtt.topic_prefix"
	KeyMQTTUsername    = "mqtt.username"
	KeyMQTTPassword    = "mqtt.password"
)

// Config is the root configuration of a fleet run.
type Config struct {
	Destination     string `mapstructure:"destination" json:"destination"`
	Threads         int    `mapstructure:"threads" json:"threads"`
	Clankers        int    `mapstructure:"clankers" json:"clankers"`
	NameList        string `mapstructure:"name_list" json:"name_list"`
	MessageList     string `mapstructure:"message_list" json:"message_list"`
	MessageInterval int    `mapstructure:"message_interval" json:"message_interval_ms"`
	ReportInterval  int    `mapstructure:"report_interval" json:"report_interval_s"`

	Logging LoggingConfig `mapstructure:"log" json:"log"`
	API     APIConfig     `mapstructure:"api" json:"api"`
	MQTT    MQTTConfig    `mapstructure:"mqtt" json:"mqtt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level" json:"level"`
	Directory string `mapstructure:"directory" json:"directory"`
	Console   bool   `mapstructure:"console" json:"console"`

	MaxSizeMB  int `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups" json:"max_backups"`
}

// APIConfig configures the optional status API. An empty Listen disables it.
type APIConfig struct {
	Listen       string `mapstructure:"listen" json:"listen"`
	RateLimitRPS int    `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
}

// MQTTConfig configures the optional telemetry publisher. An empty Broker
// disables it.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker" json:"broker"`
	ClientID    string `mapstructure:"client_id" json:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" json:"topic_prefix"`
	Username    string `mapstructure:"username" json:"username"`
	Password    string `mapstructure:"password" json:"-"`
}

// DefaultConfig returns a configuration with sensible defaults. Destination,
// clanker count, message list and interval have no default.
func DefaultConfig() *Config {
	return &Config{
		Threads:        runtime.NumCPU(),
		ReportInterval: DefaultReportInterval,
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			Console:    true,
			MaxSizeMB:  util.DefaultLogConfig().MaxSizeMB,
			MaxBackups: util.DefaultLogConfig().MaxBackups,
		},
		API: APIConfig{
			RateLimitRPS: DefaultRateLimitRPS,
		},
		MQTT: MQTTConfig{
			TopicPrefix: DefaultTopicPrefix,
		},
	}
}

// SetDefaults registers every key with its default so environment variables
// and config files can override any of them.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault(KeyDestination, d.Destination)
	v.SetDefault(KeyThreads, d.Threads)
	v.SetDefault(KeyClankers, d.Clankers)
	v.SetDefault(KeyNameList, d.NameList)
	v.SetDefault(KeyMessageList, d.MessageList)
	v.SetDefault(KeyMessageInterval, d.MessageInterval)
	v.SetDefault(KeyReportInterval, d.ReportInterval)
	v.SetDefault(KeyLogLevel, d.Logging.Level)
	v.SetDefault(KeyLogDirectory, d.Logging.Directory)
	v.SetDefault(KeyLogConsole, d.Logging.Console)
	v.SetDefault(KeyLogMaxSize, d.Logging.MaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, d.Logging.MaxBackups)
	v.SetDefault(KeyAPIListen, d.API.Listen)
	v.SetDefault(KeyAPIRateLimit, d.API.RateLimitRPS)
	v.SetDefault(KeyMQTTBroker, d.MQTT.Broker)
	v.SetDefault(KeyMQTTClientID, d.MQTT.ClientID)
	v.SetDefault(KeyMQTTTopicPrefix, d.MQTT.TopicPrefix)
	v.SetDefault(KeyMQTTUsername, d.MQTT.Username)
	v.SetDefault(KeyMQTTPassword, d.MQTT.Password)
}

// Load merges defaults, environment, the config file set with
// v.SetConfigFile (if any) and flags already bound to v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.ConfigFileUsed(); path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// MessageIntervalDuration returns the chat interval as a time.Duration.
func (c *Config) MessageIntervalDuration() time.Duration {
	return time.Duration(c.MessageInterval) * time.Millisecond
}

// ReportIntervalDuration returns the status report interval; zero disables reports.
func (c *Config) ReportIntervalDuration() time.Duration {
	return time.Duration(c.ReportInterval) * time.Second
}

// LogConfig converts the logging section for util.InitLogger.
func (c *Config) LogConfig() util.LogConfig {
	lc := util.DefaultLogConfig()
	lc.Level = c.Logging.Level
	lc.Directory = c.Logging.Directory
	lc.Console = c.Logging.Console
	lc.MaxSizeMB = c.Logging.MaxSizeMB
	lc.MaxBackups = c.Logging.MaxBackups
	return lc
}
