package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/clankers-project/clankers/internal/protocol"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Err folds all errors into one, or returns nil when the result is valid.
func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Validate checks everything that must hold before any clanker starts.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateFleet(cfg, result)
	validateLogging(&cfg.Logging, result)
	validateAPI(&cfg.API, result)
	validateMQTT(&cfg.MQTT, result)

	return result
}

func validateFleet(cfg *Config, result *ValidationResult) {
	if strings.TrimSpace(cfg.Destination) == "" {
		result.AddError(KeyDestination, "destination address must not be empty")
	} else if _, _, err := protocol.SplitAddress(cfg.Destination); err != nil {
		result.AddError(KeyDestination, "destination must be HOST:PORT")
	}

	if cfg.Clankers <= 0 {
		result.AddError(KeyClankers, "the number of clankers must not be zero")
	}

	if cfg.Threads <= 0 {
		result.AddError(KeyThreads, "the number of threads must be positive")
	} else if cfg.Threads > runtime.NumCPU()*4 {
		result.AddWarning(KeyThreads,
			fmt.Sprintf("%d threads on %d cores will mostly add scheduling overhead", cfg.Threads, runtime.NumCPU()))
	}

	if cfg.MessageInterval <= 0 {
		result.AddError(KeyMessageInterval, "message interval must not be zero")
	} else if cfg.MessageInterval < 50 {
		result.AddWarning(KeyMessageInterval, "intervals under 50ms get most servers to kick for spam")
	}

	if cfg.NameList != "" {
		if _, err := os.Stat(cfg.NameList); err != nil {
			result.AddError(KeyNameList, fmt.Sprintf("name list '%s' doesn't exist on the filesystem", cfg.NameList))
		}
	}

	if strings.TrimSpace(cfg.MessageList) == "" {
		result.AddError(KeyMessageList, "message list is missing")
	}

	if cfg.ReportInterval < 0 {
		result.AddError(KeyReportInterval, "report interval must not be negative")
	}
}

func validateLogging(cfg *LoggingConfig, result *ValidationResult) {
	switch strings.ToLower(cfg.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		result.AddWarning(KeyLogLevel, fmt.Sprintf("unknown log level %q, using info", cfg.Level))
	}

	if cfg.MaxSizeMB < 0 {
		result.AddError(KeyLogMaxSize, "log file size limit must not be negative")
	}
	if cfg.MaxBackups < 0 {
		result.AddError(KeyLogMaxBackups, "number of kept log files must not be negative")
	}
}

func validateAPI(cfg *APIConfig, result *ValidationResult) {
	if cfg.Listen == "" {
		return
	}

	_, port, err := net.SplitHostPort(cfg.Listen)
	if err != nil {
		result.AddError(KeyAPIListen, fmt.Sprintf("invalid listen address: %v", err))
		return
	}
	if !IsPortAvailable(cfg.Listen) {
		result.AddWarning(KeyAPIListen, fmt.Sprintf("port %s is already in use", port))
	}

	if cfg.RateLimitRPS < 1 {
		result.AddWarning(KeyAPIRateLimit,
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validateMQTT(cfg *MQTTConfig, result *ValidationResult) {
	if cfg.Broker == "" {
		return
	}

	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Host == "" {
		result.AddError(KeyMQTTBroker, "MQTT broker must be a URL such as tcp://host:1883")
		return
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		result.AddError(KeyMQTTBroker, fmt.Sprintf("unsupported MQTT scheme %q", u.Scheme))
	}

	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		result.AddError(KeyMQTTTopicPrefix, "MQTT topic prefix is required when MQTT is enabled")
	}
}

// IsPortAvailable checks if a listen address is available for binding.
func IsPortAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
