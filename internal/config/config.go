package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Output formats for the report document.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds all service settings, populated from environment variables.
// CLI flags override individual fields after Load.
type Config struct {
	HTTPAddr        string
	DataDir         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	OutputFormat    string

	// Report publishing. Enabled when brokers are set unless KAFKA_ENABLED=false.
	KafkaBrokers     []string
	KafkaReportTopic string
	KafkaEnabled     bool

	// Report history database path; empty disables history.
	ReportDB        string
	ReportCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseCacheSize()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		OutputFormat:    sharedcfg.EnvOrDefault("OUTPUT_FORMAT", FormatJSON),

		KafkaBrokers:     brokers,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "traffic-reports"),
		KafkaEnabled:     kafkaEnabled,

		ReportDB:        os.Getenv("REPORT_DB"),
		ReportCacheSize: cacheSize,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is rerun after flags are applied.
func (c *Config) Validate() error {
	if c.OutputFormat != FormatJSON && c.OutputFormat != FormatYAML {
		return fmt.Errorf("invalid OUTPUT_FORMAT %q: want %s or %s", c.OutputFormat, FormatJSON, FormatYAML)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaReportTopic == "" {
		return errors.New("KAFKA_REPORT_TOPIC is required")
	}
	return nil
}

func parseCacheSize() (int, error) {
	s := os.Getenv("REPORT_CACHE_SIZE")
	if s == "" {
		return 32, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid REPORT_CACHE_SIZE %q", s)
	}
	return n, nil
}
