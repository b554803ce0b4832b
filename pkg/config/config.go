package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:slopscope.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Classifier ClassifierConfig `yaml:"classifier" json:"classifier" jsonschema:"description=Text classification model configuration"`

	Scan ScanConfig `yaml:"scan" json:"scan" jsonschema:"description=Thread scanning configuration"`

	Watch WatchConfig `yaml:"watch" json:"watch" jsonschema:"description=Thread feed watching configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Submission body extraction configuration"`
}

// ClassifierConfig holds the model backend configuration
type ClassifierConfig struct {
	Endpoint    string        `yaml:"endpoint" json:"endpoint" jsonschema:"required,description=OpenAI-compatible inference endpoint"`
	APIKey      string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model       string        `yaml:"model" json:"model" jsonschema:"description=Default model identifier; overridden by the selectedModel setting"`
	Temperature float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.0,description=Temperature for classification responses"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=100,description=Maximum tokens in response"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=3s,description=Delay before the single session-error retry"`
}

// ScanConfig holds scanning behavior settings
type ScanConfig struct {
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=10,description=Minimum comment text length to classify"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Page fetch timeout"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Slopscope/1.0,description=User agent for page requests"`
}

// WatchConfig holds thread feed polling settings
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable thread feed watching"`
	Interval time.Duration `yaml:"interval" json:"interval" jsonschema:"default=1m,description=Feed poll interval"`
	Threads  []string      `yaml:"threads" json:"threads" jsonschema:"description=Thread URLs to watch"`
}

// ExtractionConfig holds submission body extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Classify the submission body as well as comments"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:slopscope.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}

	// set defaults for classifier
	if cfg.Classifier.MaxTokens == 0 {
		cfg.Classifier.MaxTokens = 100
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 30 * time.Second
	}
	if cfg.Classifier.RetryDelay == 0 {
		cfg.Classifier.RetryDelay = 3 * time.Second
	}

	// set defaults for scan
	if cfg.Scan.MinTextLength == 0 {
		cfg.Scan.MinTextLength = 10
	}
	if cfg.Scan.Timeout == 0 {
		cfg.Scan.Timeout = 30 * time.Second
	}
	if cfg.Scan.UserAgent == "" {
		cfg.Scan.UserAgent = "Slopscope/1.0"
	}

	// set defaults for watch
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = time.Minute
	}

	// set defaults for extraction
	if cfg.Extraction.Timeout == 0 {
		cfg.Extraction.Timeout = 30 * time.Second
	}
	if cfg.Extraction.MinTextLength == 0 {
		cfg.Extraction.MinTextLength = 100
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate classifier config
	if cfg.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint is required")
	}
	if cfg.Classifier.Temperature < 0 || cfg.Classifier.Temperature > 2 {
		return fmt.Errorf("classifier.temperature must be between 0 and 2")
	}

	// validate scan config
	if cfg.Scan.MinTextLength < 0 {
		return fmt.Errorf("scan.min_text_length must be non-negative")
	}
	if cfg.Scan.Timeout < time.Second {
		return fmt.Errorf("scan timeout must be at least 1 second")
	}

	// validate watch config
	if cfg.Watch.Enabled {
		if cfg.Watch.Interval < time.Second {
			return fmt.Errorf("watch interval must be at least 1 second")
		}
		if len(cfg.Watch.Threads) == 0 {
			return fmt.Errorf("watch.threads is required when watching is enabled")
		}
	}

	// validate extraction config
	if cfg.Extraction.Enabled {
		if cfg.Extraction.Timeout < time.Second {
			return fmt.Errorf("extraction timeout must be at least 1 second")
		}
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetClassifierConfig returns the model backend configuration
func (c *Config) GetClassifierConfig() ClassifierConfig {
	return c.Classifier
}

// GetScanConfig returns thread scanning configuration
func (c *Config) GetScanConfig() ScanConfig {
	return c.Scan
}

// GetExtractionConfig returns submission extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}
