package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"robokin/internal/dataprocessing"
	"robokin/internal/validation"
	"robokin/pkg/contracts/domain"
)

// EnvPrefix is the prefix of every environment override, e.g. ROBOKIN_SERVER_PORT
const EnvPrefix = "ROBOKIN"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	Validation ValidationConfig `yaml:"validation" envconfig:"VALIDATION"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	QueueWorkers    int             `yaml:"queue_workers" envconfig:"QUEUE_WORKERS" validate:"gte=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PipelineConfig describes the robots and fields of the feature schema and how
// the pipeline runs
type PipelineConfig struct {
	Robots          []string      `yaml:"robots" envconfig:"ROBOTS" validate:"min=1,dive,required"`
	Axes            []string      `yaml:"axes" envconfig:"AXES" validate:"min=1,dive,required"`
	ForceFields     []string      `yaml:"force_fields" envconfig:"FORCE_FIELDS" validate:"dive,required"`
	MaxConcurrency  int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"gte=0"`
	DuplicatePolicy string        `yaml:"duplicate_policy" envconfig:"DUPLICATE_POLICY" validate:"oneof=last mean error"`
	StageTimeout    time.Duration `yaml:"stage_timeout" envconfig:"STAGE_TIMEOUT" validate:"gt=0"`
	RetryAttempts   int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS" validate:"min=1"`
}

// ValidationConfig holds the column rule table. It is only read from the
// config file.
type ValidationConfig struct {
	Rules map[string]validation.Rule `yaml:"rules" ignored:"true" validate:"required,min=1"`
}

// StorageConfig selects where results are written
type StorageConfig struct {
	Sink       string `yaml:"sink" envconfig:"SINK" validate:"oneof=sqlite csv both none"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH" validate:"required_if=Sink sqlite,required_if=Sink both"`
	CSVDir     string `yaml:"csv_dir" envconfig:"CSV_DIR" validate:"required_if=Sink csv,required_if=Sink both"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gte=0"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gte=0"`
}

// Load builds the configuration from defaults, then the YAML file at path,
// then ROBOKIN_* environment variables. An empty path searches the usual
// locations and falls back to defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. A rule table in the file
// replaces the default table instead of merging with it.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	defaults := cfg.Validation.Rules
	cfg.Validation.Rules = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if cfg.Validation.Rules == nil {
		cfg.Validation.Rules = defaults
	}
	return nil
}

// Validate checks the configuration and the rule table
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := c.Schema(); err != nil {
		return err
	}
	if _, err := c.FeatureSchema(); err != nil {
		return err
	}
	if _, err := dataprocessing.ParseDuplicatePolicy(c.Pipeline.DuplicatePolicy); err != nil {
		return err
	}
	return nil
}

// Schema builds the immutable validation schema from the rule table
func (c *Config) Schema() (validation.Schema, error) {
	return validation.NewSchema(c.Validation.Rules)
}

// FeatureSchema builds the wide/derived column layout from the pipeline section
func (c *Config) FeatureSchema() (*dataprocessing.FeatureSchema, error) {
	return dataprocessing.NewFeatureSchema(c.Pipeline.Robots, toFields(c.Pipeline.Axes), toFields(c.Pipeline.ForceFields))
}

// DuplicatePolicy returns the parsed duplicate policy
func (c *Config) DuplicatePolicy() dataprocessing.DuplicatePolicy {
	p, err := dataprocessing.ParseDuplicatePolicy(c.Pipeline.DuplicatePolicy)
	if err != nil {
		return dataprocessing.DuplicatePolicyLast
	}
	return p
}

func toFields(names []string) []domain.Field {
	out := make([]domain.Field, len(names))
	for i, n := range names {
		out[i] = domain.Field(n)
	}
	return out
}

// findConfigFile returns the first config file found in the usual locations
func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			QueueWorkers:    2,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/robokin.log",
		},
		Pipeline: PipelineConfig{
			Robots:          []string{"1", "2"},
			Axes:            []string{"x", "y", "z"},
			ForceFields:     []string{"fx", "fy", "fz"},
			MaxConcurrency:  4,
			DuplicatePolicy: string(dataprocessing.DuplicatePolicyLast),
			StageTimeout:    10 * time.Minute,
			RetryAttempts:   1,
		},
		Validation: ValidationConfig{
			Rules: validation.DefaultRules(),
		},
		Storage: StorageConfig{
			Sink:       "both",
			SQLitePath: "data/robokin.db",
			CSVDir:     "data/output",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "robokin",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}
