package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Neo4jConfig holds the graph database connection settings
type Neo4jConfig struct {
	URI                   string `yaml:"uri" validate:"required"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	Database              string `yaml:"database" validate:"required"`
	MaxConnectionPoolSize int    `yaml:"maxConnectionPoolSize" validate:"min=0"`
	ConnectTimeoutMs      int    `yaml:"connectTimeoutMs" validate:"min=0"`
	QueryTimeoutMs        int    `yaml:"queryTimeoutMs" validate:"min=0"`
}

// RetryConfig holds the retry policy settings for read queries
type RetryConfig struct {
	MaxAttempts   int `yaml:"maxAttempts" validate:"min=1,max=10"`
	BaseBackoffMs int `yaml:"baseBackoffMs" validate:"min=1"`
	MaxBackoffMs  int `yaml:"maxBackoffMs" validate:"gtefield=BaseBackoffMs"`
}

// TelemetryConfig holds the slow query telemetry settings. Every field
// except Capacity, Sink, LogFile and DynamoDBTable can change at runtime.
type TelemetryConfig struct {
	SlowQueryThresholdMs int      `yaml:"slowQueryThresholdMs" validate:"min=0"`
	LogAllQueries        bool     `yaml:"logAllQueries"`
	RedactFields         []string `yaml:"redactFields"`
	IncludeParams        bool     `yaml:"includeParams"`
	Capacity             int      `yaml:"capacity" validate:"min=1"`
	RetentionMinutes     int      `yaml:"retentionMinutes" validate:"min=0"`
	SinkBuffer           int      `yaml:"sinkBuffer" validate:"min=1"`

	// Sink selects the durable slow query log: file, dynamodb or none.
	Sink          string `yaml:"sink" validate:"oneof=file dynamodb none"`
	LogFile       string `yaml:"logFile"`
	DynamoDBTable string `yaml:"dynamodbTable" validate:"required_if=Sink dynamodb"`
	RecordTTLDays int    `yaml:"recordTtlDays" validate:"min=0"`
}

// SlowThreshold returns the slow query threshold as a duration.
func (t TelemetryConfig) SlowThreshold() time.Duration {
	return time.Duration(t.SlowQueryThresholdMs) * time.Millisecond
}

// RetentionWindow returns the in-memory retention window, zero for none.
func (t TelemetryConfig) RetentionWindow() time.Duration {
	return time.Duration(t.RetentionMinutes) * time.Minute
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production"`
	AWSRegion     string `yaml:"awsRegion"`

	// Lambda configuration
	IsLambda bool `yaml:"isLambda"`

	// Logging
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Retry     RetryConfig     `yaml:"retry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Feature flags
	EnableMetrics   bool     `yaml:"enableMetrics"`
	EnableTracing   bool     `yaml:"enableTracing"`
	TracingEndpoint string   `yaml:"tracingEndpoint"`
	EnableCORS      bool     `yaml:"enableCors"`
	CORSOrigins     []string `yaml:"corsOrigins"`

	// ConfigFile is the YAML overlay, also watched for telemetry changes.
	ConfigFile string `yaml:"-"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() *Config {
	return &Config{
		ServerAddress: ":8080",
		Environment:   "development",
		AWSRegion:     "us-west-2",
		LogLevel:      "info",
		Neo4j: Neo4jConfig{
			URI:                   "bolt://localhost:7687",
			Username:              "neo4j",
			Database:              "neo4j",
			MaxConnectionPoolSize: 50,
			ConnectTimeoutMs:      10000,
			QueryTimeoutMs:        30000,
		},
		Retry: RetryConfig{
			MaxAttempts:   3,
			BaseBackoffMs: 100,
			MaxBackoffMs:  2000,
		},
		Telemetry: TelemetryConfig{
			SlowQueryThresholdMs: 100,
			LogAllQueries:        false,
			RedactFields:         []string{"password", "token", "secret", "key"},
			IncludeParams:        true,
			Capacity:             10000,
			SinkBuffer:           1024,
			Sink:                 "file",
			LogFile:              "logs/graph_slow_queries.log",
			RecordTTLDays:        7,
		},
		EnableMetrics: true,
		EnableCORS:    true,
		CORSOrigins:   []string{"*"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	cfg.ConfigFile = os.Getenv("CONFIG_FILE")

	if cfg.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Neo4j.URI = getEnv("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.Username = getEnv("NEO4J_USERNAME", c.Neo4j.Username)
	c.Neo4j.Password = getEnv("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = getEnv("NEO4J_DATABASE", c.Neo4j.Database)
	c.Neo4j.MaxConnectionPoolSize = getEnvInt("NEO4J_MAX_POOL_SIZE", c.Neo4j.MaxConnectionPoolSize)
	c.Neo4j.ConnectTimeoutMs = getEnvInt("NEO4J_CONNECT_TIMEOUT_MS", c.Neo4j.ConnectTimeoutMs)
	c.Neo4j.QueryTimeoutMs = getEnvInt("NEO4J_QUERY_TIMEOUT_MS", c.Neo4j.QueryTimeoutMs)

	c.Retry.MaxAttempts = getEnvInt("QUERY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	c.Retry.BaseBackoffMs = getEnvInt("QUERY_BASE_BACKOFF_MS", c.Retry.BaseBackoffMs)
	c.Retry.MaxBackoffMs = getEnvInt("QUERY_MAX_BACKOFF_MS", c.Retry.MaxBackoffMs)

	c.Telemetry.SlowQueryThresholdMs = getEnvInt("SLOW_QUERY_THRESHOLD_MS", c.Telemetry.SlowQueryThresholdMs)
	c.Telemetry.LogAllQueries = getEnvBool("LOG_ALL_QUERIES", c.Telemetry.LogAllQueries)
	c.Telemetry.RedactFields = getEnvList("REDACT_FIELDS", c.Telemetry.RedactFields)
	c.Telemetry.IncludeParams = getEnvBool("QUERY_LOG_INCLUDE_PARAMS", c.Telemetry.IncludeParams)
	c.Telemetry.Capacity = getEnvInt("QUERY_STATS_CAPACITY", c.Telemetry.Capacity)
	c.Telemetry.RetentionMinutes = getEnvInt("QUERY_STATS_RETENTION_MINUTES", c.Telemetry.RetentionMinutes)
	c.Telemetry.Sink = getEnv("SLOW_QUERY_SINK", c.Telemetry.Sink)
	c.Telemetry.LogFile = getEnv("SLOW_QUERY_LOG_FILE", c.Telemetry.LogFile)
	c.Telemetry.DynamoDBTable = getEnv("SLOW_QUERY_TABLE", c.Telemetry.DynamoDBTable)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.TracingEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
}

var validate = validator.New()

// Validate checks struct constraints and production requirements
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Environment == "production" {
		if c.Neo4j.Password == "" {
			return fmt.Errorf("NEO4J_PASSWORD is required in production")
		}
		if c.Telemetry.LogAllQueries {
			return fmt.Errorf("LOG_ALL_QUERIES must be disabled in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
