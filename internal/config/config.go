package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"

	"trialsim/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Simulation SimulationConfig
	Metrics    MetricsConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory run store.
type DatabaseConfig struct {
	URL     string `validate:"omitempty,url"`
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	UIPort  string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// SimulationConfig holds defaults applied when a request leaves them unset
type SimulationConfig struct {
	MonteCarloSamples int     `validate:"gte=100,lte=10000000"`
	Workers           int     `validate:"gte=1,lte=256"`
	CredibleLevel     float64 `validate:"gt=0,lt=1"`
	Alpha             float64 `validate:"gt=0,lt=1"`
	DefaultSeed       int64
}

// MetricsConfig toggles the prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// HasDatabase reports whether a postgres URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:   *loadDatabaseConfig(),
		Server:     *loadServerConfig(),
		Simulation: *loadSimulationConfig(),
		Metrics:    *loadMetricsConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:     os.Getenv("DATABASE_URL"),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		UIPort:  getEnvOrDefault("UI_PORT", "8081"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		MonteCarloSamples: getEnvIntOrDefault("MC_SAMPLES", 10000),
		Workers:           getEnvIntOrDefault("MC_WORKERS", 4),
		DefaultSeed:       int64(getEnvIntOrDefault("DEFAULT_SEED", 42)),
		CredibleLevel:     getEnvFloatOrDefault("CREDIBLE_LEVEL", 0.95),
		Alpha:             getEnvFloatOrDefault("ALPHA", 0.05),
	}
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled: getEnvBoolOrDefault("METRICS_ENABLED", true),
	}
}

func validateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			first := verrs[0]
			return errors.ConfigInvalid(first.Namespace() + " failed " + first.Tag() + " (got " + strconv.Quote(stringValue(first.Value())) + ")")
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}

func stringValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return ""
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
