package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Server   Server   `mapstructure:"server"`
	AI       AI       `mapstructure:"ai"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Batch    Batch    `mapstructure:"batch"`
	Cache    Cache    `mapstructure:"cache"`
	Scoring  Scoring  `mapstructure:"scoring"`
	Store    Store    `mapstructure:"store"`
	RefData  RefData  `mapstructure:"refdata"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Server holds HTTP server configuration
type Server struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
	APIKey          string   `mapstructure:"api_key"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// Pipeline holds article processing configuration
type Pipeline struct {
	FetchTimeout     string `mapstructure:"fetch_timeout"`
	ClassifyTimeout  string `mapstructure:"classify_timeout"`
	MinContentLength int    `mapstructure:"min_content_length"`
}

// Batch holds batch task configuration
type Batch struct {
	Concurrency      int `mapstructure:"concurrency"`
	MaxRetainedTasks int `mapstructure:"max_retained_tasks"`
}

// Cache holds content cache configuration
type Cache struct {
	TTL      string `mapstructure:"ttl"`
	Capacity int    `mapstructure:"capacity"`
}

// Scoring holds score engine configuration. Weights are keyed by dimension
// name; missing keys fall back to the built-in defaults.
type Scoring struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// Store holds persistence configuration
type Store struct {
	Dir string `mapstructure:"dir"`
}

// RefData holds reference table configuration
type RefData struct {
	Dir string `mapstructure:"dir"`
}

// Metrics holds performance tracking configuration
type Metrics struct {
	MaxSamples      int `mapstructure:"max_samples"`
	MaxRecentErrors int `mapstructure:"max_recent_errors"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".marketwire")
		viper.SetConfigType("yaml")
	}

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvironmentVariables()

	// Enable automatic environment variable reading
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal into struct
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".marketwire")

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.allowed_origins", []string{"*"})

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.timeout", "60s")

	// Pipeline defaults
	viper.SetDefault("pipeline.fetch_timeout", "20s")
	viper.SetDefault("pipeline.classify_timeout", "60s")
	viper.SetDefault("pipeline.min_content_length", 200)

	// Batch defaults
	viper.SetDefault("batch.concurrency", 4)
	viper.SetDefault("batch.max_retained_tasks", 100)

	// Cache defaults
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("cache.capacity", 512)

	// Store and reference data defaults
	viper.SetDefault("store.dir", ".marketwire")
	viper.SetDefault("refdata.dir", "data")

	// Metrics defaults
	viper.SetDefault("metrics.max_samples", 1000)
	viper.SetDefault("metrics.max_recent_errors", 10)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	// API auth token for the HTTP surface
	bindEnvKeys("server.api_key", []string{
		"API_KEY",
		"MARKETWIRE_API_KEY",
	})

	bindEnvKeys("server.port", []string{
		"PORT",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"MARKETWIRE_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// validateConfig ensures required configuration is present and well formed
func validateConfig(config *Config) error {
	var errs []string

	durations := map[string]string{
		"server.read_timeout":       config.Server.ReadTimeout,
		"server.write_timeout":      config.Server.WriteTimeout,
		"server.shutdown_timeout":   config.Server.ShutdownTimeout,
		"ai.gemini.timeout":         config.AI.Gemini.Timeout,
		"pipeline.fetch_timeout":    config.Pipeline.FetchTimeout,
		"pipeline.classify_timeout": config.Pipeline.ClassifyTimeout,
		"cache.ttl":                 config.Cache.TTL,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				errs = append(errs, fmt.Sprintf("invalid duration for %s: %s", key, duration))
			}
		}
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d", config.Server.Port))
	}
	for name, w := range config.Scoring.Weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scoring weight %s must not be negative", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Duration parses a config duration string, falling back when empty or bad.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetApp() App           { return Get().App }
func GetServer() Server     { return Get().Server }
func GetAI() AI             { return Get().AI }
func GetPipeline() Pipeline { return Get().Pipeline }
func GetBatch() Batch       { return Get().Batch }
func GetScoring() Scoring   { return Get().Scoring }
func GetMetrics() Metrics   { return Get().Metrics }

// Specific convenience getters for frequently accessed values
func GetGeminiAPIKey() string { return Get().AI.Gemini.APIKey }
func GetGeminiModel() string  { return Get().AI.Gemini.Model }
func GetDataDir() string      { return Get().App.DataDir }
func IsDebugMode() bool       { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
