// Package config handles application configuration loading from a YAML file with environment overrides.
package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "learnanalytics/internal/utils"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable that points at the YAML config file.
const ConfigFileEnv = "LEARN_CONFIG_FILE"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Optional text generator used to explain incorrect answers
	TextGen TextGenConfig `json:"textgen" yaml:"textgen"`

	// Thresholds and limits for the analytics engine
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port           string        `json:"port" yaml:"port"`
	SessionSecret  string        `json:"session_secret" yaml:"session_secret"`
	Debug          bool          `json:"debug" yaml:"debug"`
	LogLevel       string        `json:"log_level" yaml:"log_level"`
	CORSOrigins    []string      `json:"cors_origins" yaml:"cors_origins"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`               // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol"`               // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`               // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                 // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`       // Default: "learnanalytics"
	ServiceVersion string            `json:"service_version" yaml:"service_version"` // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate"` // Default: 1.0 (100%)
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"` // Maximum amount of time a connection may be reused
	MigrationsPath  string        `json:"migrations_path" yaml:"migrations_path"`
}

// TextGenConfig selects and configures the generator that writes mistake explanations.
// Provider "none" (or empty) disables generation entirely.
type TextGenConfig struct {
	Provider    string        `json:"provider" yaml:"provider" validate:"omitempty,oneof=none openai anthropic mock"`
	Model       string        `json:"model" yaml:"model"`
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	Temperature float32       `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
}

// Enabled reports whether a real or mock generator should be constructed.
func (t TextGenConfig) Enabled() bool {
	return t.Provider != "" && t.Provider != "none"
}

// AnalyticsConfig carries the scoring thresholds and result limits of the engine.
type AnalyticsConfig struct {
	WeakTopicThreshold     float64 `json:"weak_topic_threshold" yaml:"weak_topic_threshold" validate:"gt=0,lte=100"`
	StrengthThreshold      float64 `json:"strength_threshold" yaml:"strength_threshold" validate:"gt=0,lte=100"`
	WeaknessThreshold      float64 `json:"weakness_threshold" yaml:"weakness_threshold" validate:"gt=0,lte=100,ltfield=StrengthThreshold"`
	TrendMinResults        int     `json:"trend_min_results" yaml:"trend_min_results" validate:"gte=2"`
	TrendWindow            int     `json:"trend_window" yaml:"trend_window" validate:"gte=1"`
	TrendDelta             float64 `json:"trend_delta" yaml:"trend_delta" validate:"gte=0"`
	InProgressWindowDays   int     `json:"in_progress_window_days" yaml:"in_progress_window_days" validate:"gte=1"`
	InProgressLimit        int     `json:"in_progress_limit" yaml:"in_progress_limit" validate:"gte=1"`
	MaxRecommendations     int     `json:"max_recommendations" yaml:"max_recommendations" validate:"gte=1"`
	SystematicAfter        int     `json:"systematic_after" yaml:"systematic_after" validate:"gte=0"`
	RemedialLessons        int     `json:"remedial_lessons" yaml:"remedial_lessons" validate:"gte=1"`
	InsightsDefaultLimit   int     `json:"insights_default_limit" yaml:"insights_default_limit" validate:"gte=1"`
	InsightsMaxLimit       int     `json:"insights_max_limit" yaml:"insights_max_limit" validate:"gte=1,gtefield=InsightsDefaultLimit"`
	CommonMistakesDefault  int     `json:"common_mistakes_default" yaml:"common_mistakes_default" validate:"gte=1"`
	CommonMistakesMaxLimit int     `json:"common_mistakes_max_limit" yaml:"common_mistakes_max_limit" validate:"gte=1,gtefield=CommonMistakesDefault"`
}

// DefaultAnalyticsConfig returns the thresholds the engine ships with.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		WeakTopicThreshold:     DefaultWeakTopicThreshold,
		StrengthThreshold:      DefaultStrengthThreshold,
		WeaknessThreshold:      DefaultWeaknessThreshold,
		TrendMinResults:        DefaultTrendMinResults,
		TrendWindow:            DefaultTrendWindow,
		TrendDelta:             DefaultTrendDelta,
		InProgressWindowDays:   DefaultInProgressWindowDays,
		InProgressLimit:        DefaultInProgressLimit,
		MaxRecommendations:     DefaultMaxRecommendations,
		SystematicAfter:        DefaultSystematicAfter,
		RemedialLessons:        DefaultRemedialLessons,
		InsightsDefaultLimit:   DefaultInsightsLimit,
		InsightsMaxLimit:       MaxInsightsLimit,
		CommonMistakesDefault:  DefaultCommonMistakesLimit,
		CommonMistakesMaxLimit: MaxCommonMistakesLimit,
	}
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// Load config from YAML file
	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	// Override with environment variables
	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct-tag constraints on the analytics and textgen sections.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c.Analytics); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "invalid analytics config: %v", err)
	}
	if err := v.Struct(c.TextGen); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "invalid textgen config: %v", err)
	}
	return nil
}

// applyDefaults fills zero values left by the file and environment
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = DefaultHTTPTimeout
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "learnanalytics"
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
	if c.OpenTelemetry.SamplingRate <= 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.TextGen.MaxTokens <= 0 {
		c.TextGen.MaxTokens = DefaultTextGenMaxTokens
	}
	if c.TextGen.Timeout <= 0 {
		c.TextGen.Timeout = TextGenRequestTimeout
	}

	defaults := DefaultAnalyticsConfig()
	a := &c.Analytics
	setFloat := func(dst *float64, def float64) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst <= 0 {
			*dst = def
		}
	}
	setFloat(&a.WeakTopicThreshold, defaults.WeakTopicThreshold)
	setFloat(&a.StrengthThreshold, defaults.StrengthThreshold)
	setFloat(&a.WeaknessThreshold, defaults.WeaknessThreshold)
	setInt(&a.TrendMinResults, defaults.TrendMinResults)
	setInt(&a.TrendWindow, defaults.TrendWindow)
	setInt(&a.InProgressWindowDays, defaults.InProgressWindowDays)
	setInt(&a.InProgressLimit, defaults.InProgressLimit)
	setInt(&a.MaxRecommendations, defaults.MaxRecommendations)
	setInt(&a.RemedialLessons, defaults.RemedialLessons)
	setInt(&a.InsightsDefaultLimit, defaults.InsightsDefaultLimit)
	setInt(&a.InsightsMaxLimit, defaults.InsightsMaxLimit)
	setInt(&a.CommonMistakesDefault, defaults.CommonMistakesDefault)
	setInt(&a.CommonMistakesMaxLimit, defaults.CommonMistakesMaxLimit)
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		// Durations are int64 underneath but are written as "5m" in env and YAML
		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by LEARN_CONFIG_FILE or ./config.yaml
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Analytics keys absent from the file keep their defaults, so an explicit 0 survives
	config := Config{Analytics: DefaultAnalyticsConfig()}
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
