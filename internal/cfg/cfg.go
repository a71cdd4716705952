package cfg

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"msgclf/internal/common"
)

type Settings struct {
	Profile        string
	ModelPath      string
	ArtifactURL    string
	DataPath       string
	HTTPPort       int
	BatchWorkers   int
	CacheSize      int
	MaxUploadBytes int64
	FetchTimeout   time.Duration
	ResultTTL      time.Duration
	FlaggedValues  []string
	LogLevel       string
	LogPretty      bool
}

type ConfigFile struct {
	Dashboard struct {
		Profile       string   `yaml:"profile"`
		HTTPPort      int      `yaml:"httpPort"`
		FlaggedValues []string `yaml:"flaggedValues"`
	} `yaml:"dashboard"`

	Model struct {
		Path           string `yaml:"path"`
		ArtifactURL    string `yaml:"artifactURL"`
		FetchTimeout   string `yaml:"fetchTimeout"`
		CacheSize      int    `yaml:"cacheSize"`
		BatchWorkers   int    `yaml:"batchWorkers"`
		MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	} `yaml:"model"`

	System struct {
		DataPath  string `yaml:"dataPath"`
		ResultTTL string `yaml:"resultTTL"`
		LogLevel  string `yaml:"logLevel"`
		LogPretty bool   `yaml:"logPretty"`
	} `yaml:"system"`
}

const (
	defaultFetchTimeout = 30 * time.Second
	defaultResultTTL    = 24 * time.Hour
)

func Load() (Settings, error) {
	// A local .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to read .env file: %w", err)
	}

	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(config.Model.FetchTimeout)
	if err != nil {
		fetchTimeout = defaultFetchTimeout
	}

	resultTTL, err := time.ParseDuration(config.System.ResultTTL)
	if err != nil {
		resultTTL = defaultResultTTL
	}

	profile := getEnvOrDefault(common.EnvProfile, orDefault(config.Dashboard.Profile, common.DefaultProfile))

	settings := Settings{
		Profile:        profile,
		ModelPath:      getEnvOrDefault(common.EnvModelPath, orDefault(config.Model.Path, DefaultModelPath(profile))),
		ArtifactURL:    getEnvOrDefault(common.EnvArtifactURL, config.Model.ArtifactURL),
		DataPath:       getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		HTTPPort:       getIntFromEnvOrConfig(common.EnvHTTPPort, config.Dashboard.HTTPPort, common.DefaultHTTPPort),
		BatchWorkers:   getIntFromEnvOrConfig(common.EnvBatchWorkers, config.Model.BatchWorkers, common.DefaultBatchWorkers),
		CacheSize:      getIntFromEnvOrConfig(common.EnvCacheSize, config.Model.CacheSize, common.DefaultCacheSize),
		MaxUploadBytes: getInt64FromEnvOrConfig(common.EnvMaxUploadBytes, config.Model.MaxUploadBytes, common.DefaultMaxUploadBytes),
		FetchTimeout:   getDurationOrDefault(common.EnvFetchTimeout, fetchTimeout),
		ResultTTL:      getDurationOrDefault(common.EnvResultTTL, resultTTL),
		FlaggedValues:  getListFromEnvOrConfig(common.EnvFlaggedValues, config.Dashboard.FlaggedValues),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogPretty:      getBoolFromEnvOrConfig(common.EnvLogPretty, config.System.LogPretty),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	profile := getEnvOrDefault(common.EnvProfile, common.DefaultProfile)

	settings := Settings{
		Profile:        profile,
		ModelPath:      getEnvOrDefault(common.EnvModelPath, DefaultModelPath(profile)),
		ArtifactURL:    os.Getenv(common.EnvArtifactURL), // optional
		DataPath:       os.Getenv(common.EnvDataPath),    // optional
		HTTPPort:       getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		BatchWorkers:   getIntOrDefault(common.EnvBatchWorkers, common.DefaultBatchWorkers),
		CacheSize:      getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		MaxUploadBytes: getInt64OrDefault(common.EnvMaxUploadBytes, common.DefaultMaxUploadBytes),
		FetchTimeout:   getDurationOrDefault(common.EnvFetchTimeout, defaultFetchTimeout),
		ResultTTL:      getDurationOrDefault(common.EnvResultTTL, defaultResultTTL),
		FlaggedValues:  splitOrDefault(os.Getenv(common.EnvFlaggedValues), nil),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:      getBoolOrDefault(common.EnvLogPretty, false),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DefaultModelPath returns the artifact file name a profile loads when
// MODEL_PATH is not set.
func DefaultModelPath(profile string) string {
	if profile == common.ProfileSpam {
		return common.DefaultSpamModel
	}
	return common.DefaultSentimentModel
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getListFromEnvOrConfig(key string, configValues []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	return configValues
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate profile
	switch settings.Profile {
	case common.ProfileSentiment, common.ProfileSpam:
	default:
		return fmt.Errorf("profile must be %q or %q, got %q", common.ProfileSentiment, common.ProfileSpam, settings.Profile)
	}

	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ArtifactURL != "" &&
		!strings.HasPrefix(settings.ArtifactURL, "http://") && !strings.HasPrefix(settings.ArtifactURL, "https://") {
		return fmt.Errorf("artifact URL must be http or https, got %q", settings.ArtifactURL)
	}

	// Validate integer values
	if settings.HTTPPort < common.MinHTTPPort || settings.HTTPPort > common.MaxHTTPPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinHTTPPort, common.MaxHTTPPort, settings.HTTPPort)
	}
	if settings.BatchWorkers < 1 || settings.BatchWorkers > common.MaxBatchWorkers {
		return fmt.Errorf("batch workers must be between 1 and %d, got %d", common.MaxBatchWorkers, settings.BatchWorkers)
	}
	if settings.CacheSize < 0 || settings.CacheSize > common.MaxCacheSize {
		return fmt.Errorf("cache size must be between 0 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
	}
	if settings.MaxUploadBytes < common.MinMaxUploadBytes || settings.MaxUploadBytes > common.MaxMaxUploadBytes {
		return fmt.Errorf("max upload bytes must be between %d and %d, got %d",
			common.MinMaxUploadBytes, common.MaxMaxUploadBytes, settings.MaxUploadBytes)
	}

	// Validate time durations
	if settings.FetchTimeout < time.Second || settings.FetchTimeout > 5*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 5m, got %v", settings.FetchTimeout)
	}
	if settings.ResultTTL != 0 && (settings.ResultTTL < time.Minute || settings.ResultTTL > 30*24*time.Hour) {
		return fmt.Errorf("result TTL must be 0 or between 1m and 720h, got %v", settings.ResultTTL)
	}

	// Validate label mapping
	for _, v := range settings.FlaggedValues {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("flagged values cannot contain empty entries")
		}
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
