package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		Profile:        "sentiment",
		ModelPath:      "food_sentiment_reg.pkl",
		ArtifactURL:    "https://artifacts.example.com/food_sentiment_reg.pkl",
		HTTPPort:       8501,
		BatchWorkers:   1,
		CacheSize:      0,
		MaxUploadBytes: 32 << 20,
		FetchTimeout:   30 * time.Second,
		ResultTTL:      24 * time.Hour,
		FlaggedValues:  []string{"1"},
		LogLevel:       "info",
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	err := validateSettings(settings)
	if err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantMsg string
	}{
		{"empty profile", func(s *Settings) { s.Profile = "" }, "profile"},
		{"unknown profile", func(s *Settings) { s.Profile = "fraud" }, "profile"},
		{"empty model path", func(s *Settings) { s.ModelPath = "" }, "model path"},
		{"artifact url scheme", func(s *Settings) { s.ArtifactURL = "file:///tmp/model.pkl" }, "artifact URL"},
		{"port too low", func(s *Settings) { s.HTTPPort = 80 }, "HTTP port"},
		{"port too high", func(s *Settings) { s.HTTPPort = 70000 }, "HTTP port"},
		{"zero workers", func(s *Settings) { s.BatchWorkers = 0 }, "batch workers"},
		{"too many workers", func(s *Settings) { s.BatchWorkers = 65 }, "batch workers"},
		{"negative cache", func(s *Settings) { s.CacheSize = -1 }, "cache size"},
		{"tiny upload limit", func(s *Settings) { s.MaxUploadBytes = 10 }, "max upload bytes"},
		{"short fetch timeout", func(s *Settings) { s.FetchTimeout = 100 * time.Millisecond }, "fetch timeout"},
		{"long fetch timeout", func(s *Settings) { s.FetchTimeout = time.Hour }, "fetch timeout"},
		{"short result ttl", func(s *Settings) { s.ResultTTL = time.Second }, "result TTL"},
		{"empty flagged value", func(s *Settings) { s.FlaggedValues = []string{"1", " "} }, "flagged values"},
		{"bad log level", func(s *Settings) { s.LogLevel = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatalf("Expected validation error for %s", tt.name)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantMsg, err)
			}
		})
	}
}

func TestValidateSettings_Boundaries(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"min port", func(s *Settings) { s.HTTPPort = 1024 }},
		{"max port", func(s *Settings) { s.HTTPPort = 65535 }},
		{"max workers", func(s *Settings) { s.BatchWorkers = 64 }},
		{"ttl disabled", func(s *Settings) { s.ResultTTL = 0 }},
		{"no artifact url", func(s *Settings) { s.ArtifactURL = "" }},
		{"spam profile", func(s *Settings) { s.Profile = "spam" }},
		{"no flagged override", func(s *Settings) { s.FlaggedValues = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)
			if err := validateSettings(settings); err != nil {
				t.Errorf("Expected %s to be valid, got: %v", tt.name, err)
			}
		})
	}
}
