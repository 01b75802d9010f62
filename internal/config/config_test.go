package config

import (
	"log/slog"
	"os"
	"testing"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"INDEX_SERVICE_URL", "LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY",
		"DB_PATH", "API_PORT", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required fields only",
			setupEnv: func(t *testing.T) {
				setEnv("INDEX_SERVICE_URL", "http://localhost:4000")
				setEnv("DB_PATH", t.TempDir()+"/notes.db")
			},
			wantErr: false,
			checkConfig: func(c *Config) bool {
				return c.IndexServiceURL == "http://localhost:4000" &&
					c.APIPort == "3001" &&
					c.LogLevel == slog.LevelInfo &&
					c.LogFormat == "text"
			},
		},
		{
			name: "missing index service URL",
			setupEnv: func(t *testing.T) {
				setEnv("DB_PATH", t.TempDir()+"/notes.db")
			},
			wantErr: true,
		},
		{
			name: "custom log level and port",
			setupEnv: func(t *testing.T) {
				setEnv("INDEX_SERVICE_URL", "http://localhost:4000")
				setEnv("DB_PATH", t.TempDir()+"/notes.db")
				setEnv("LOG_LEVEL", "debug")
				setEnv("LOG_FORMAT", "json")
				setEnv("API_PORT", "8080")
			},
			wantErr: false,
			checkConfig: func(c *Config) bool {
				return c.LogLevel == slog.LevelDebug &&
					c.LogFormat == "json" &&
					c.APIPort == "8080"
			},
		},
		{
			name: "invalid log level",
			setupEnv: func(t *testing.T) {
				setEnv("INDEX_SERVICE_URL", "http://localhost:4000")
				setEnv("DB_PATH", t.TempDir()+"/notes.db")
				setEnv("LOG_LEVEL", "verbose")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envVars {
				unsetEnv(key)
			}
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config check failed: %+v", cfg)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseLogLevel(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseLogLevel(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLogLevel(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
