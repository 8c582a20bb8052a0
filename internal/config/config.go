// Package config provides configuration loading and validation for the API
// server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Worker modes select how provider work is executed locally.
const (
	WorkerModeExec = "exec" // external provider scripts
	WorkerModeLLM  = "llm"  // in-process LLM client
)

// Settings is the service configuration. Values come from the environment,
// optionally overlaid by a JSON file; CLI flags win over both.
type Settings struct {
	Port       int    `json:"port,omitempty"`
	ResultsDir string `json:"results_dir,omitempty"`
	BackendURL string `json:"backend_url,omitempty"` // non-empty selects remote mode

	DatabaseURL   string `json:"database_url,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	IndexPath     string `json:"index_path,omitempty"` // SQLite run index; empty uses metadata files only

	WorkerMode    string `json:"worker_mode,omitempty"`
	WorkerDir     string `json:"worker_dir,omitempty"`      // directory holding the provider scripts
	WorkerEnvFile string `json:"worker_env_file,omitempty"` // .env passed to provider scripts
	PythonBin     string `json:"python_bin,omitempty"`
	GeminiAPIKey  string `json:"gemini_api_key,omitempty"`

	MaxParallelProviders int    `json:"max_parallel_providers,omitempty"`
	JobRetention         string `json:"job_retention,omitempty"` // Go duration, e.g. "24h"

	BusinessConfig string `json:"business_config,omitempty"` // YAML business profile
	DeepDiveFile   string `json:"deep_dive_file,omitempty"`  // used when no database is configured
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Port:                 8080,
		ResultsDir:           "results",
		WorkerMode:           WorkerModeExec,
		WorkerDir:            "worker",
		PythonBin:            "python",
		MaxParallelProviders: 5,
		JobRetention:         "24h",
		BusinessConfig:       "config.yaml",
		DeepDiveFile:         "data/deep-dive-requests.json",
	}
}

// FromEnv reads settings from environment variables. Unset variables leave
// fields empty so MergeWithDefaults can fill them.
func FromEnv() Settings {
	return Settings{
		Port:                 getEnvInt("PORT", 0),
		ResultsDir:           os.Getenv("RESULTS_DIR"),
		BackendURL:           strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		IndexPath:            os.Getenv("INDEX_PATH"),
		WorkerMode:           os.Getenv("WORKER_MODE"),
		WorkerDir:            os.Getenv("WORKER_DIR"),
		WorkerEnvFile:        os.Getenv("WORKER_ENV_FILE"),
		PythonBin:            os.Getenv("PYTHON_BIN"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		MaxParallelProviders: getEnvInt("MAX_PARALLEL_PROVIDERS", 0),
		JobRetention:         os.Getenv("JOB_RETENTION"),
		BusinessConfig:       os.Getenv("BUSINESS_CONFIG"),
		DeepDiveFile:         os.Getenv("DEEP_DIVE_FILE"),
	}
}

// LoadConfig loads settings from a JSON file.
func LoadConfig(path string) (*Settings, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &s, nil
}

// Load builds the effective settings: file values over environment values
// over defaults. An empty path skips the file.
func Load(path string) (Settings, error) {
	s := FromEnv()
	if path != "" {
		file, err := LoadConfig(path)
		if err != nil {
			return Settings{}, err
		}
		s = file.MergeWithDefaults(s)
	}
	s = s.MergeWithDefaults(DefaultSettings())
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that the settings have valid values.
func (s *Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", s.Port)
	}
	switch s.WorkerMode {
	case "", WorkerModeExec, WorkerModeLLM:
	default:
		return fmt.Errorf("config error: 'worker_mode' must be %q or %q, got %q", WorkerModeExec, WorkerModeLLM, s.WorkerMode)
	}
	if s.MaxParallelProviders < 0 {
		return fmt.Errorf("config error: 'max_parallel_providers' must be non-negative")
	}
	if s.RedisDB < 0 {
		return fmt.Errorf("config error: 'redis_db' must be non-negative")
	}
	if s.JobRetention != "" {
		if d, err := time.ParseDuration(s.JobRetention); err != nil || d <= 0 {
			return fmt.Errorf("config error: 'job_retention' must be a positive duration, got %q", s.JobRetention)
		}
	}
	if s.BackendURL != "" && !strings.HasPrefix(s.BackendURL, "http://") && !strings.HasPrefix(s.BackendURL, "https://") {
		return fmt.Errorf("config error: 'backend_url' must be an http(s) URL, got %q", s.BackendURL)
	}
	return nil
}

// Retention returns JobRetention as a duration, zero when unset.
func (s *Settings) Retention() time.Duration {
	d, _ := time.ParseDuration(s.JobRetention)
	return d
}

// RemoteMode reports whether test runs are delegated to a backend.
func (s *Settings) RemoteMode() bool {
	return s.BackendURL != ""
}

// MergeWithDefaults returns a copy with empty fields filled from defaults.
func (s *Settings) MergeWithDefaults(defaults Settings) Settings {
	r := *s

	mergeString(&r.ResultsDir, defaults.ResultsDir)
	mergeString(&r.BackendURL, defaults.BackendURL)
	mergeString(&r.DatabaseURL, defaults.DatabaseURL)
	mergeString(&r.RedisAddr, defaults.RedisAddr)
	mergeString(&r.RedisPassword, defaults.RedisPassword)
	mergeString(&r.IndexPath, defaults.IndexPath)
	mergeString(&r.WorkerMode, defaults.WorkerMode)
	mergeString(&r.WorkerDir, defaults.WorkerDir)
	mergeString(&r.WorkerEnvFile, defaults.WorkerEnvFile)
	mergeString(&r.PythonBin, defaults.PythonBin)
	mergeString(&r.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&r.JobRetention, defaults.JobRetention)
	mergeString(&r.BusinessConfig, defaults.BusinessConfig)
	mergeString(&r.DeepDiveFile, defaults.DeepDiveFile)

	if r.Port == 0 {
		r.Port = defaults.Port
	}
	if r.RedisDB == 0 {
		r.RedisDB = defaults.RedisDB
	}
	if r.MaxParallelProviders == 0 {
		r.MaxParallelProviders = defaults.MaxParallelProviders
	}
	return r
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// getEnvInt gets an environment variable as an int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
