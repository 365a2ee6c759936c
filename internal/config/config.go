package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds worker-level settings. Manifest fields (session, model list,
// output formats) stay in the manifest; this covers everything around it.
type Config struct {
	// Engine selects the transcription backend: "server" talks to a
	// whisper.cpp server over HTTP, "native" loads models in-process.
	Engine string `yaml:"engine"`

	// ServerURL is the whisper server base URL for the server engine.
	ServerURL string `yaml:"server_url"`

	// ModelDir is where the native engine looks for ggml model files.
	ModelDir string `yaml:"model_dir"`

	// HistoryDBPath enables the sqlite run history when non-empty.
	HistoryDBPath string `yaml:"history_db"`

	// ListenAddr enables the status HTTP server when non-empty,
	// e.g. "127.0.0.1:8765".
	ListenAddr string `yaml:"listen_addr"`
}

const (
	EngineServer = "server"
	EngineNative = "native"
)

// Load builds the configuration: defaults, then the optional YAML file,
// then environment variable overrides, strongest last.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Engine:    EngineServer,
		ServerURL: "http://127.0.0.1:8178",
		ModelDir:  defaultModelDir(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Engine = strings.ToLower(getEnv("WHISPER_BATCH_ENGINE", cfg.Engine))
	cfg.ServerURL = getEnv("WHISPER_BATCH_SERVER_URL", cfg.ServerURL)
	cfg.ModelDir = getEnv("WHISPER_BATCH_MODEL_DIR", cfg.ModelDir)
	cfg.HistoryDBPath = getEnv("WHISPER_BATCH_HISTORY_DB", cfg.HistoryDBPath)
	cfg.ListenAddr = getEnv("WHISPER_BATCH_LISTEN_ADDR", cfg.ListenAddr)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Engine {
	case EngineServer:
		if c.ServerURL == "" {
			return fmt.Errorf("server engine requires a server URL")
		}
	case EngineNative:
		if c.ModelDir == "" {
			return fmt.Errorf("native engine requires a model directory")
		}
	default:
		return fmt.Errorf("unknown engine %q (want %q or %q)", c.Engine, EngineServer, EngineNative)
	}
	return nil
}

func defaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".cache", "whisper-batch", "models")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
