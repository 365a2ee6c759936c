package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WHISPER_BATCH_ENGINE",
		"WHISPER_BATCH_SERVER_URL",
		"WHISPER_BATCH_MODEL_DIR",
		"WHISPER_BATCH_HISTORY_DB",
		"WHISPER_BATCH_LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != EngineServer {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EngineServer)
	}
	if cfg.ServerURL != "http://127.0.0.1:8178" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.HistoryDBPath != "" || cfg.ListenAddr != "" {
		t.Errorf("optional features enabled by default: %+v", cfg)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
engine: native
model_dir: /opt/models
history_db: /tmp/history.db
listen_addr: "127.0.0.1:8765"
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != EngineNative {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EngineNative)
	}
	if cfg.ModelDir != "/opt/models" {
		t.Errorf("ModelDir = %q", cfg.ModelDir)
	}
	if cfg.HistoryDBPath != "/tmp/history.db" {
		t.Errorf("HistoryDBPath = %q", cfg.HistoryDBPath)
	}
	if cfg.ListenAddr != "127.0.0.1:8765" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: http://file:9999\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WHISPER_BATCH_SERVER_URL", "http://env:1111")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://env:1111" {
		t.Errorf("ServerURL = %q, want the env override", cfg.ServerURL)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load with missing file succeeded")
	}

	t.Setenv("WHISPER_BATCH_ENGINE", "quantum")
	if _, err := Load(""); err == nil {
		t.Error("Load with unknown engine succeeded")
	}

	t.Setenv("WHISPER_BATCH_ENGINE", "native")
	t.Setenv("WHISPER_BATCH_MODEL_DIR", "x")
	if _, err := Load(""); err != nil {
		t.Errorf("native engine with model dir failed: %v", err)
	}
}
