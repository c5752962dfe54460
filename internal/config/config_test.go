package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

// isolateEnv clears every PROCGATE_* variable and points the env file at a
// path that does not exist.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envConfigFile, envTitle, envVersion, envRootPath, envHost, envPort, envLogLevel,
		envMetaDriver, envRedisURL, envSQLitePath, envQueueDriver, envQueueKey, envNATSURL,
		envObjectDriver, envR2Endpoint, envR2Region, envR2AccessKey, envR2SecretKey,
		envR2Bucket, envExternalRouters,
	} {
		t.Setenv(k, "")
	}
	t.Setenv(envEnvFile, filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.App.Port, defaultPort)
	}
	if cfg.Metadata.RedisURL != defaultRedisURL {
		t.Errorf("RedisURL = %q, want %q", cfg.Metadata.RedisURL, defaultRedisURL)
	}
	if cfg.Queue.Key != defaultQueueKey {
		t.Errorf("Queue.Key = %q, want %q", cfg.Queue.Key, defaultQueueKey)
	}
	if cfg.Objects.Bucket != defaultBucket {
		t.Errorf("Bucket = %q, want %q", cfg.Objects.Bucket, defaultBucket)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level = %v, want %v", cfg.Level(), slog.LevelInfo)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(defaults): %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envPort, "3333")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envQueueKey, "queue:test")
	t.Setenv(envR2Bucket, "other-bucket")
	t.Setenv(envExternalRouters, "procgate:health, procgate:info ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Port != 3333 {
		t.Errorf("Port = %d, want 3333", cfg.App.Port)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", cfg.Level())
	}
	if cfg.Queue.Key != "queue:test" {
		t.Errorf("Queue.Key = %q, want queue:test", cfg.Queue.Key)
	}
	if cfg.Objects.Bucket != "other-bucket" {
		t.Errorf("Bucket = %q, want other-bucket", cfg.Objects.Bucket)
	}
	if len(cfg.App.ExternalRouters) != 2 || cfg.App.ExternalRouters[1] != "procgate:info" {
		t.Errorf("ExternalRouters = %q", cfg.App.ExternalRouters)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	isolateEnv(t)
	t.Setenv(envPort, "eighty")

	if _, err := Load(); err == nil {
		t.Error("Load with non-numeric port succeeded, want error")
	}
}

func TestLoadTOMLFileThenEnv(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "procgate.toml")
	content := `
[app]
title = "Test"
port = 3333
external_routers = ["procgate:info"]

[metadata]
driver = "sqlite"
sqlite_path = "/tmp/meta.db"

[objects]
bucket = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(envConfigFile, path)
	t.Setenv(envR2Bucket, "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Title != "Test" || cfg.App.Port != 3333 {
		t.Errorf("App = %+v", cfg.App)
	}
	if cfg.Metadata.Driver != "sqlite" || cfg.Metadata.SQLitePath != "/tmp/meta.db" {
		t.Errorf("Metadata = %+v", cfg.Metadata)
	}
	if cfg.Objects.Bucket != "from-env" {
		t.Errorf("Bucket = %q, want env to override file", cfg.Objects.Bucket)
	}
	if cfg.Queue.Key != defaultQueueKey {
		t.Errorf("Queue.Key = %q, want default kept", cfg.Queue.Key)
	}
}

func TestLoadTOMLUnknownField(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "procgate.toml")
	os.WriteFile(path, []byte("[app]\nworkers = 4\n"), 0o644)
	t.Setenv(envConfigFile, path)

	if _, err := Load(); err == nil {
		t.Error("Load with unknown field succeeded, want error")
	}
}

func TestLoadFileExplicitPath(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "explicit.toml")
	if err := os.WriteFile(path, []byte("[queue]\nkey = \"queue:explicit\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Queue.Key != "queue:explicit" {
		t.Errorf("Queue.Key = %q, want queue:explicit", cfg.Queue.Key)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadFile(missing) succeeded, want error")
	}
}

func TestWriteTOMLMasksSecret(t *testing.T) {
	cfg := Default()
	cfg.Objects.SecretAccessKey = "s3cr3t"

	var buf bytes.Buffer
	if err := cfg.WriteTOML(&buf); err != nil {
		t.Fatalf("WriteTOML: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "s3cr3t") {
		t.Error("secret leaked into TOML output")
	}
	if !strings.Contains(out, "queue:jobs") {
		t.Errorf("output missing queue key:\n%s", out)
	}
	if cfg.Objects.SecretAccessKey != "s3cr3t" {
		t.Error("WriteTOML modified the receiver")
	}

	var back Config
	if err := toml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid TOML: %v", err)
	}
	if back.App.Port != defaultPort {
		t.Errorf("Port = %d, want %d", back.App.Port, defaultPort)
	}
}

func TestLoadEnvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("PROCGATE_QUEUE_KEY=queue:dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(envEnvFile, path)
	// Unset rather than empty so godotenv may fill it.
	os.Unsetenv(envQueueKey)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Queue.Key != "queue:dotenv" {
		t.Errorf("Queue.Key = %q, want queue:dotenv", cfg.Queue.Key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.App.Port = 0 }},
		{"port too big", func(c *Config) { c.App.Port = 70000 }},
		{"root path relative", func(c *Config) { c.App.RootPath = "api" }},
		{"metadata driver", func(c *Config) { c.Metadata.Driver = "etcd" }},
		{"queue driver", func(c *Config) { c.Queue.Driver = "kafka" }},
		{"object driver", func(c *Config) { c.Objects.Driver = "gcs" }},
		{"queue key", func(c *Config) { c.Queue.Key = "" }},
		{"bucket", func(c *Config) { c.Objects.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate succeeded, want error")
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = 3333
	if got := cfg.ListenAddr(); got != "127.0.0.1:3333" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:3333", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"critical", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
}
