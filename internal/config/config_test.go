package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Engine.Backend != "whisper" {
		t.Errorf("Engine.Backend = %q, want %q", cfg.Engine.Backend, "whisper")
	}
	if !strings.HasSuffix(cfg.Engine.ModelPath, "ggml-base.en.bin") {
		t.Errorf("Engine.ModelPath = %q", cfg.Engine.ModelPath)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.BlockSize != 480 {
		t.Errorf("Audio = %+v, want 16000 Hz in 480 sample blocks", cfg.Audio)
	}
	if cfg.VAD.PaddingStart != 300*time.Millisecond || cfg.VAD.PaddingEnd != 100*time.Millisecond {
		t.Errorf("VAD padding = %v/%v, want 300ms/100ms", cfg.VAD.PaddingStart, cfg.VAD.PaddingEnd)
	}
	if cfg.Hotkey.Mode != "hold" {
		t.Errorf("Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "hold")
	}
	if cfg.Engine.Alpha != nil || cfg.Engine.Beta != nil {
		t.Error("scorer weights should be unset by default")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
engine:
  backend: exec
  command: "recognizer --fast"
  beam_width: 500
  alpha: 0.93
  beta: 1.18
audio:
  channel_mode: split
  queue_capacity: 64
vad:
  aggressiveness: 2
  padding_start: 500ms
session:
  poll_interval: 1s
hotkey:
  keys: ["alt", "d"]
  mode: toggle
inject:
  method: paste
bus:
  enabled: true
  url: nats://bus:4222
journal:
  enabled: true
  path: /tmp/journal.db
  retention: 720h
log_level: debug
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Backend != "exec" || cfg.Engine.Command != "recognizer --fast" {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.BeamWidth != 500 {
		t.Errorf("Engine.BeamWidth = %d, want 500", cfg.Engine.BeamWidth)
	}
	if cfg.Engine.Alpha == nil || *cfg.Engine.Alpha != 0.93 || cfg.Engine.Beta == nil || *cfg.Engine.Beta != 1.18 {
		t.Errorf("scorer weights = %v/%v", cfg.Engine.Alpha, cfg.Engine.Beta)
	}
	if cfg.Audio.ChannelMode != "split" || cfg.Audio.QueueCapacity != 64 {
		t.Errorf("Audio = %+v", cfg.Audio)
	}
	// Unset fields keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.VAD.Aggressiveness != 2 || cfg.VAD.PaddingStart != 500*time.Millisecond || cfg.VAD.PaddingEnd != 100*time.Millisecond {
		t.Errorf("VAD = %+v", cfg.VAD)
	}
	if cfg.Session.PollInterval != time.Second {
		t.Errorf("Session.PollInterval = %v, want 1s", cfg.Session.PollInterval)
	}
	if cfg.Hotkey.Mode != "toggle" || len(cfg.Hotkey.Keys) != 2 {
		t.Errorf("Hotkey = %+v", cfg.Hotkey)
	}
	if cfg.Inject.Method != "paste" {
		t.Errorf("Inject.Method = %q, want %q", cfg.Inject.Method, "paste")
	}
	if !cfg.Bus.Enabled || cfg.Bus.URL != "nats://bus:4222" || cfg.Bus.SubjectPrefix != "gostt.transcript" {
		t.Errorf("Bus = %+v", cfg.Bus)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Retention != 720*time.Hour {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	yamlContent := `
engine:
  model_path: ~/models/test.bin
journal:
  path: ~/data/journal.db
`
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := filepath.Join(home, "models", "test.bin"); cfg.Engine.ModelPath != want {
		t.Errorf("Engine.ModelPath = %q, want %q", cfg.Engine.ModelPath, want)
	}
	if want := filepath.Join(home, "data", "journal.db"); cfg.Journal.Path != want {
		t.Errorf("Journal.Path = %q, want %q", cfg.Journal.Path, want)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should return error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("engine: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Error("Load() should return error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GOSTT_ENGINE_BACKEND", "stub")
	t.Setenv("GOSTT_VAD_AGGRESSIVENESS", "3")
	t.Setenv("GOSTT_VAD_ENABLED", "false")
	t.Setenv("GOSTT_POLL_INTERVAL", "100ms")
	t.Setenv("GOSTT_HOTKEY_KEYS", "ctrl, space")
	t.Setenv("GOSTT_ALPHA", "0.5")
	t.Setenv("GOSTT_BUS_URL", "  ")
	t.Setenv("GOSTT_THREADS", "not-a-number")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("engine:\n  backend: whisper\n  threads: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Backend != "stub" {
		t.Errorf("Engine.Backend = %q, want env override %q", cfg.Engine.Backend, "stub")
	}
	if cfg.VAD.Aggressiveness != 3 || cfg.VAD.Enabled {
		t.Errorf("VAD = %+v", cfg.VAD)
	}
	if cfg.Session.PollInterval != 100*time.Millisecond {
		t.Errorf("Session.PollInterval = %v", cfg.Session.PollInterval)
	}
	if len(cfg.Hotkey.Keys) != 2 || cfg.Hotkey.Keys[1] != "space" {
		t.Errorf("Hotkey.Keys = %q", cfg.Hotkey.Keys)
	}
	if cfg.Engine.Alpha == nil || *cfg.Engine.Alpha != 0.5 {
		t.Errorf("Engine.Alpha = %v, want 0.5", cfg.Engine.Alpha)
	}
	if cfg.Bus.URL != Default().Bus.URL {
		t.Errorf("blank env value replaced Bus.URL with %q", cfg.Bus.URL)
	}
	if cfg.Engine.Threads != 2 {
		t.Errorf("unparsable env value changed Engine.Threads to %d", cfg.Engine.Threads)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\") without a config file error = %v", err)
	}
	if cfg.Engine.Backend != "whisper" {
		t.Errorf("Resolve(\"\") Engine.Backend = %q, want default", cfg.Engine.Backend)
	}

	if _, err := Resolve("/nonexistent/config.yaml"); err == nil {
		t.Error("Resolve() of a missing explicit path should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default", modify: func(c *Config) {}},
		{name: "unknown backend", modify: func(c *Config) { c.Engine.Backend = "parrot" }, wantErr: true},
		{name: "whisper without model", modify: func(c *Config) { c.Engine.ModelPath = "" }, wantErr: true},
		{name: "exec without command", modify: func(c *Config) { c.Engine.Backend = "exec" }, wantErr: true},
		{name: "exec with command", modify: func(c *Config) { c.Engine.Backend = "exec"; c.Engine.Command = "rec" }},
		{name: "stub needs nothing", modify: func(c *Config) { c.Engine.Backend = "stub"; c.Engine.ModelPath = "" }},
		{name: "negative beam", modify: func(c *Config) { c.Engine.BeamWidth = -1 }, wantErr: true},
		{name: "zero sample rate", modify: func(c *Config) { c.Audio.SampleRate = 0 }, wantErr: true},
		{name: "non-engine sample rate", modify: func(c *Config) { c.Audio.SampleRate = 8000 }, wantErr: true},
		{name: "zero block size", modify: func(c *Config) { c.Audio.BlockSize = 0 }, wantErr: true},
		{name: "bad channel mode", modify: func(c *Config) { c.Audio.ChannelMode = "surround" }, wantErr: true},
		{name: "aggressiveness too high", modify: func(c *Config) { c.VAD.Aggressiveness = 4 }, wantErr: true},
		{name: "negative padding", modify: func(c *Config) { c.VAD.PaddingEnd = -time.Millisecond }, wantErr: true},
		{name: "zero poll interval", modify: func(c *Config) { c.Session.PollInterval = 0 }, wantErr: true},
		{name: "empty hotkey keys", modify: func(c *Config) { c.Hotkey.Keys = nil }, wantErr: true},
		{name: "hotkey disabled ignores keys", modify: func(c *Config) { c.Hotkey.Enabled = false; c.Hotkey.Keys = nil }},
		{name: "bad hotkey mode", modify: func(c *Config) { c.Hotkey.Mode = "tap" }, wantErr: true},
		{name: "bad inject method", modify: func(c *Config) { c.Inject.Method = "shout" }, wantErr: true},
		{name: "bus without url", modify: func(c *Config) { c.Bus.Enabled = true; c.Bus.URL = "" }, wantErr: true},
		{name: "embedded bus without url", modify: func(c *Config) { c.Bus.Enabled = true; c.Bus.Embedded = true; c.Bus.URL = "" }},
		{name: "journal without path", modify: func(c *Config) { c.Journal.Enabled = true; c.Journal.Path = "" }, wantErr: true},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault_CreatesFile(t *testing.T) {
	// Use a temp dir as fake home to avoid touching real config
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	expectedPath := filepath.Join(tmpHome, ".config", "gostt-live", "config.yaml")
	if path != expectedPath {
		t.Errorf("WriteDefault() path = %q, want %q", path, expectedPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# gostt-live") {
		t.Error("written config should start with header comment")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Hotkey.Mode != "hold" {
		t.Errorf("written config Hotkey.Mode = %q, want %q", cfg.Hotkey.Mode, "hold")
	}
	if cfg.VAD.PaddingStart != 300*time.Millisecond {
		t.Errorf("written config VAD.PaddingStart = %v, want 300ms", cfg.VAD.PaddingStart)
	}
	if cfg.Session.PollInterval != 250*time.Millisecond {
		t.Errorf("written config Session.PollInterval = %v, want 250ms", cfg.Session.PollInterval)
	}
}

func TestWriteDefault_NoOpIfExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "gostt-live")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	existingContent := []byte("engine:\n  model_path: /custom/model.bin\n")
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, existingContent, 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	path, err := WriteDefault()
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("WriteDefault() path = %q, want empty string for existing file", path)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if string(data) != string(existingContent) {
		t.Error("WriteDefault() should not overwrite existing config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
