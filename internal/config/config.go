package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/gostt-live/internal/pcm"
)

// Config holds all application configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Audio     AudioConfig     `yaml:"audio"`
	VAD       VADConfig       `yaml:"vad"`
	Session   SessionConfig   `yaml:"session"`
	Hotkey    HotkeyConfig    `yaml:"hotkey"`
	Inject    InjectConfig    `yaml:"inject"`
	Bus       BusConfig       `yaml:"bus"`
	Journal   JournalConfig   `yaml:"journal"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"log_level"`
}

// EngineConfig selects and tunes the speech engine.
type EngineConfig struct {
	Backend    string `yaml:"backend"` // "whisper", "exec" or "stub"
	ModelPath  string `yaml:"model_path"`
	ScorerPath string `yaml:"scorer_path,omitempty"`
	// BeamWidth 0 keeps the engine default.
	BeamWidth int `yaml:"beam_width"`
	// Alpha and Beta only apply when both are set.
	Alpha    *float64 `yaml:"alpha,omitempty"`
	Beta     *float64 `yaml:"beta,omitempty"`
	Language string   `yaml:"language"`
	Threads  int      `yaml:"threads"`
	Command  string   `yaml:"command,omitempty"`
	OneShot  bool     `yaml:"one_shot"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate    int    `yaml:"sample_rate"`
	BlockSize     int    `yaml:"block_size"`
	ChannelMode   string `yaml:"channel_mode"` // "downmix" or "split"
	QueueCapacity int    `yaml:"queue_capacity"`
}

// VADConfig holds voice activity gate settings.
type VADConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Aggressiveness int           `yaml:"aggressiveness"`
	PaddingStart   time.Duration `yaml:"padding_start"`
	PaddingEnd     time.Duration `yaml:"padding_end"`
}

// SessionConfig holds worker timing.
type SessionConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Enabled bool     `yaml:"enabled"`
	Keys    []string `yaml:"keys"`
	Mode    string   `yaml:"mode"` // "hold" or "toggle"
}

// InjectConfig holds text injection settings.
type InjectConfig struct {
	Enabled bool   `yaml:"enabled"`
	Method  string `yaml:"method"` // "type" or "paste"
}

// BusConfig holds NATS result publishing settings.
type BusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	// Embedded runs an in-process server on EmbeddedPort instead of
	// dialing URL.
	Embedded     bool `yaml:"embedded"`
	EmbeddedPort int  `yaml:"embedded_port"`
}

// JournalConfig holds transcript journal settings.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// TelemetryConfig holds metrics and tracing settings.
type TelemetryConfig struct {
	MetricsAddr  string `yaml:"metrics_addr"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	TraceStdout  bool   `yaml:"trace_stdout"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-live")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for models and the journal.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "gostt-live")
}

// DefaultModelsDir returns the directory fetch-model downloads into.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Backend:   "whisper",
			ModelPath: filepath.Join(DefaultModelsDir(), "ggml-base.en.bin"),
			Language:  "en",
			Threads:   4,
		},
		Audio: AudioConfig{
			SampleRate:  16000,
			BlockSize:   480,
			ChannelMode: "downmix",
		},
		VAD: VADConfig{
			Enabled:      true,
			PaddingStart: 300 * time.Millisecond,
			PaddingEnd:   100 * time.Millisecond,
		},
		Session: SessionConfig{
			PollInterval:    250 * time.Millisecond,
			ShutdownTimeout: 10 * time.Second,
		},
		Hotkey: HotkeyConfig{
			Enabled: true,
			Keys:    []string{"ctrl", "shift", "r"},
			Mode:    "hold",
		},
		Inject: InjectConfig{
			Enabled: true,
			Method:  "type",
		},
		Bus: BusConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "gostt.transcript",
			EmbeddedPort:  4222,
		},
		Journal: JournalConfig{
			Path: filepath.Join(DefaultDataDir(), "journal.db"),
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file, then applies GOSTT_*
// environment overrides. Missing fields are filled with defaults. Tilde (~)
// in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.finish()
	return cfg, nil
}

// Resolve loads path, or the default config file when path is empty. A
// missing default file yields the defaults; a missing explicit file is an
// error.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.finish()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) finish() {
	c.applyEnv()
	c.Engine.ModelPath = expandTilde(c.Engine.ModelPath)
	c.Engine.ScorerPath = expandTilde(c.Engine.ScorerPath)
	c.Journal.Path = expandTilde(c.Journal.Path)
}

func (c *Config) applyEnv() {
	overrideString(&c.Engine.Backend, "GOSTT_ENGINE_BACKEND")
	overrideString(&c.Engine.ModelPath, "GOSTT_MODEL_PATH")
	overrideString(&c.Engine.ScorerPath, "GOSTT_SCORER_PATH")
	overrideString(&c.Engine.Command, "GOSTT_ENGINE_COMMAND")
	overrideString(&c.Engine.Language, "GOSTT_LANGUAGE")
	overrideInt(&c.Engine.BeamWidth, "GOSTT_BEAM_WIDTH")
	overrideInt(&c.Engine.Threads, "GOSTT_THREADS")
	overrideFloatPtr(&c.Engine.Alpha, "GOSTT_ALPHA")
	overrideFloatPtr(&c.Engine.Beta, "GOSTT_BETA")
	overrideString(&c.Audio.ChannelMode, "GOSTT_CHANNEL_MODE")
	overrideBool(&c.VAD.Enabled, "GOSTT_VAD_ENABLED")
	overrideInt(&c.VAD.Aggressiveness, "GOSTT_VAD_AGGRESSIVENESS")
	overrideDuration(&c.Session.PollInterval, "GOSTT_POLL_INTERVAL")
	overrideStringSlice(&c.Hotkey.Keys, "GOSTT_HOTKEY_KEYS")
	overrideString(&c.Hotkey.Mode, "GOSTT_HOTKEY_MODE")
	overrideString(&c.Inject.Method, "GOSTT_INJECT_METHOD")
	overrideBool(&c.Bus.Enabled, "GOSTT_BUS_ENABLED")
	overrideString(&c.Bus.URL, "GOSTT_BUS_URL")
	overrideBool(&c.Journal.Enabled, "GOSTT_JOURNAL_ENABLED")
	overrideString(&c.Journal.Path, "GOSTT_JOURNAL_PATH")
	overrideString(&c.Telemetry.MetricsAddr, "GOSTT_METRICS_ADDR")
	overrideString(&c.Telemetry.OTLPEndpoint, "GOSTT_OTLP_ENDPOINT")
	overrideString(&c.LogLevel, "GOSTT_LOG_LEVEL")
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case "whisper":
		if c.Engine.ModelPath == "" {
			return fmt.Errorf("engine.model_path must not be empty for the whisper backend")
		}
	case "exec":
		if strings.TrimSpace(c.Engine.Command) == "" {
			return fmt.Errorf("engine.command must not be empty for the exec backend")
		}
	case "stub":
	default:
		return fmt.Errorf("engine.backend must be \"whisper\", \"exec\" or \"stub\", got %q", c.Engine.Backend)
	}
	if c.Engine.BeamWidth < 0 {
		return fmt.Errorf("engine.beam_width must be >= 0")
	}

	if c.Audio.SampleRate != pcm.TargetSampleRate {
		return fmt.Errorf("audio.sample_rate must be %d, got %d", pcm.TargetSampleRate, c.Audio.SampleRate)
	}
	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio.block_size must be > 0")
	}
	switch c.Audio.ChannelMode {
	case "downmix", "split":
	default:
		return fmt.Errorf("audio.channel_mode must be \"downmix\" or \"split\", got %q", c.Audio.ChannelMode)
	}

	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return fmt.Errorf("vad.aggressiveness must be 0..3, got %d", c.VAD.Aggressiveness)
	}
	if c.VAD.PaddingStart < 0 || c.VAD.PaddingEnd < 0 {
		return fmt.Errorf("vad padding must not be negative")
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("session.poll_interval must be > 0")
	}

	if c.Hotkey.Enabled {
		if len(c.Hotkey.Keys) == 0 {
			return fmt.Errorf("hotkey.keys must not be empty")
		}
		switch c.Hotkey.Mode {
		case "hold", "toggle":
		default:
			return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
		}
	}

	switch c.Inject.Method {
	case "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	if c.Bus.Enabled && !c.Bus.Embedded && c.Bus.URL == "" {
		return fmt.Errorf("bus.url must not be empty when the bus is enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path must not be empty when the journal is enabled")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WriteDefault writes the default config to DefaultConfigPath. It returns
// ("", nil) without touching anything when the file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	header := "# gostt-live configuration\n# Environment variables prefixed GOSTT_ override these values.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config level to slog. Unknown values mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloatPtr(target **float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = &parsed
		}
	}
}

func overrideDuration(target *time.Duration, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}
