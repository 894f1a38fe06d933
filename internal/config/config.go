package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime configuration.
type Config struct {
	Deepgram  DeepgramConfig  `mapstructure:"deepgram"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Session   SessionConfig   `mapstructure:"session"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Timers    TimersConfig    `mapstructure:"timers"`
	Launcher  LauncherConfig  `mapstructure:"launcher"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type DeepgramConfig struct {
	APIKey      string `mapstructure:"api_key"`
	APIBaseURL  string `mapstructure:"api_base_url"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	SmartFormat bool   `mapstructure:"smart_format"`
	// Keywords are boosted terms in Deepgram's "word:intensifier" form.
	Keywords    []string      `mapstructure:"keywords"`
	Endpointing time.Duration `mapstructure:"endpointing"`
	KeepAlive   time.Duration `mapstructure:"keep_alive"`
}

type AudioConfig struct {
	RecorderCommand string `mapstructure:"recorder_command"`
	InputFormat     string `mapstructure:"input_format"`
	InputDevice     string `mapstructure:"input_device"`
	SampleRate      int    `mapstructure:"sample_rate"`
	Channels        int    `mapstructure:"channels"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit"`
	Watch          bool   `mapstructure:"watch"`
}

type SessionConfig struct {
	ChunkSize      int           `mapstructure:"chunk_size"`
	StreamingGrace time.Duration `mapstructure:"streaming_grace"`
}

// ChatConfig points at the remote assistant endpoint.
type ChatConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AssistantConfig struct {
	SearchMode      bool          `mapstructure:"search_mode"`
	Muted           bool          `mapstructure:"muted"`
	MaxHistory      int           `mapstructure:"max_history"`
	WakePhrases     []string      `mapstructure:"wake_phrases"`
	WakeListenDelay time.Duration `mapstructure:"wake_listen_delay"`
}

type TimersConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type LauncherConfig struct {
	Platform string `mapstructure:"platform"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".buddy"), nil
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	dir, err := Dir()
	if err != nil {
		dir = ".buddy"
	}
	return Config{
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
			Keywords:    []string{"buddy:2"},
			Endpointing: 300 * time.Millisecond,
			KeepAlive:   5 * time.Second,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Rules: RulesConfig{
			Path:           filepath.Join(dir, "rules.yaml"),
			IterationLimit: 30,
			Watch:          true,
		},
		Session: SessionConfig{
			ChunkSize:      4096,
			StreamingGrace: time.Second,
		},
		Chat: ChatConfig{
			Timeout: 60 * time.Second,
		},
		Assistant: AssistantConfig{
			MaxHistory:      10,
			WakePhrases:     []string{"yo buddy wake up", "yo buddy", "hey buddy"},
			WakeListenDelay: 1500 * time.Millisecond,
		},
		Timers: TimersConfig{
			TickInterval: time.Second,
		},
		Launcher: LauncherConfig{
			Platform: "desktop",
		},
		Log: LogConfig{
			Level:   "info",
			Dir:     filepath.Join(dir, "logs"),
			Console: false,
		},
	}
}

// Load resolves configuration from ~/.buddy/config.yaml, BUDDY_* environment
// variables and defaults, in increasing order of precedence.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. The file must exist when
// path is not empty.
func LoadFile(path string) (Config, error) {
	defaults := DefaultConfig()
	v := viper.New()
	setDefaults(v, defaults)

	v.SetConfigType("yaml")
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("BUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	applyLegacyEnv(&cfg)
	normalize(&cfg, defaults)
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("deepgram.api_key", d.Deepgram.APIKey)
	v.SetDefault("deepgram.api_base_url", d.Deepgram.APIBaseURL)
	v.SetDefault("deepgram.model", d.Deepgram.Model)
	v.SetDefault("deepgram.language", d.Deepgram.Language)
	v.SetDefault("deepgram.smart_format", d.Deepgram.SmartFormat)
	v.SetDefault("deepgram.keywords", d.Deepgram.Keywords)
	v.SetDefault("deepgram.endpointing", d.Deepgram.Endpointing)
	v.SetDefault("deepgram.keep_alive", d.Deepgram.KeepAlive)

	v.SetDefault("audio.recorder_command", d.Audio.RecorderCommand)
	v.SetDefault("audio.input_format", d.Audio.InputFormat)
	v.SetDefault("audio.input_device", d.Audio.InputDevice)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)

	v.SetDefault("rules.path", d.Rules.Path)
	v.SetDefault("rules.iteration_limit", d.Rules.IterationLimit)
	v.SetDefault("rules.watch", d.Rules.Watch)

	v.SetDefault("session.chunk_size", d.Session.ChunkSize)
	v.SetDefault("session.streaming_grace", d.Session.StreamingGrace)

	v.SetDefault("chat.url", d.Chat.URL)
	v.SetDefault("chat.api_key", d.Chat.APIKey)
	v.SetDefault("chat.timeout", d.Chat.Timeout)

	v.SetDefault("assistant.search_mode", d.Assistant.SearchMode)
	v.SetDefault("assistant.muted", d.Assistant.Muted)
	v.SetDefault("assistant.max_history", d.Assistant.MaxHistory)
	v.SetDefault("assistant.wake_phrases", d.Assistant.WakePhrases)
	v.SetDefault("assistant.wake_listen_delay", d.Assistant.WakeListenDelay)

	v.SetDefault("timers.tick_interval", d.Timers.TickInterval)
	v.SetDefault("launcher.platform", d.Launcher.Platform)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.console", d.Log.Console)

	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// applyLegacyEnv honours the provider-native variable names when the
// BUDDY_* ones are unset.
func applyLegacyEnv(cfg *Config) {
	if cfg.Deepgram.APIKey == "" {
		cfg.Deepgram.APIKey = strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))
	}
	if os.Getenv("BUDDY_AUDIO_INPUT_DEVICE") == "" {
		cfg.Audio.InputDevice = firstNonEmpty(
			os.Getenv("DEEPGRAM_PULSE_SOURCE"),
			os.Getenv("WHISPER_PULSE_SOURCE"),
			cfg.Audio.InputDevice,
		)
	}
}

func normalize(cfg *Config, defaults Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = defaults.Audio.Channels
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = defaults.Rules.IterationLimit
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = defaults.Session.StreamingGrace
	}
	if cfg.Chat.Timeout <= 0 {
		cfg.Chat.Timeout = defaults.Chat.Timeout
	}
	if cfg.Assistant.MaxHistory <= 0 {
		cfg.Assistant.MaxHistory = defaults.Assistant.MaxHistory
	}
	if cfg.Deepgram.KeepAlive < 0 {
		cfg.Deepgram.KeepAlive = 0
	}
	if cfg.Timers.TickInterval <= 0 {
		cfg.Timers.TickInterval = defaults.Timers.TickInterval
	}
	cfg.Rules.Path = expandHome(strings.TrimSpace(cfg.Rules.Path))
	cfg.Log.Dir = expandHome(strings.TrimSpace(cfg.Log.Dir))
	cfg.Chat.URL = strings.TrimSpace(cfg.Chat.URL)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
