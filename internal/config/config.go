// Package config gathers runtime settings from command-line flags, an
// optional TOML file and the environment (including a .env file).
//
// Precedence, highest first: explicit flags, the TOML file, flag
// defaults. Secrets only come from the environment; the process
// environment wins over .env.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hammamikhairi/filosofo/internal/gpt"
	"github.com/hammamikhairi/filosofo/internal/logger"
)

// Voice backends.
const (
	VoiceOff      = "off"
	VoiceWhisper  = "whisper"
	VoiceDeepgram = "deepgram"
)

// Environment variable names.
const (
	EnvAPIKey            = "API_KEY"
	EnvDeepgramKey       = "DEEPGRAM_API_KEY"
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// DefaultConfigFile is read when present and no -config flag is given.
const DefaultConfigFile = "filosofo.toml"

// ErrInvalid reports a setting that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the resolved runtime configuration.
type Config struct {
	Verbose    bool
	Quiet      bool
	LogFile    string
	ConfigFile string

	Model   string
	BaseURL string
	APIKey  string

	Voice        string
	WhisperBin   string
	WhisperModel string
	RecordSecs   int
	AudioSource  string
	DeepgramKey  string

	Speak       bool
	AzureKey    string
	AzureRegion string
	AzureVoice  string
	CacheDir    string
	DiskCache   bool
}

// fileConfig mirrors the TOML file. Pointers tell "unset" from zero.
type fileConfig struct {
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"`
	LogFile      string `toml:"log_file"`
	Voice        string `toml:"voice"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
	RecordSecs   int    `toml:"record_secs"`
	AudioSource  string `toml:"audio_source"`
	Speak        *bool  `toml:"speak"`
	AzureVoice   string `toml:"azure_voice"`
	CacheDir     string `toml:"cache_dir"`
	DiskCache    *bool  `toml:"disk_cache"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogFile:      ".filosofo/filosofo.log",
		ConfigFile:   DefaultConfigFile,
		Model:        gpt.DefaultModel,
		BaseURL:      gpt.DefaultBaseURL,
		Voice:        VoiceOff,
		WhisperBin:   "whisper-cli",
		WhisperModel: "bin/ggml-small.bin",
		RecordSecs:   4,
		AzureVoice:   "es-ES-ElviraNeural",
		CacheDir:     ".filosofo/tts-cache",
		DiskCache:    true,
	}
}

// Load parses args, merges the TOML file and reads secrets through env.
func Load(args []string, env Env) (Config, error) {
	cfg := Default()

	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := cfg.mergeFile(set); err != nil {
		return Config{}, err
	}

	cfg.APIKey = env.Get(EnvAPIKey)
	cfg.DeepgramKey = env.Get(EnvDeepgramKey)
	cfg.AzureKey = env.Get(EnvAzureSpeechKey)
	cfg.AzureRegion = env.Get(EnvAzureSpeechRegion)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Usage writes the flag reference to w.
func Usage(w io.Writer) {
	cfg := Default()
	fs := newFlagSet(&cfg)
	fs.SetOutput(w)
	fmt.Fprintln(w, "Usage: filosofo [flags]")
	fs.PrintDefaults()
}

func newFlagSet(cfg *Config) *flag.FlagSet {
	fs := flag.NewFlagSet("filosofo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose/debug logging")
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "disable all logging")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file to write logs to (use \"stderr\" to log to console)")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML file with persistent preferences")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "model name")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "OpenAI-compatible API base URL")
	fs.StringVar(&cfg.Voice, "voice", cfg.Voice, "voice input backend: off, whisper or deepgram")
	fs.StringVar(&cfg.WhisperBin, "whisper-bin", cfg.WhisperBin, "path to the whisper-cpp CLI binary")
	fs.StringVar(&cfg.WhisperModel, "whisper-model", cfg.WhisperModel, "path to a multilingual Whisper GGML model")
	fs.IntVar(&cfg.RecordSecs, "record-secs", cfg.RecordSecs, "seconds per whisper recording chunk")
	fs.StringVar(&cfg.AudioSource, "audio-source", cfg.AudioSource, "PulseAudio source for deepgram (empty = default)")
	fs.BoolVar(&cfg.Speak, "speak", cfg.Speak, "read replies aloud with Azure TTS")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory for the TTS audio cache")
	fs.BoolVar(&cfg.DiskCache, "disk-cache", cfg.DiskCache, "persist TTS audio to disk (reads from disk even when false)")
	return fs
}

// mergeFile applies the TOML file to every setting not given as a flag.
// A missing default file is fine; a missing explicit one is not.
func (c *Config) mergeFile(set map[string]bool) error {
	if c.ConfigFile == "" {
		return nil
	}
	if _, err := os.Stat(c.ConfigFile); err != nil {
		if !set["config"] && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: %w", err)
	}

	var fc fileConfig
	md, err := toml.DecodeFile(c.ConfigFile, &fc)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", c.ConfigFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config: %w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), c.ConfigFile)
	}

	str := func(flagName string, dst *string, v string) {
		if v != "" && !set[flagName] {
			*dst = v
		}
	}
	str("model", &c.Model, fc.Model)
	str("base-url", &c.BaseURL, fc.BaseURL)
	str("log-file", &c.LogFile, fc.LogFile)
	str("voice", &c.Voice, fc.Voice)
	str("whisper-bin", &c.WhisperBin, fc.WhisperBin)
	str("whisper-model", &c.WhisperModel, fc.WhisperModel)
	str("audio-source", &c.AudioSource, fc.AudioSource)
	str("cache-dir", &c.CacheDir, fc.CacheDir)
	if fc.AzureVoice != "" {
		c.AzureVoice = fc.AzureVoice
	}
	if fc.RecordSecs != 0 && !set["record-secs"] {
		c.RecordSecs = fc.RecordSecs
	}
	if fc.Speak != nil && !set["speak"] {
		c.Speak = *fc.Speak
	}
	if fc.DiskCache != nil && !set["disk-cache"] {
		c.DiskCache = *fc.DiskCache
	}
	return nil
}

// Validate rejects settings that cannot work. A missing API key is not
// an error here: the chat reports it when it initializes.
func (c Config) Validate() error {
	switch c.Voice {
	case VoiceOff, VoiceWhisper, VoiceDeepgram:
	default:
		return fmt.Errorf("config: %w: voice %q (want off, whisper or deepgram)", ErrInvalid, c.Voice)
	}
	if c.RecordSecs <= 0 {
		return fmt.Errorf("config: %w: record-secs must be positive, got %d", ErrInvalid, c.RecordSecs)
	}
	if c.Model == "" {
		return fmt.Errorf("config: %w: empty model", ErrInvalid)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config: %w: empty base-url", ErrInvalid)
	}
	return nil
}

// LogLevel maps -verbose and -quiet to a logger level. Quiet wins.
func (c Config) LogLevel() logger.Level {
	switch {
	case c.Quiet:
		return logger.LevelOff
	case c.Verbose:
		return logger.LevelVerbose
	default:
		return logger.LevelNormal
	}
}

// RecordChunk is the whisper clip length.
func (c Config) RecordChunk() time.Duration {
	return time.Duration(c.RecordSecs) * time.Second
}

// SpeechEnabled reports whether read-aloud was asked for and can work.
func (c Config) SpeechEnabled() bool {
	return c.Speak && c.AzureKey != "" && c.AzureRegion != ""
}

// Env looks up environment variables, falling back to values read from a
// .env file.
type Env struct {
	getenv func(string) string
	dotenv map[string]string
}

// NewEnv combines a process lookup with .env values.
func NewEnv(getenv func(string) string, dotenv map[string]string) Env {
	return Env{getenv: getenv, dotenv: dotenv}
}

// SystemEnv reads the process environment and, when present, the .env
// files given (default ".env").
func SystemEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	merged := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Env{}, fmt.Errorf("config: read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return NewEnv(os.Getenv, merged), nil
}

// Get returns the value of key, or "" when unset.
func (e Env) Get(key string) string {
	if e.getenv != nil {
		if v := e.getenv(key); v != "" {
			return v
		}
	}
	return e.dotenv[key]
}
