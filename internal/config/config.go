package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/clipcast/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Worker WorkerConfig `yaml:"worker"`
	Scrape ScrapeConfig `yaml:"scrape"`
	LLM    LLMConfig    `yaml:"llm"`
	TTS    TTSConfig    `yaml:"tts"`
}

// ServerConfig holds HTTP server and runtime settings.
type ServerConfig struct {
	Addr          string        `yaml:"address"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	StorageDir    string        `yaml:"storageDir"`
	APIKey        string        `yaml:"apiKey"`        // optional static API key header (X-API-Key)
	DatabasePath  string        `yaml:"databasePath"`  // optional, overrides default storageDir/clipcast.db
	PublicBaseURL string        `yaml:"publicBaseUrl"` // base for audio URLs handed to clients
	ShutdownGrace time.Duration `yaml:"shutdownGrace"` // time to wait for the worker before forced stop
	LogLevel      string        `yaml:"logLevel"`      // debug|info|warn|error
}

// WorkerConfig tunes the polling scheduler.
type WorkerConfig struct {
	PollInterval time.Duration `yaml:"pollInterval"` // delay between pending-clip scans
	PendingBatch int           `yaml:"pendingBatch"` // max clips fetched per scan
}

// ScrapeConfig tunes the URL content extractor.
type ScrapeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"userAgent"`
	MaxBodySize ByteSize      `yaml:"maxBodySize"`
}

// LLMConfig selects the script generation provider and its options.
type LLMConfig struct {
	Provider string          `yaml:"provider"` // e.g. "mock" or "aiproxy"
	Mock     MockSettings    `yaml:"mock"`
	AIProxy  AIProxySettings `yaml:"aiproxy"`
}

// MockSettings config for the mock providers.
type MockSettings struct {
	Delay time.Duration `yaml:"delay"`
}

// AIProxySettings config for the AI Proxy (OpenAI-compatible) script writer.
type AIProxySettings struct {
	BaseURL     string  `yaml:"baseUrl"` // e.g. http://localhost:8900
	APIKey      string  `yaml:"apiKey"`  // optional
	Model       string  `yaml:"model"`   // e.g. gpt-4o-mini
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// TTSConfig selects the speech synthesis provider and its options.
type TTSConfig struct {
	Provider   string             `yaml:"provider"` // e.g. "mock" or "elevenlabs"
	Mock       MockSettings       `yaml:"mock"`
	ElevenLabs ElevenLabsSettings `yaml:"elevenlabs"`
}

// ElevenLabsSettings config for the ElevenLabs TTS API.
type ElevenLabsSettings struct {
	BaseURL      string `yaml:"baseUrl"` // optional, default https://api.elevenlabs.io
	APIKey       string `yaml:"apiKey"`
	VoiceID      string `yaml:"voiceId"`
	ModelID      string `yaml:"modelId"`
	OutputFormat string `yaml:"outputFormat"`
}

// ByteSize represents a size in bytes that unmarshals from strings like "10Mi", "20MB", "512KiB", "1024".
type ByteSize uint64

// UnmarshalYAML implements yaml unmarshalling for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		str := strings.TrimSpace(value.Value)
		parsed, err := ParseByteSize(str)
		if err != nil {
			return err
		}
		*b = ByteSize(parsed)
		return nil
	}
	return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
}

var reNumeric = regexp.MustCompile(`^\d+$`)

// ParseByteSize parses a string like "10Mi", "20MB", "512KiB", "1024" into bytes.
// Supports Kubernetes-style quantities for binary units: Ki, Mi, Gi (case-insensitive).
// Also accepts KiB/MiB/GiB and decimal KB/MB/GB, and bare bytes.
func ParseByteSize(s string) (uint64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	// Numeric only
	if reNumeric.MatchString(s) {
		val, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size number: %w", err)
		}
		return val, nil
	}

	// Normalize to upper for suffix matching but keep numeric part as-is
	up := strings.ToUpper(s)

	type unit struct {
		suffix string
		value  uint64
	}
	units := []unit{
		// Kubernetes binary-style without 'B'
		{"KI", 1024},
		{"MI", 1024 * 1024},
		{"GI", 1024 * 1024 * 1024},
		// Binary with B
		{"KIB", 1024},
		{"MIB", 1024 * 1024},
		{"GIB", 1024 * 1024 * 1024},
		// Decimal
		{"KB", 1000},
		{"MB", 1000 * 1000},
		{"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(up, u.suffix) {
			num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			val, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size number in %q: %w", orig, err)
			}
			return uint64(val * float64(u.value)), nil
		}
	}
	return 0, fmt.Errorf("unknown size suffix in %q", orig)
}

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, it will attempt to read from env var CLIPCAST_CONFIG, then default to "config.yaml".
func Load(path string) (*Config, error) {
	if path == "" {
		if env := os.Getenv("CLIPCAST_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - reading sanitized config file path is expected
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Expand environment variables in file content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	// Ensure storage dir exists
	if cfg.Server.StorageDir != "" {
		if err := os.MkdirAll(cfg.Server.StorageDir, 0o750); err != nil {
			return nil, fmt.Errorf("ensure storageDir: %w", err)
		}
	}
	// Default DB path under storage dir if not set.
	if cfg.Server.DatabasePath == "" {
		cfg.Server.DatabasePath = filepath.Join(cfg.Server.StorageDir, "clipcast.db")
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.StorageDir == "" {
		cfg.Server.StorageDir = "data"
	}
	if cfg.Server.PublicBaseURL == "" {
		cfg.Server.PublicBaseURL = "http://localhost:8080"
	}
	cfg.Server.PublicBaseURL = strings.TrimRight(cfg.Server.PublicBaseURL, "/")
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 15 * time.Second
	}
	if strings.TrimSpace(cfg.Server.LogLevel) == "" {
		cfg.Server.LogLevel = "info"
	}

	// Worker defaults
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 10 * time.Second
	}
	if cfg.Worker.PendingBatch <= 0 {
		cfg.Worker.PendingBatch = common.DefaultPendingBatch
	}

	// Scrape defaults
	if cfg.Scrape.Timeout == 0 {
		cfg.Scrape.Timeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.Scrape.UserAgent) == "" {
		cfg.Scrape.UserAgent = "clipcast/1.0"
	}
	if cfg.Scrape.MaxBodySize == 0 {
		cfg.Scrape.MaxBodySize = ByteSize(5 * 1024 * 1024) // 5 MiB default
	}

	// LLM defaults
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "mock"
	}
	if strings.EqualFold(cfg.LLM.Provider, "aiproxy") {
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			cfg.LLM.AIProxy.BaseURL = "http://localhost:8900"
		}
		if strings.TrimSpace(cfg.LLM.AIProxy.Model) == "" {
			cfg.LLM.AIProxy.Model = "gpt-4o-mini"
		}
		if cfg.LLM.AIProxy.Temperature == 0 {
			cfg.LLM.AIProxy.Temperature = 0.7
		}
	}

	// TTS defaults
	if cfg.TTS.Provider == "" {
		cfg.TTS.Provider = "mock"
	}
	if strings.EqualFold(cfg.TTS.Provider, "elevenlabs") {
		if strings.TrimSpace(cfg.TTS.ElevenLabs.BaseURL) == "" {
			cfg.TTS.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
		}
		if strings.TrimSpace(cfg.TTS.ElevenLabs.VoiceID) == "" {
			cfg.TTS.ElevenLabs.VoiceID = "JBFqnCBsd6RMkjVDRZzb"
		}
		if strings.TrimSpace(cfg.TTS.ElevenLabs.ModelID) == "" {
			cfg.TTS.ElevenLabs.ModelID = "eleven_turbo_v2_5"
		}
		if strings.TrimSpace(cfg.TTS.ElevenLabs.OutputFormat) == "" {
			cfg.TTS.ElevenLabs.OutputFormat = "mp3_44100_128"
		}
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "mock":
	case "aiproxy":
		if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
			return errors.New("llm.aiproxy.baseUrl is required")
		}
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}

	switch strings.ToLower(cfg.TTS.Provider) {
	case "mock":
	case "elevenlabs":
		if strings.TrimSpace(cfg.TTS.ElevenLabs.APIKey) == "" {
			return errors.New("tts.elevenlabs.apiKey is required")
		}
	default:
		return fmt.Errorf("unsupported tts provider %q", cfg.TTS.Provider)
	}

	if cfg.Worker.PollInterval < 0 {
		return errors.New("worker.pollInterval must not be negative")
	}
	return nil
}
