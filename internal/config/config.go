package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override config keys.
// EDUBOT_LLM_MODEL maps to llm.model.
const EnvPrefix = "EDUBOT_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// IndexConfig locates the persisted vector index.
type IndexConfig struct {
	Path     string `yaml:"path" koanf:"path"`
	Compress bool   `yaml:"compress" koanf:"compress"`
	TopK     int    `yaml:"top_k" koanf:"top_k"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type         string   `yaml:"type" koanf:"type"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	Separators   []string `yaml:"separators" koanf:"separators"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" koanf:"batch_size"`
}

// HashingEmbedderConfig configures the offline embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension" koanf:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                `yaml:"type" koanf:"type"`
	OpenAI  OpenAIEmbedderConfig  `yaml:"openai" koanf:"openai"`
	Hashing HashingEmbedderConfig `yaml:"hashing" koanf:"hashing"`
}

// LLMConfig configures the chat model that writes answers.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string  `yaml:"model" koanf:"model"`
	Temperature float64 `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" koanf:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" koanf:"timeout_secs"`
}

// LoaderConfig controls URL fetching.
type LoaderConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" koanf:"user_agent"`
	MaxBytes    int64  `yaml:"max_bytes" koanf:"max_bytes"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" koanf:"type"`
	MaxSentences int    `yaml:"max_sentences" koanf:"max_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string `yaml:"host" koanf:"host"`
	Port           int    `yaml:"port" koanf:"port"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" koanf:"max_upload_bytes"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
	File   string `yaml:"file" koanf:"file"`
}

// SecretsConfig points at the optional secrets store.
type SecretsConfig struct {
	File string `yaml:"file" koanf:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Index      IndexConfig      `yaml:"index" koanf:"index"`
	Chunker    ChunkerConfig    `yaml:"chunker" koanf:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder" koanf:"embedder"`
	LLM        LLMConfig        `yaml:"llm" koanf:"llm"`
	Loader     LoaderConfig     `yaml:"loader" koanf:"loader"`
	Summarizer SummarizerConfig `yaml:"summarizer" koanf:"summarizer"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Logging    LoggingConfig    `yaml:"logging" koanf:"logging"`
	Secrets    SecretsConfig    `yaml:"secrets" koanf:"secrets"`
}

// Load reads a config from path and overlays EDUBOT_* environment variables.
// A missing file is not an error; the defaults are used instead.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	// Defaults are loaded as the bottom layer so that lists in the file
	// replace, rather than merge with, the built-in ones.
	defaults, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, err
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg AppConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps EDUBOT_SECTION_FIELD_NAME to section.field_name. Nested embedder
// sections use a double underscore: EDUBOT_EMBEDDER_OPENAI__MODEL.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + strings.ReplaceAll(field, "__", ".")
}

// LoadDefault tries ./config.yaml first, then ~/.config/edubot/config.yaml.
// If neither exists, it writes defaults to ~/.config/edubot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// UserDir is the per-user directory holding config and logs.
func UserDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "edubot"), nil
}

func DefaultUserConfigPath() (string, error) {
	dir, err := UserDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Index: IndexConfig{Path: "edu_index.gob", TopK: 5},
		Chunker: ChunkerConfig{
			Type:       "recursive",
			ChunkSize:  3000,
			Separators: []string{"\n\n", "\n", ".", ","},
		},
		Embedder: EmbedderConfig{
			Type: "openai",
			OpenAI: OpenAIEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-3-small",
				TimeoutSecs: 30,
				BatchSize:   32,
			},
			Hashing: HashingEmbedderConfig{Dimension: 512},
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-3.5-turbo",
			Temperature: 0.2,
			MaxTokens:   1500,
			TimeoutSecs: 60,
		},
		Loader: LoaderConfig{
			TimeoutSecs: 30,
			UserAgent:   "edubot/1.0",
			MaxBytes:    20 << 20,
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Server:     ServerConfig{Host: "127.0.0.1", Port: 8501, MaxUploadBytes: 50 << 20},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
		Secrets:    SecretsConfig{File: filepath.Join(".edubot", "secrets.toml")},
	}
}

// applyConfigDefaults fills zero values a partial file or env override left behind.
func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Index.Path == "" {
		cfg.Index.Path = def.Index.Path
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = def.Index.TopK
	}
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = def.Chunker.Type
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if len(cfg.Chunker.Separators) == 0 {
		cfg.Chunker.Separators = def.Chunker.Separators
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.OpenAI.BaseURL == "" {
		cfg.Embedder.OpenAI.BaseURL = def.Embedder.OpenAI.BaseURL
	}
	if cfg.Embedder.OpenAI.APIKeyEnv == "" {
		cfg.Embedder.OpenAI.APIKeyEnv = def.Embedder.OpenAI.APIKeyEnv
	}
	if cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = def.Embedder.OpenAI.Model
	}
	if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = def.Embedder.OpenAI.TimeoutSecs
	}
	if cfg.Embedder.OpenAI.BatchSize == 0 {
		cfg.Embedder.OpenAI.BatchSize = def.Embedder.OpenAI.BatchSize
	}
	if cfg.Embedder.Hashing.Dimension == 0 {
		cfg.Embedder.Hashing.Dimension = def.Embedder.Hashing.Dimension
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = def.LLM.BaseURL
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = def.LLM.APIKeyEnv
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = def.LLM.MaxTokens
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.Loader.TimeoutSecs == 0 {
		cfg.Loader.TimeoutSecs = def.Loader.TimeoutSecs
	}
	if cfg.Loader.UserAgent == "" {
		cfg.Loader.UserAgent = def.Loader.UserAgent
	}
	if cfg.Loader.MaxBytes == 0 {
		cfg.Loader.MaxBytes = def.Loader.MaxBytes
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = def.Server.MaxUploadBytes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// Validate checks values that defaults cannot repair.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		return fmt.Errorf("%w: unknown embedder type %q", ErrInvalidConfig, c.Embedder.Type)
	}
	if c.Chunker.Type != "recursive" {
		return fmt.Errorf("%w: unknown chunker type %q", ErrInvalidConfig, c.Chunker.Type)
	}
	if c.Chunker.ChunkSize < 0 || c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if c.Index.TopK < 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within [0, 2]", ErrInvalidConfig)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidConfig)
	}
	if c.Summarizer.Type != "frequency" && c.Summarizer.Type != "none" {
		return fmt.Errorf("%w: unknown summarizer type %q", ErrInvalidConfig, c.Summarizer.Type)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
