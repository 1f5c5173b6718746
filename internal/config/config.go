package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the knowledge base store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LLMConfig configures the OpenAI-compatible embedding and generation clients.
type LLMConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	EmbedModel  string `yaml:"embed_model"`
	ChatModel   string `yaml:"chat_model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures how parsed entries are grouped into passages.
type ChunkerConfig struct {
	SizeBudget int `yaml:"size_budget"`
}

// ChatConfig configures retrieval and answer synthesis.
type ChatConfig struct {
	TopK int `yaml:"top_k"`
}

// DigestConfig configures source file discovery and ingestion.
type DigestConfig struct {
	Patterns []string `yaml:"patterns"`
	Workers  int      `yaml:"workers"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store   StoreConfig   `yaml:"store"`
	LLM     LLMConfig     `yaml:"llm"`
	Chunker ChunkerConfig `yaml:"chunker"`
	Chat    ChatConfig    `yaml:"chat"`
	Digest  DigestConfig  `yaml:"digest"`
	Server  ServerConfig  `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/youkb/config.yaml.
// If neither exists, it writes defaults to ~/.config/youkb/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "youkb", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Store: StoreConfig{Backend: "sqlite", Path: ".youkb"},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			EmbedModel:  "text-embedding-3-small",
			ChatModel:   "gpt-4o-mini",
			TimeoutSecs: 60,
		},
		Chunker: ChunkerConfig{SizeBudget: 1000},
		Chat:    ChatConfig{TopK: 5},
		Digest:  DigestConfig{Patterns: []string{"*.vtt", "*.txt", "*.md"}, Workers: 4},
		Server:  ServerConfig{Addr: ":8000", AllowedOrigins: []string{"*"}},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".youkb"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "text-embedding-3-small"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.Chunker.SizeBudget == 0 {
		cfg.Chunker.SizeBudget = 1000
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 5
	}
	if len(cfg.Digest.Patterns) == 0 {
		cfg.Digest.Patterns = []string{"*.vtt", "*.txt", "*.md"}
	}
	if cfg.Digest.Workers == 0 {
		cfg.Digest.Workers = 4
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
}
