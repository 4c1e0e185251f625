package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port    string `toml:"port" yaml:"port"`
	GinMode string `toml:"gin_mode" yaml:"gin_mode"`
	// Mind-map editing sessions unused for this long are dropped.
	SessionIdleMinutes int `toml:"session_idle_minutes" yaml:"session_idle_minutes"`
	MaxSessions        int `toml:"max_sessions" yaml:"max_sessions"`
}

type LLMConfig struct {
	Provider    string  `toml:"provider" yaml:"provider"`
	Model       string  `toml:"model" yaml:"model"`
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	BaseURL     string  `toml:"base_url" yaml:"base_url"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

type StorageConfig struct {
	DatabasePath  string `toml:"database_path" yaml:"database_path"`
	ManuscriptDir string `toml:"manuscript_dir" yaml:"manuscript_dir"`
	// MindMapBackend is "sqlite" or "memgraph".
	MindMapBackend string `toml:"mind_map_backend" yaml:"mind_map_backend"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri" yaml:"uri"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
}

// Prompts are text/template sources, one per stage.
type Prompts struct {
	World      string `toml:"world" yaml:"world"`
	Characters string `toml:"characters" yaml:"characters"`
	Outline    string `toml:"outline" yaml:"outline"`
	Chapter    string `toml:"chapter" yaml:"chapter"`
	Scene      string `toml:"scene" yaml:"scene"`
	MindMap    string `toml:"mind_map" yaml:"mind_map"`
}

type LoggingConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
}

type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	LLM      LLMConfig      `toml:"llm" yaml:"llm"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Memgraph MemgraphConfig `toml:"memgraph" yaml:"memgraph"`
	Prompts  Prompts        `toml:"prompts" yaml:"prompts"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// Default returns a configuration that runs against a local Ollama and a
// SQLite file in the working directory.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			GinMode:            "release",
			SessionIdleMinutes: 120,
			MaxSessions:        1000,
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			Model:       "llama3.1:latest",
			BaseURL:     "http://localhost:11434",
			MaxTokens:   4096,
			Temperature: 0.8,
		},
		Storage: StorageConfig{
			DatabasePath:   "data/inkwell.db",
			ManuscriptDir:  "data/manuscripts",
			MindMapBackend: "sqlite",
		},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		Prompts:  DefaultPrompts(),
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads a TOML or YAML file (by extension) over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables that are set.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.Server.Port, "PORT")
	set(&c.Server.GinMode, "GIN_MODE")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Storage.DatabasePath, "DATABASE_PATH")
	set(&c.Storage.ManuscriptDir, "MANUSCRIPT_DIR")
	set(&c.Storage.MindMapBackend, "MINDMAP_BACKEND")
	set(&c.Memgraph.URI, "MEMGRAPH_URI")
	set(&c.Memgraph.User, "MEMGRAPH_USER")
	set(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	set(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxTokens = n
		}
	}
}

func (c *Config) Validate() error {
	switch c.Storage.MindMapBackend {
	case "sqlite", "memgraph":
	default:
		return fmt.Errorf("unknown mind map backend %q", c.Storage.MindMapBackend)
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.Server.SessionIdleMinutes < 0 || c.Server.MaxSessions < 0 {
		return fmt.Errorf("server session limits must not be negative")
	}
	return nil
}
