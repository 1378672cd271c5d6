// Package config provides configuration loading and structs for the Virtual TA.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values when set.
const (
	EnvAPIKey       = "OPENAI_API_KEY"
	EnvDatabasePath = "VIRTUALTA_DATABASE_PATH"
	EnvPort         = "PORT"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Forum     ForumConfig     `yaml:"forum"`
	Generator GeneratorConfig `yaml:"generator"`
	Course    CourseConfig    `yaml:"course"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SearchConfig holds keyword extraction and relevance search settings.
type SearchConfig struct {
	DefaultLimit     int `yaml:"default_limit"`
	SnippetLength    int `yaml:"snippet_length"`
	MaxKeywords      int `yaml:"max_keywords"`
	MinKeywordLength int `yaml:"min_keyword_length"`
}

// ForumConfig holds Discourse harvesting settings.
// Delays set to a negative duration disable waiting.
type ForumConfig struct {
	BaseURL          string        `yaml:"base_url"`
	UserAgent        string        `yaml:"user_agent"`
	Mode             string        `yaml:"mode"`
	SearchTerms      []string      `yaml:"search_terms"`
	MaxPages         int           `yaml:"max_pages"`
	RepliesPerTopic  int           `yaml:"replies_per_topic"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RequestInterval  time.Duration `yaml:"request_interval"`
	TermDelay        time.Duration `yaml:"term_delay"`
	Workers          int           `yaml:"workers"`
	CategoryID       int           `yaml:"category_id"`
	MaxCategoryPages int           `yaml:"max_category_pages"`
	StartDate        string        `yaml:"start_date"`
	EndDate          string        `yaml:"end_date"`
}

// GeneratorConfig holds generative backend settings. An empty APIKey means
// no backend is configured and answers use the rule-based fallback.
type GeneratorConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  *float32      `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// DefaultTemperature is the sampling temperature used when none is configured.
const DefaultTemperature float32 = 0.7

// TemperatureOrDefault returns the configured temperature; defaults to
// DefaultTemperature when unset. An explicit 0 is kept.
func (g *GeneratorConfig) TemperatureOrDefault() float32 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return DefaultTemperature
}

// CourseConfig holds course material loading settings.
type CourseConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Watch       bool     `yaml:"watch"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to walk directories recursively; defaults to true when unset.
func (c *CourseConfig) RecursiveOrDefault() bool {
	if c.Recursive != nil {
		return *c.Recursive
	}
	return true
}

// LoadOption adjusts the parsed config before defaults are applied.
type LoadOption func(*Config)

// WithForumMode overrides forum.mode. An empty mode keeps the file value.
func WithForumMode(mode string) LoadOption {
	return func(c *Config) {
		if mode != "" {
			c.Forum.Mode = mode
		}
	}
}

// Load reads and parses the config file at path, applies opts, defaults and
// environment overrides, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string, opts ...LoadOption) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := finish(&cfg, filepath.Dir(path), opts); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and otherwise returns the default
// configuration with environment overrides applied.
func LoadOrDefault(path string, opts ...LoadOption) (*Config, error) {
	cfg, err := Load(path, opts...)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	var def Config
	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		cwd = "."
	}
	if err := finish(&def, cwd, opts); err != nil {
		return nil, err
	}
	return &def, nil
}

func finish(cfg *Config, configDir string, opts []LoadOption) error {
	for _, opt := range opts {
		opt(cfg)
	}
	ApplyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return err
	}
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Course.Directories {
		cfg.Course.Directories[i] = expandPath(cfg.Course.Directories[i], configDir)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
