package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvPort, "")
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./data/tds.db"
forum:
  mode: quick
  request_timeout: 5s
  search_terms: ["GA1", "GA2"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	wantDB := filepath.Join(dir, "data", "tds.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if cfg.Forum.RequestTimeout != 5*time.Second {
		t.Errorf("request_timeout = %s", cfg.Forum.RequestTimeout)
	}
	if len(cfg.Forum.SearchTerms) != 2 || cfg.Forum.SearchTerms[0] != "GA1" {
		t.Errorf("search_terms = %v", cfg.Forum.SearchTerms)
	}
	if cfg.Forum.MaxPages != 1 || cfg.Forum.RepliesPerTopic != 5 {
		t.Errorf("quick mode defaults: pages=%d replies=%d", cfg.Forum.MaxPages, cfg.Forum.RepliesPerTopic)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Generator.APIKey != "" {
		t.Error("api key should be empty when neither file nor env set it")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvAPIKey, "sk-test")
	t.Setenv(EnvPort, "7001")
	t.Setenv(EnvDatabasePath, "/var/lib/virtualta/kb.db")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("generator:\n  api_key: from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generator.APIKey != "sk-test" {
		t.Errorf("api key = %q, want env value", cfg.Generator.APIKey)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("port = %d, want 7001", cfg.Server.Port)
	}
	if cfg.Storage.DatabasePath != "/var/lib/virtualta/kb.db" {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
}

func TestLoad_invalidPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "eighty")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoadOrDefault_missingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path should be absolute, got %s", cfg.Storage.DatabasePath)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Search.DefaultLimit != 5 {
		t.Errorf("default limit: got %d", cfg.Search.DefaultLimit)
	}
	if cfg.Search.SnippetLength != 500 {
		t.Errorf("snippet length: got %d", cfg.Search.SnippetLength)
	}
	if cfg.Search.MaxKeywords != 5 || cfg.Search.MinKeywordLength != 3 {
		t.Errorf("keyword caps: %d/%d", cfg.Search.MaxKeywords, cfg.Search.MinKeywordLength)
	}
	if cfg.Forum.Mode != ModeFull {
		t.Errorf("mode: got %s", cfg.Forum.Mode)
	}
	if len(cfg.Forum.SearchTerms) != 16 {
		t.Errorf("full mode search terms: got %d", len(cfg.Forum.SearchTerms))
	}
	if cfg.Forum.MaxPages != 5 || cfg.Forum.RepliesPerTopic != 10 {
		t.Errorf("full mode pages=%d replies=%d", cfg.Forum.MaxPages, cfg.Forum.RepliesPerTopic)
	}
	if cfg.Forum.TermDelay != 2*time.Second || cfg.Forum.RequestInterval != time.Second {
		t.Errorf("delays: term=%s request=%s", cfg.Forum.TermDelay, cfg.Forum.RequestInterval)
	}
	if cfg.Generator.Model != "gpt-3.5-turbo" || cfg.Generator.MaxTokens != 300 {
		t.Errorf("generator defaults: %+v", cfg.Generator)
	}
	if cfg.Generator.SystemPrompt != DefaultSystemPrompt {
		t.Error("system prompt should default")
	}
	if len(cfg.Course.Extensions) == 0 || cfg.Course.Extensions[0] != ".md" {
		t.Errorf("course extensions: got %v", cfg.Course.Extensions)
	}
}

func TestApplyDefaults_searchTermsNotShared(t *testing.T) {
	a, b := &Config{}, &Config{}
	ApplyDefaults(a)
	ApplyDefaults(b)
	a.Forum.SearchTerms[0] = "changed"
	if b.Forum.SearchTerms[0] != "TDS" || DefaultSearchTerms[0] != "TDS" {
		t.Error("default search terms must be copied per config")
	}
}

func TestCourseConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &CourseConfig{}
		if got := c.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &CourseConfig{Recursive: &f}
		if got := c.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestLoadOrDefault_forumModeOverride(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), WithForumMode(ModeQuick))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Forum.Mode != ModeQuick {
		t.Fatalf("mode = %s", cfg.Forum.Mode)
	}
	if cfg.Forum.MaxPages != 1 || cfg.Forum.RepliesPerTopic != 5 {
		t.Errorf("quick mode pages=%d replies=%d", cfg.Forum.MaxPages, cfg.Forum.RepliesPerTopic)
	}
	if len(cfg.Forum.SearchTerms) != 4 || cfg.Forum.TermDelay != time.Second {
		t.Errorf("quick mode terms=%d term_delay=%s", len(cfg.Forum.SearchTerms), cfg.Forum.TermDelay)
	}
}

func TestLoad_forumModeOverrideKeepsExplicitValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "forum:\n  mode: full\n  replies_per_topic: 7\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, WithForumMode(ModeQuick), WithForumMode(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Forum.Mode != ModeQuick || cfg.Forum.RepliesPerTopic != 7 || cfg.Forum.MaxPages != 1 {
		t.Errorf("forum = mode %s replies %d pages %d", cfg.Forum.Mode, cfg.Forum.RepliesPerTopic, cfg.Forum.MaxPages)
	}
}

func TestGeneratorConfig_TemperatureOrDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("generator:\n  temperature: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Generator.TemperatureOrDefault(); got != 0 {
		t.Errorf("explicit temperature 0 = %v", got)
	}

	unset := &GeneratorConfig{}
	if got := unset.TemperatureOrDefault(); got != DefaultTemperature {
		t.Errorf("unset temperature = %v, want %v", got, DefaultTemperature)
	}
}
