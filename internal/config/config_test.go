package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvAPIToken, "")
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.PageLimit != def.PageLimit {
		t.Fatalf("PageLimit = %d, want %d", cfg.PageLimit, def.PageLimit)
	}
	if cfg.FilterDebounce() != 500*time.Millisecond {
		t.Fatalf("FilterDebounce() = %v, want 500ms", cfg.FilterDebounce())
	}
	if cfg.APIBaseURL != def.APIBaseURL {
		t.Fatalf("APIBaseURL = %q, want %q", cfg.APIBaseURL, def.APIBaseURL)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	body := `{"api_base_url": "https://api.example.test", "page_limit": 50, "filter_debounce_ms": 250}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.test" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.PageLimit != 50 {
		t.Errorf("PageLimit = %d, want 50", cfg.PageLimit)
	}
	if cfg.FilterDebounce() != 250*time.Millisecond {
		t.Errorf("FilterDebounce() = %v, want 250ms", cfg.FilterDebounce())
	}
	if cfg.RetryMax != DefaultConfig().RetryMax {
		t.Errorf("RetryMax = %d, want default %d", cfg.RetryMax, DefaultConfig().RetryMax)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"api_base_url": "https://file.test", "api_token": "file-token"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(EnvAPIURL, "https://env.test")
	t.Setenv(EnvAPIToken, "env-token")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "https://env.test" {
		t.Errorf("APIBaseURL = %q, want env value", cfg.APIBaseURL)
	}
	if cfg.APIToken != "env-token" {
		t.Errorf("APIToken = %q, want env value", cfg.APIToken)
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["chat_send", "bookmark_add"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "chat_send" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "chat_send")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	clearEnv(t)
	globalDir := t.TempDir()
	repoRoot := t.TempDir()

	globalConfig := `{"page_limit": 40, "disabled_tools": ["chat_send"]}`
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(globalConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	jurisDir := filepath.Join(repoRoot, ".juris")
	if err := os.MkdirAll(jurisDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	repoConfig := `{"page_limit": 10, "disabled_tools": ["bookmark_add"]}`
	if err := os.WriteFile(filepath.Join(jurisDir, "config.json"), []byte(repoConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	nested := filepath.Join(repoRoot, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(globalDir, nested)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.PageLimit != 10 {
		t.Errorf("PageLimit = %d, want 10 (repo override)", cfg.PageLimit)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}

	if cfg.PageLimit != 20 {
		t.Errorf("PageLimit = %d, want 20", cfg.PageLimit)
	}
	if len(cfg.DisabledTools) != 0 {
		t.Errorf("DisabledTools = %v, want empty", cfg.DisabledTools)
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{PageLimit: 20, DBMaxOpenConns: 5, RequestsPerSecond: 5}
	overlay := &Config{PageLimit: 50}

	result := Merge(base, overlay)

	if result.PageLimit != 50 {
		t.Errorf("PageLimit = %d, want 50 (overlay)", result.PageLimit)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
	if result.RequestsPerSecond != 5 {
		t.Errorf("RequestsPerSecond = %v, want 5", result.RequestsPerSecond)
	}
}

func TestMerge_VoiceCommandReplaced(t *testing.T) {
	base := &Config{VoiceCommand: []string{"arecord", "-q"}}
	overlay := &Config{VoiceCommand: []string{"rec", "-t", "wav", "-"}}

	result := Merge(base, overlay)

	if len(result.VoiceCommand) != 4 || result.VoiceCommand[0] != "rec" {
		t.Errorf("VoiceCommand = %v, want overlay argv", result.VoiceCommand)
	}
}

func TestMerge_ArrayDedup(t *testing.T) {
	base := &Config{DisabledTools: []string{"chat_send", " note_store "}}
	overlay := &Config{DisabledTools: []string{"note_store", "", "bookmark_add"}}

	result := Merge(base, overlay)

	want := []string{"chat_send", "note_store", "bookmark_add"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		// A stray .juris higher in the tree would be found; only assert the shape.
		if filepath.Base(got) != "config.json" {
			t.Errorf("FindRepoConfig() = %q", got)
		}
	}
}
