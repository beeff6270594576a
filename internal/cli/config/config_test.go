package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Log.Level)
	}

	if cfg.Log.Format != "console" {
		t.Errorf("expected default log format 'console', got %s", cfg.Log.Format)
	}

	if cfg.Identity.Strategy != "uuid" {
		t.Errorf("expected default identity strategy 'uuid', got %s", cfg.Identity.Strategy)
	}

	if cfg.Query.RecursiveDepth != 3 {
		t.Errorf("expected default recursive depth 3, got %d", cfg.Query.RecursiveDepth)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address ':8080', got %s", cfg.Server.Address)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `
fixture: fixtures/blog.yaml
log:
  level: debug
  format: json
identity:
  strategy: ulid
query:
  recursive_depth: 1
server:
  address: 127.0.0.1:9090
  metrics: false
`
	os.WriteFile("memdb.yaml", []byte(configContent), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Log.Level)
	}

	if cfg.Identity.Strategy != "ulid" {
		t.Errorf("expected identity strategy 'ulid', got %s", cfg.Identity.Strategy)
	}

	if cfg.Query.RecursiveDepth != 1 {
		t.Errorf("expected recursive depth 1, got %d", cfg.Query.RecursiveDepth)
	}

	if cfg.Server.Address != "127.0.0.1:9090" || cfg.Server.Metrics {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if filepath.Base(cfg.Fixture) != "blog.yaml" || !filepath.IsAbs(cfg.Fixture) {
		t.Errorf("expected fixture resolved against the config file, got %s", cfg.Fixture)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	t.Setenv("MEMDB_LOG_LEVEL", "warn")
	t.Setenv("MEMDB_QUERY_RECURSIVE_DEPTH", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("expected log level from environment, got %s", cfg.Log.Level)
	}

	if cfg.Query.RecursiveDepth != 5 {
		t.Errorf("expected recursive depth from environment, got %d", cfg.Query.RecursiveDepth)
	}
}

func TestLoadFromExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "custom.yaml")
	os.WriteFile(path, []byte("identity:\n  strategy: counter\n"), 0644)

	cfg, err := LoadFrom(New(), path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Identity.Strategy != "counter" {
		t.Errorf("expected counter strategy, got %s", cfg.Identity.Strategy)
	}

	if _, err := LoadFrom(New(), filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad format", "log:\n  format: xml\n"},
		{"bad strategy", "identity:\n  strategy: snowflake\n"},
		{"negative depth", "query:\n  recursive_depth: -1\n"},
		{"empty address", "server:\n  address: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "memdb.yaml")
			os.WriteFile(path, []byte(tt.content), 0644)

			if _, err := LoadFrom(New(), path); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestFindConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	os.WriteFile(filepath.Join(tmpDir, "memdb.yaml"), []byte(""), 0644)

	subDir := filepath.Join(tmpDir, "src", "deep", "nested")
	os.MkdirAll(subDir, 0755)
	os.Chdir(subDir)

	path, err := FindConfig()
	if err != nil {
		t.Fatalf("expected to find config, got error: %v", err)
	}

	// On macOS, /tmp is symlinked to /private/tmp, so resolve both paths
	resolved, _ := filepath.EvalSymlinks(filepath.Dir(path))
	resolvedTmpDir, _ := filepath.EvalSymlinks(tmpDir)

	if resolved != resolvedTmpDir {
		t.Errorf("expected config in %s, got %s", resolvedTmpDir, path)
	}
}

func TestFindConfigMissing(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if _, err := FindConfig(); err == nil {
		t.Error("expected error when no config exists, got nil")
	}
}
