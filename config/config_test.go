package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDiscoverPathFrom_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", "server:\n  port: 9000\n")

	got, found, err := DiscoverPathFrom(path, dir, dir)
	if err != nil {
		t.Fatalf("DiscoverPathFrom: %v", err)
	}
	if !found || got != path {
		t.Fatalf("got (%q, %v), want (%q, true)", got, found, path)
	}
}

func TestDiscoverPathFrom_ExplicitPathMissingIsError(t *testing.T) {
	dir := t.TempDir()

	_, _, err := DiscoverPathFrom(filepath.Join(dir, "nope.yaml"), dir, dir)
	if err == nil {
		t.Fatal("expected error for missing explicit path")
	}
}

func TestDiscoverPathFrom_ProjectBeforeHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	if err := os.MkdirAll(filepath.Join(home, ".marquee"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	homePath := writeFile(t, filepath.Join(home, ".marquee"), "config.yaml", "")

	// Only home config exists.
	got, found, err := DiscoverPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverPathFrom: %v", err)
	}
	if !found || got != homePath {
		t.Fatalf("got (%q, %v), want home config", got, found)
	}

	// Project config takes precedence once present.
	projectPath := writeFile(t, cwd, "marquee.yaml", "")
	got, found, err = DiscoverPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverPathFrom: %v", err)
	}
	if !found || got != projectPath {
		t.Fatalf("got (%q, %v), want project config", got, found)
	}
}

func TestDiscoverPathFrom_NothingFound(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	_, found, err := DiscoverPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverPathFrom: %v", err)
	}
	if found {
		t.Fatal("found a config where none exists")
	}
}

func TestLoadFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "marquee.yaml", `
server:
  port: 9000
  cors_origin: "https://example.com"
catalog:
  api_key: "abc123"
  refresh_cron: "*/10 * * * *"
storage:
  sqlite_path: "/tmp/marquee.db"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "https://example.com" {
		t.Errorf("cors origin = %q", cfg.Server.CORSOrigin)
	}
	// Defaults survive for unset fields.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	if cfg.Catalog.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want default", cfg.Catalog.Timeout)
	}
	if cfg.Catalog.APIKey != "abc123" {
		t.Errorf("api key = %q", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.RefreshCron != "*/10 * * * *" {
		t.Errorf("refresh cron = %q", cfg.Catalog.RefreshCron)
	}
	if cfg.Storage.SQLitePath != "/tmp/marquee.db" {
		t.Errorf("sqlite path = %q", cfg.Storage.SQLitePath)
	}
}

func TestLoadFile_ExpandsEnvValues(t *testing.T) {
	t.Setenv("MARQUEE_TEST_KEY", "secret-from-env")

	dir := t.TempDir()
	path := writeFile(t, dir, "marquee.yaml", `
catalog:
  api_key: "${MARQUEE_TEST_KEY}"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Catalog.APIKey != "secret-from-env" {
		t.Errorf("api key = %q, want env-expanded value", cfg.Catalog.APIKey)
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "marquee.yaml", "server: [not a map\n")

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.Server.ListenAddr(); got != "127.0.0.1:8560" {
		t.Fatalf("ListenAddr = %q", got)
	}
}
