// No t.Parallel() — env vars are process-global and not thread-safe.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every config env var so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envKeyConfigFile, envKeyProjectsDir, envKeyVagrantHome, envKeyBinary,
		envKeyTimeout, envKeyTransport, envKeyHTTPAddr, envKeyAuditDB,
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ProjectsDir != "/vagrant-projects" {
		t.Errorf("expected ProjectsDir '/vagrant-projects', got %q", cfg.ProjectsDir)
	}
	if cfg.Binary != "vagrant" {
		t.Errorf("expected Binary 'vagrant', got %q", cfg.Binary)
	}
	if cfg.TimeoutSec != 300 {
		t.Errorf("expected TimeoutSec 300, got %d", cfg.TimeoutSec)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("expected Transport %q, got %q", TransportStdio, cfg.Transport)
	}
	if cfg.HTTPAddr != "127.0.0.1:8700" {
		t.Errorf("expected HTTPAddr '127.0.0.1:8700', got %q", cfg.HTTPAddr)
	}
	if cfg.AuditDB != "" {
		t.Errorf("expected audit disabled by default, got %q", cfg.AuditDB)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyProjectsDir, "/srv/vagrant")
	t.Setenv(envKeyBinary, "/usr/local/bin/vagrant")
	t.Setenv(envKeyTimeout, "60")
	t.Setenv(envKeyTransport, "http")
	t.Setenv(envKeyAuditDB, "/var/lib/vagrantmcp/audit.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ProjectsDir != "/srv/vagrant" {
		t.Errorf("expected ProjectsDir '/srv/vagrant', got %q", cfg.ProjectsDir)
	}
	if cfg.Binary != "/usr/local/bin/vagrant" {
		t.Errorf("expected custom Binary, got %q", cfg.Binary)
	}
	if cfg.TimeoutSec != 60 {
		t.Errorf("expected TimeoutSec 60, got %d", cfg.TimeoutSec)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("expected Transport 'http', got %q", cfg.Transport)
	}
	if cfg.AuditDB != "/var/lib/vagrantmcp/audit.db" {
		t.Errorf("expected AuditDB set, got %q", cfg.AuditDB)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "vagrantmcp.yaml")
	body := "projects_dir: /from-file\nbinary: vagrant-file\ntimeout_seconds: 45\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(envKeyConfigFile, path)
	t.Setenv(envKeyBinary, "vagrant-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ProjectsDir != "/from-file" {
		t.Errorf("expected file value for ProjectsDir, got %q", cfg.ProjectsDir)
	}
	if cfg.Binary != "vagrant-env" {
		t.Errorf("expected env to beat file for Binary, got %q", cfg.Binary)
	}
	if cfg.TimeoutSec != 45 {
		t.Errorf("expected file value 45 for TimeoutSec, got %d", cfg.TimeoutSec)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyConfigFile, filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidTransport(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyTransport, "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyTimeout, "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-integer timeout")
	}
}

func TestLoad_NonPositiveTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv(envKeyTimeout, "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}

func TestEnvOr_Present(t *testing.T) {
	t.Setenv("TEST_ENVOR_KEY", "custom-value")
	if got := envOr("TEST_ENVOR_KEY", "fallback"); got != "custom-value" {
		t.Errorf("expected 'custom-value', got %q", got)
	}
}

func TestEnvOr_Absent(t *testing.T) {
	t.Setenv("TEST_ENVOR_MISSING", "")
	if got := envOr("TEST_ENVOR_MISSING", "fallback"); got != "fallback" {
		t.Errorf("expected 'fallback', got %q", got)
	}
}
