// Package config provides application-wide configuration, read once at startup.
// Values come from an optional YAML file (VAGRANTMCP_CONFIG) overridden by
// environment variables; every field has a safe default so the binary runs
// without any setup.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Transport modes for serving the tool catalog.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds runtime configuration for vagrantmcp.
type Config struct {
	ProjectsDir string // VAGRANT_PROJECTS_DIR — base directory for all Vagrant projects
	VagrantHome string // VAGRANT_HOME — exported to the child process when set
	Binary      string // VAGRANTMCP_BINARY — vagrant executable name or path
	TimeoutSec  int    // VAGRANTMCP_TIMEOUT — per-invocation timeout in seconds
	Transport   string // VAGRANTMCP_TRANSPORT — "stdio" or "http"
	HTTPAddr    string // VAGRANTMCP_HTTP_ADDR — listen address for the http transport
	AuditDB     string // VAGRANTMCP_AUDIT_DB — sqlite path for the invocation log, empty disables it
}

const (
	envKeyConfigFile  = "VAGRANTMCP_CONFIG"
	envKeyProjectsDir = "VAGRANT_PROJECTS_DIR"
	envKeyVagrantHome = "VAGRANT_HOME"
	envKeyBinary      = "VAGRANTMCP_BINARY"
	envKeyTimeout     = "VAGRANTMCP_TIMEOUT"
	envKeyTransport   = "VAGRANTMCP_TRANSPORT"
	envKeyHTTPAddr    = "VAGRANTMCP_HTTP_ADDR"
	envKeyAuditDB     = "VAGRANTMCP_AUDIT_DB"
)

// fileConfig mirrors Config for YAML decoding. Zero values mean "not set".
type fileConfig struct {
	ProjectsDir string `yaml:"projects_dir"`
	VagrantHome string `yaml:"vagrant_home"`
	Binary      string `yaml:"binary"`
	TimeoutSec  int    `yaml:"timeout_seconds"`
	Transport   string `yaml:"transport"`
	HTTPAddr    string `yaml:"http_addr"`
	AuditDB     string `yaml:"audit_db"`
}

// Load builds the configuration: defaults, then the optional YAML file named
// by VAGRANTMCP_CONFIG, then environment variables (highest precedence).
func Load() (Config, error) {
	cfg := Config{
		ProjectsDir: "/vagrant-projects",
		Binary:      "vagrant",
		TimeoutSec:  300,
		Transport:   TransportStdio,
		HTTPAddr:    "127.0.0.1:8700",
	}

	if path := os.Getenv(envKeyConfigFile); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return Config{}, fmt.Errorf("config: unknown transport %q (want %q or %q)",
			cfg.Transport, TransportStdio, TransportHTTP)
	}
	if cfg.TimeoutSec <= 0 {
		return Config{}, fmt.Errorf("config: timeout must be positive, got %d", cfg.TimeoutSec)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}

	setIfPresent(&cfg.ProjectsDir, fc.ProjectsDir)
	setIfPresent(&cfg.VagrantHome, fc.VagrantHome)
	setIfPresent(&cfg.Binary, fc.Binary)
	setIfPresent(&cfg.Transport, fc.Transport)
	setIfPresent(&cfg.HTTPAddr, fc.HTTPAddr)
	setIfPresent(&cfg.AuditDB, fc.AuditDB)
	if fc.TimeoutSec != 0 {
		cfg.TimeoutSec = fc.TimeoutSec
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.ProjectsDir = envOr(envKeyProjectsDir, cfg.ProjectsDir)
	cfg.VagrantHome = envOr(envKeyVagrantHome, cfg.VagrantHome)
	cfg.Binary = envOr(envKeyBinary, cfg.Binary)
	cfg.Transport = envOr(envKeyTransport, cfg.Transport)
	cfg.HTTPAddr = envOr(envKeyHTTPAddr, cfg.HTTPAddr)
	cfg.AuditDB = envOr(envKeyAuditDB, cfg.AuditDB)

	if v := os.Getenv(envKeyTimeout); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q is not an integer: %w", envKeyTimeout, v, err)
		}
		cfg.TimeoutSec = secs
	}
	return nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
