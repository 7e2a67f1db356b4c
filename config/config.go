// Package config loads the Marquee configuration file. Discovery is
// first-match: an explicit path, then marquee.yaml in the working directory,
// then ~/.marquee/config.yaml. Values are environment-expanded; command-line
// flags override whatever the file provides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "marquee.yaml"
	homeConfigName    = "config.yaml"
)

// Config is the declarative startup configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port,omitempty"`
	CORSOrigin   string        `yaml:"cors_origin,omitempty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// StorageConfig holds durable storage settings. An empty path selects
// in-memory storage.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// CatalogConfig holds metadata provider settings.
type CatalogConfig struct {
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	RefreshCron string        `yaml:"refresh_cron,omitempty"`
}

// TracingConfig holds OTLP export settings. An empty endpoint disables
// export.
type TracingConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8560,
			CORSOrigin:   "*",
			MaxBodyBytes: 1 << 20,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // SSE streams need an unbounded write window
		},
		Catalog: CatalogConfig{
			Timeout:     10 * time.Second,
			RefreshCron: "0 * * * *",
		},
	}
}

// DiscoverPath resolves the config file location with first-match semantics.
func DiscoverPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverPathFrom is a testable variant of DiscoverPath.
func DiscoverPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".marquee", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// An explicit path that does not exist is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load discovers and parses the configuration, merged over Default. A
// missing file (without an explicit path) is not an error.
func Load(explicitPath string) (Config, error) {
	cfg := Default()

	path, found, err := DiscoverPath(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile parses one config file, merged over Default.
func LoadFile(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	cfg.expand()
	return cfg, nil
}

// expand applies environment expansion to string values.
func (c *Config) expand() {
	c.Server.Host = os.ExpandEnv(c.Server.Host)
	c.Server.CORSOrigin = os.ExpandEnv(c.Server.CORSOrigin)
	c.Storage.SQLitePath = os.ExpandEnv(c.Storage.SQLitePath)
	c.Catalog.BaseURL = os.ExpandEnv(c.Catalog.BaseURL)
	c.Catalog.APIKey = os.ExpandEnv(c.Catalog.APIKey)
	c.Catalog.RefreshCron = os.ExpandEnv(c.Catalog.RefreshCron)
	c.Tracing.OTLPEndpoint = os.ExpandEnv(c.Tracing.OTLPEndpoint)
}

// ListenAddr returns the host:port listen address.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
