// Package config loads cmdsite settings from an optional YAML file and the
// environment. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every cmdsite command.
type Config struct {
	// BasePath is the path the site is deployed under, e.g. "/monkebot".
	// Ignored by development builds.
	BasePath string `yaml:"base_path" env:"BASE_PATH"`
	// Title of the generated page.
	Title string `yaml:"title" env:"CMDSITE_TITLE"`
	// OutDir receives the static bundle.
	OutDir string `yaml:"out_dir" env:"CMDSITE_OUT"`
	// Source is a path or http(s) URL of the commands.json to publish.
	Source string `yaml:"source" env:"CMDSITE_SOURCE"`
	// Generator is a shell command writing commands.json to {{out}}. Used
	// when Source is empty.
	Generator string `yaml:"generator" env:"CMDSITE_GENERATOR"`
	// Prefix is prepended to prefixed command names when the list is
	// generated from the registry.
	Prefix string `yaml:"prefix" env:"CMDSITE_PREFIX"`
	// Registry is the sqlite database holding the command registry.
	Registry string `yaml:"registry" env:"CMDSITE_DB"`
	// Addr is the listen address of the preview server.
	Addr string `yaml:"addr" env:"CMDSITE_ADDR"`
	// Dev selects a development build: no base path, rebuild on change.
	Dev bool `yaml:"dev" env:"CMDSITE_DEV"`
}

// Load reads path (when it exists) and then applies the environment. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Title == "" {
		c.Title = "Commands"
	}
	if c.OutDir == "" {
		c.OutDir = "build"
	}
	if c.Prefix == "" {
		c.Prefix = `\`
	}
	if c.Registry == "" {
		c.Registry = "commands.db"
	}
	if c.Addr == "" {
		c.Addr = "localhost:8080"
	}
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SiteBase returns the base path the site is built for: empty in
// development, otherwise BasePath without a trailing slash.
func (c *Config) SiteBase() string {
	if c.Dev {
		return ""
	}
	base := strings.TrimRight(strings.TrimSpace(c.BasePath), "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}
