package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	transportSocket = "uds"
	transportHTTP   = "http"

	defaultServer = "http://127.0.0.1:8080"
)

// cliConfig is where the client subcommands send their calls. It lives in
// ~/.nocometa/config.yaml unless NOCOMETA_CONFIG names another file.
type cliConfig struct {
	Transport string `yaml:"transport"`
	Server    string `yaml:"server"`
	Socket    string `yaml:"socket"`
}

func (c cliConfig) withDefaults() cliConfig {
	if c.Transport == "" {
		c.Transport = transportSocket
	}
	if c.Server == "" {
		c.Server = defaultServer
	}
	if c.Socket == "" {
		c.Socket = defaultSocket
	}
	return c
}

func (c cliConfig) validate() error {
	switch c.Transport {
	case transportSocket, transportHTTP:
		return nil
	}
	return fmt.Errorf("unknown transport %q, want %s or %s", c.Transport, transportSocket, transportHTTP)
}

func configPath() (string, error) {
	if p := os.Getenv("NOCOMETA_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".nocometa", "config.yaml"), nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	var cfg cliConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cliConfig{}, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cliConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg = cfg.withDefaults()
	return cfg, cfg.validate()
}

func saveConfig(cfg cliConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
