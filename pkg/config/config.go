// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for perfhook.
type Config struct {
	ServiceName string        `yaml:"service_name" env:"PERFHOOK_SERVICE_NAME"`
	LogLevel    string        `yaml:"log_level" env:"PERFHOOK_LOG_LEVEL"`
	Hook        HookConfig    `yaml:"hook"`
	Monitor     MonitorConfig `yaml:"monitor"`
	Status      StatusConfig  `yaml:"status"`
}

// HookConfig controls hook engine discovery.
type HookConfig struct {
	// Engine names the preferred provider. Empty means scan every registered
	// provider and keep the last one that loads.
	Engine           string        `yaml:"engine" env:"PERFHOOK_HOOK_ENGINE"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	Debug            bool          `yaml:"debug"`
}

type MonitorConfig struct {
	CostTime CostTimeConfig `yaml:"cost_time"`
	Thread   MonitorToggle  `yaml:"thread"`
	Process  ProcessConfig  `yaml:"process"`
}

// CostTimeConfig configures slow call detection.
type CostTimeConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold time.Duration `yaml:"threshold"`
}

type MonitorToggle struct {
	Enabled bool `yaml:"enabled"`
}

// ProcessConfig configures periodic sampling of the host process.
type ProcessConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default 15s
}

// StatusConfig configures the status HTTP server.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" env:"PERFHOOK_STATUS_ADDR"` // e.g. ":8687"
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "auto",
		LogLevel:    "info",
		Hook: HookConfig{
			DiscoveryTimeout: 2 * time.Second,
		},
		Monitor: MonitorConfig{
			CostTime: CostTimeConfig{
				Enabled:   true,
				Threshold: 200 * time.Millisecond,
			},
			Thread: MonitorToggle{Enabled: true},
			Process: ProcessConfig{
				Enabled:  true,
				Interval: 15 * time.Second,
			},
		},
		Status: StatusConfig{
			Enabled: false,
			Addr:    ":8687",
		},
	}
}

// LoadDir loads YAML files from a directory and merges them into a single
// Config. Expected files:
//   - base.yaml    → service_name, log_level, hook, status
//   - monitor.yaml → monitor
//
// Missing files are silently ignored (defaults apply). A .env file in the
// directory is loaded into the process environment before overrides apply.
func LoadDir(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFileInto(filepath.Join(dir, "base.yaml"), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load base.yaml: %w", err)
	}
	if err := loadFileInto(filepath.Join(dir, "monitor.yaml"), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load monitor.yaml: %w", err)
	}

	if err := LoadEnvFile(filepath.Join(dir, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs into the environment. Variables already
// set in the environment win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return godotenv.Load(path)
}

// loadFileInto reads a YAML file and unmarshals it into an existing Config,
// overwriting only the fields present in the file.
func loadFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnvOverrides reads PERFHOOK_* environment variables and applies them
// to the config, overriding YAML values.
func (c *Config) ApplyEnvOverrides() {
	envOverrides := map[string]func(string){
		"PERFHOOK_SERVICE_NAME": func(v string) { c.ServiceName = v },
		"PERFHOOK_LOG_LEVEL":    func(v string) { c.LogLevel = v },
		"PERFHOOK_HOOK_ENGINE":  func(v string) { c.Hook.Engine = v },
		"PERFHOOK_STATUS_ADDR":  func(v string) { c.Status.Addr = v },
	}

	boolOverrides := map[string]*bool{
		"PERFHOOK_HOOK_DEBUG":        &c.Hook.Debug,
		"PERFHOOK_COST_TIME_ENABLED": &c.Monitor.CostTime.Enabled,
		"PERFHOOK_THREAD_ENABLED":    &c.Monitor.Thread.Enabled,
		"PERFHOOK_PROCESS_ENABLED":   &c.Monitor.Process.Enabled,
		"PERFHOOK_STATUS_ENABLED":    &c.Status.Enabled,
	}

	durationOverrides := map[string]*time.Duration{
		"PERFHOOK_HOOK_DISCOVERY_TIMEOUT": &c.Hook.DiscoveryTimeout,
		"PERFHOOK_COST_TIME_THRESHOLD":    &c.Monitor.CostTime.Threshold,
		"PERFHOOK_PROCESS_INTERVAL":       &c.Monitor.Process.Interval,
	}

	for envKey, setter := range envOverrides {
		if val := os.Getenv(envKey); val != "" {
			setter(val)
		}
	}

	for envKey, target := range boolOverrides {
		if val := os.Getenv(envKey); val != "" {
			*target = parseBool(val)
		}
	}

	for envKey, target := range durationOverrides {
		if val := os.Getenv(envKey); val != "" {
			if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
				*target = d
			}
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	if c.Hook.DiscoveryTimeout < 0 {
		return fmt.Errorf("hook.discovery_timeout must not be negative")
	}

	if c.Monitor.CostTime.Enabled && c.Monitor.CostTime.Threshold <= 0 {
		return fmt.Errorf("monitor.cost_time.threshold must be positive when cost_time is enabled")
	}

	if c.Monitor.Process.Enabled && c.Monitor.Process.Interval <= 0 {
		return fmt.Errorf("monitor.process.interval must be positive when process is enabled")
	}

	if c.Status.Enabled && c.Status.Addr == "" {
		return fmt.Errorf("status.addr is required when status is enabled")
	}

	return nil
}
