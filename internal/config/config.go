// Package config loads and validates YAML configuration for the server
// and client command-line entry points.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for either a raknet-server or
// raknet-client process; both binaries share one file shape and only
// read the sections relevant to their role.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Client  ClientConfig  `yaml:"client"`
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	Status     string `yaml:"status"` // status blob advertised to probes
}

// ClientConfig holds settings for the client binary.
type ClientConfig struct {
	ServerHost string        `yaml:"server_host"`
	ServerPort int           `yaml:"server_port"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// EngineConfig holds per-engine tunables shared by both roles. They are
// loaded, defaulted and validated, but the binaries do not pass them to
// engines, which use the fixed constants in packages engine and wire.
type EngineConfig struct {
	MTU          uint16        `yaml:"mtu"`
	TickInterval time.Duration `yaml:"tick_interval"`
	TaskTicks    int           `yaml:"task_ticks"`
	TaskRetries  int           `yaml:"task_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	OutputFile string `yaml:"output_file"`
	Pretty     bool   `yaml:"pretty"`
}

// LoadConfig loads configuration from a YAML file, filling in defaults and
// validating the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":19132"
	}
	if c.Server.Status == "" {
		c.Server.Status = "raknet-go server"
	}

	if c.Client.ServerHost == "" {
		c.Client.ServerHost = "127.0.0.1"
	}
	if c.Client.ServerPort == 0 {
		c.Client.ServerPort = 19132
	}
	if c.Client.DialTimeout == 0 {
		c.Client.DialTimeout = 5 * time.Second
	}

	if c.Engine.MTU == 0 {
		c.Engine.MTU = 1446
	}
	if c.Engine.TickInterval == 0 {
		c.Engine.TickInterval = 50 * time.Millisecond
	}
	if c.Engine.TaskTicks == 0 {
		c.Engine.TaskTicks = 20
	}
	if c.Engine.TaskRetries == 0 {
		c.Engine.TaskRetries = 5
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Client.ServerPort < 1 || c.Client.ServerPort > 65535 {
		return fmt.Errorf("invalid client server_port: %d", c.Client.ServerPort)
	}
	if c.Engine.MTU < 100 {
		return fmt.Errorf("mtu too small: %d", c.Engine.MTU)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// GenerateDefaultConfig returns a Config populated entirely with defaults,
// suitable for writing out as a starting point.
func GenerateDefaultConfig() *Config {
	var c Config
	c.setDefaults()
	return &c
}

// WriteConfigFile marshals cfg as YAML and writes it to path.
func WriteConfigFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
