// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package config loads and validates the maquette.yml configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level maquette.yml configuration.
type Config struct {
	// Bus endpoint. When SimulationMode is set neither port nor URL is used.
	ComPort        string `yaml:"com_port"`
	BaudRate       int    `yaml:"baud_rate"`
	SimulationMode bool   `yaml:"simulation_mode"`
	WSURL          string `yaml:"ws_url"`
	WSUsername     string `yaml:"ws_username"`

	// Lighting defaults.
	DefaultFadeTimeMs int `yaml:"default_fade_time_ms"`
	DefaultIntensity  int `yaml:"default_intensity"`

	// Ambient animation.
	AmbientEnabled    bool   `yaml:"ambient_enabled"`
	AmbientSequenceID string `yaml:"ambient_sequence_id"`

	// Session behaviour.
	LoginFadeDelayMs int `yaml:"login_fade_delay_ms"`

	// Fades up are planned from level 0, and fades to dark from 255, unless
	// this enables the last-level cache.
	FadeFromLastLevel bool `yaml:"fade_from_last_level"`

	// Logs.
	LogRetentionDays int    `yaml:"log_retention_days"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
	FrameLogDir      string `yaml:"frame_log_dir"`

	// Optional backing services.
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	MQTT     *MQTTConfig     `yaml:"mqtt,omitempty"`

	// Named ambient sequences.
	Sequences []SequenceConfig `yaml:"sequences,omitempty"`

	// Optional inline inventory for installations run without a database.
	Inventory *InventoryConfig `yaml:"inventory,omitempty"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig holds the apartment-state store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig holds the optional state-change event broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
	Topic    string `yaml:"topic"`
}

// SequenceConfig describes one named ambient sequence.
type SequenceConfig struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // static, loop, wave, chase, breathe

	// static / loop
	Steps          []StepConfig `yaml:"steps,omitempty"`
	StepDurationMs int          `yaml:"step_duration_ms,omitempty"`

	// wave
	Direction    string `yaml:"direction,omitempty"` // up or down
	FadeMs       int    `yaml:"fade_ms,omitempty"`
	FloorDelayMs int    `yaml:"floor_delay_ms,omitempty"`
	HoldMs       int    `yaml:"hold_ms,omitempty"`
	PauseMs      int    `yaml:"pause_ms,omitempty"`
	Loop         bool   `yaml:"loop,omitempty"`

	// chase
	TickMs int `yaml:"tick_ms,omitempty"`
	Tail   int `yaml:"tail,omitempty"`

	// breathe
	MinLevel   int `yaml:"min_level,omitempty"`
	MaxLevel   int `yaml:"max_level,omitempty"`
	DurationMs int `yaml:"duration_ms,omitempty"`

	// wave / chase color
	R int `yaml:"r,omitempty"`
	G int `yaml:"g,omitempty"`
	B int `yaml:"b,omitempty"`
}

// StepConfig is one step of a static or loop sequence.
type StepConfig struct {
	Apartment  string `yaml:"apartment,omitempty"`
	Group      string `yaml:"group,omitempty"`
	Broadcast  bool   `yaml:"broadcast,omitempty"`
	State      string `yaml:"state,omitempty"`
	R          int    `yaml:"r,omitempty"`
	G          int    `yaml:"g,omitempty"`
	B          int    `yaml:"b,omitempty"`
	Intensity  int    `yaml:"intensity,omitempty"`
	DurationMs int    `yaml:"duration_ms,omitempty"`
}

// InventoryConfig carries an inline fixture inventory.
type InventoryConfig struct {
	Groups     []GroupConfig     `yaml:"groups,omitempty"`
	Apartments []ApartmentConfig `yaml:"apartments"`
}

// GroupConfig describes one floor group.
type GroupConfig struct {
	ID    string `yaml:"id"`
	Tower string `yaml:"tower"`
	Floor int    `yaml:"floor"`
}

// ApartmentConfig describes one apartment and its fixture addresses, ordered
// by light index.
type ApartmentConfig struct {
	ID       string   `yaml:"id"`
	Floor    int      `yaml:"floor"`
	Group    string   `yaml:"group"`
	Position int      `yaml:"position"`
	Lights   []uint16 `yaml:"lights"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		BaudRate:          38400,
		DefaultFadeTimeMs: 1000,
		DefaultIntensity:  255,
		LoginFadeDelayMs:  100,
		LogRetentionDays:  30,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load reads, defaults, env-overrides and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnv applies deployment overrides from the environment.
func (c *Config) loadEnv() {
	if v := os.Getenv("MAQUETTE_COM_PORT"); v != "" {
		c.ComPort = v
	}
	if v := os.Getenv("MAQUETTE_BAUD_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.BaudRate = n
		}
	}
	if v := os.Getenv("MAQUETTE_SIMULATION"); v != "" {
		c.SimulationMode = v == "1" || v == "true"
	}
	if v := os.Getenv("MAQUETTE_WS_URL"); v != "" {
		c.WSURL = v
	}
	if c.Database != nil {
		if v := os.Getenv("MAQUETTE_DB_HOST"); v != "" {
			c.Database.Host = v
		}
		if v := os.Getenv("MAQUETTE_DB_PASSWORD"); v != "" {
			c.Database.Password = v
		}
	}
	if c.Redis != nil {
		if v := os.Getenv("MAQUETTE_REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
		if v := os.Getenv("MAQUETTE_REDIS_PASSWORD"); v != "" {
			c.Redis.Password = v
		}
	}
	if c.MQTT != nil {
		if v := os.Getenv("MAQUETTE_MQTT_PASSWORD"); v != "" {
			c.MQTT.Password = v
		}
	}
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if !c.SimulationMode && c.ComPort == "" && c.WSURL == "" {
		return fmt.Errorf("one of com_port, ws_url or simulation_mode is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	if c.DefaultIntensity < 0 || c.DefaultIntensity > 255 {
		return fmt.Errorf("default_intensity must be 0..255, got %d", c.DefaultIntensity)
	}
	if c.DefaultFadeTimeMs < 0 {
		return fmt.Errorf("default_fade_time_ms must not be negative")
	}
	if c.LoginFadeDelayMs < 0 {
		return fmt.Errorf("login_fade_delay_ms must not be negative")
	}
	if c.LogRetentionDays < 1 {
		return fmt.Errorf("log_retention_days must be at least 1, got %d", c.LogRetentionDays)
	}
	if c.AmbientEnabled {
		if c.AmbientSequenceID == "" {
			return fmt.Errorf("ambient_enabled requires ambient_sequence_id")
		}
		if c.Sequence(c.AmbientSequenceID) == nil {
			return fmt.Errorf("ambient_sequence_id %q is not a defined sequence", c.AmbientSequenceID)
		}
	}
	seen := map[string]bool{}
	for i := range c.Sequences {
		s := &c.Sequences[i]
		if s.ID == "" {
			return fmt.Errorf("sequence %d: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate sequence id %q", s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case "static", "loop":
			if len(s.Steps) == 0 {
				return fmt.Errorf("sequence %q: %s needs at least one step", s.ID, s.Kind)
			}
		case "wave":
			if s.Direction != "up" && s.Direction != "down" {
				return fmt.Errorf("sequence %q: wave direction must be up or down", s.ID)
			}
		case "chase":
			if s.Tail < 1 {
				return fmt.Errorf("sequence %q: chase tail must be at least 1", s.ID)
			}
		case "breathe":
			if s.MinLevel < 0 || s.MaxLevel > 255 || s.MinLevel >= s.MaxLevel {
				return fmt.Errorf("sequence %q: breathe needs 0 <= min_level < max_level <= 255", s.ID)
			}
		default:
			return fmt.Errorf("sequence %q: unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}

// Sequence returns the sequence config with the given id, or nil.
func (c *Config) Sequence(id string) *SequenceConfig {
	for i := range c.Sequences {
		if c.Sequences[i].ID == id {
			return &c.Sequences[i]
		}
	}
	return nil
}
