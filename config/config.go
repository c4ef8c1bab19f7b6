// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure for the relay server.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Server      *ServerConfig   `yaml:"server" json:"server"`
	Database    *DatabaseConfig `yaml:"database" json:"database"`
	Session     *SessionConfig  `yaml:"session" json:"session"`
	Argon2      *Argon2Config   `yaml:"argon2" json:"argon2"`
	Logging     *LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig  `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig   `yaml:"health" json:"health"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	BindAddr        string        `yaml:"bind_addr" json:"bind_addr"`
	Port            int           `yaml:"port" json:"port"`
	TLSCertFile     string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file" json:"tls_key_file"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
}

// SessionConfig configures the authenticated+encrypted session cookie.
type SessionConfig struct {
	HashKeyEnv    string        `yaml:"hash_key_env" json:"hash_key_env"`
	BlockKeyEnv   string        `yaml:"block_key_env" json:"block_key_env"`
	CookieName    string        `yaml:"cookie_name" json:"cookie_name"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	UserCacheSize int           `yaml:"user_cache_size" json:"user_cache_size"`
}

// Argon2Config tunes the password hashing parameters.
type Argon2Config struct {
	TimeCost    uint32 `yaml:"time_cost" json:"time_cost"`
	MemoryKiB   uint32 `yaml:"memory_kib" json:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism" json:"parallelism"`
	KeyLength   uint32 `yaml:"key_length" json:"key_length"`
	SaltLength  uint32 `yaml:"salt_length" json:"salt_length"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig represents health check configuration.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a YAML file.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults fills the zero values of a loaded config with sane defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8443
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database == nil {
		cfg.Database = &DatabaseConfig{}
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConns == 0 {
		// Matches the reference server's PgPoolOptions::max_connections(5).
		cfg.Database.MaxConns = 5
	}

	if cfg.Session == nil {
		cfg.Session = &SessionConfig{}
	}
	if cfg.Session.CookieName == "" {
		// spec.md §6: the session cookie is named "user".
		cfg.Session.CookieName = "user"
	}
	if cfg.Session.HashKeyEnv == "" {
		cfg.Session.HashKeyEnv = "DMRELAY_SESSION_HASH_KEY"
	}
	if cfg.Session.BlockKeyEnv == "" {
		cfg.Session.BlockKeyEnv = "DMRELAY_SESSION_BLOCK_KEY"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}
	if cfg.Session.UserCacheSize == 0 {
		cfg.Session.UserCacheSize = 1024
	}

	if cfg.Argon2 == nil {
		cfg.Argon2 = &Argon2Config{}
	}
	if cfg.Argon2.TimeCost == 0 {
		cfg.Argon2.TimeCost = 3
	}
	if cfg.Argon2.MemoryKiB == 0 {
		cfg.Argon2.MemoryKiB = 64 * 1024
	}
	if cfg.Argon2.Parallelism == 0 {
		cfg.Argon2.Parallelism = 2
	}
	if cfg.Argon2.KeyLength == 0 {
		cfg.Argon2.KeyLength = 32
	}
	if cfg.Argon2.SaltLength == 0 {
		cfg.Argon2.SaltLength = 16
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health == nil {
		cfg.Health = &HealthConfig{Enabled: true}
	}
	if cfg.Health.Port == 0 {
		cfg.Health.Port = 9090
	}
	if cfg.Health.Path == "" {
		cfg.Health.Path = "/health"
	}
}
