package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Extractor   ExtractorConfig   `toml:"extractor"`
	EventStream EventStreamConfig `toml:"eventstream"`
	Pack        PackConfig        `toml:"pack"`
}

// StorageConfig selects the graph store backend.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres", "inmemory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ExtractorConfig holds entity extractor settings.
type ExtractorConfig struct {
	Provider       string `toml:"provider,omitempty"`
	Model          string `toml:"model,omitempty"`
	Target         string `toml:"target,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	TimeoutSeconds uint   `toml:"timeout_seconds,omitempty"`
}

// EventStreamConfig holds post-ingest event publishing settings.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// PackConfig holds context-pack builder settings.
type PackConfig struct {
	MaxNodes uint `toml:"max_nodes,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_url": {
		get: func(c *Config) string { return c.Storage.PostgresURL },
		set: func(c *Config, v string) error { c.Storage.PostgresURL = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"extractor.provider": {
		get: func(c *Config) string { return c.Extractor.Provider },
		set: func(c *Config, v string) error { c.Extractor.Provider = v; return nil },
	},
	"extractor.model": {
		get: func(c *Config) string { return c.Extractor.Model },
		set: func(c *Config, v string) error { c.Extractor.Model = v; return nil },
	},
	"extractor.target": {
		get: func(c *Config) string { return c.Extractor.Target },
		set: func(c *Config, v string) error { c.Extractor.Target = v; return nil },
	},
	"extractor.api_key": {
		get: func(c *Config) string { return c.Extractor.APIKey },
		set: func(c *Config, v string) error { c.Extractor.APIKey = v; return nil },
	},
	"extractor.timeout_seconds": {
		get: func(c *Config) string {
			if c.Extractor.TimeoutSeconds == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Extractor.TimeoutSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for extractor.timeout_seconds: %w", err)
			}
			c.Extractor.TimeoutSeconds = uint(n)
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error { c.EventStream.Provider = v; return nil },
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
	"pack.max_nodes": {
		get: func(c *Config) string {
			if c.Pack.MaxNodes == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Pack.MaxNodes), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for pack.max_nodes: %w", err)
			}
			c.Pack.MaxNodes = uint(n)
			return nil
		},
	},
}
