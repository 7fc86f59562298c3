package models

import "time"

// Config represents the main configuration
type Config struct {
	HTTP   HTTPConfig   `mapstructure:"http"`
	Output OutputConfig `mapstructure:"output"`
	Engine EngineConfig `mapstructure:"engine"`
	Server ServerConfig `mapstructure:"server"`
	Lists  []FilterList `mapstructure:"lists"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	Concurrency int           `mapstructure:"concurrency"`
}

// OutputConfig contains compile output settings
type OutputConfig struct {
	Path       string `mapstructure:"path" toml:"path"`
	TopDomains string `mapstructure:"top_domains" toml:"top_domains,omitempty"`
	TopCount   int    `mapstructure:"top_count" toml:"top_count"`
}

// EngineConfig tunes the enforcement engine
type EngineConfig struct {
	Version     string        `mapstructure:"version"`
	HeadTimeout time.Duration `mapstructure:"head_timeout"`
	LoadDelay   time.Duration `mapstructure:"load_delay"`
}

// ServerConfig contains settings for the filtering service
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" toml:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`
	Watch          bool     `mapstructure:"watch" toml:"watch"`
}

// FilterList represents a single filter list configuration
type FilterList struct {
	Name    string `mapstructure:"name" toml:"name"`
	URL     string `mapstructure:"url" toml:"url"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// EnabledLists returns only enabled filter lists
func (c *Config) EnabledLists() []FilterList {
	var enabled []FilterList
	for _, l := range c.Lists {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled
}
