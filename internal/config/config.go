package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// DataDir is where the LevelDB keyspace lives.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// Network identifies the Stacks network messages are paid on
	// ("mainnet" or "testnet").
	Network string `mapstructure:"network" yaml:"network"`

	// RelayURL is the base URL of the settlement relay.
	RelayURL     string        `mapstructure:"relay_url" yaml:"relay_url"`
	RelayTimeout time.Duration `mapstructure:"relay_timeout" yaml:"relay_timeout"`

	// PriceSats is the flat per-message price, in sats of sBTC.
	PriceSats int64 `mapstructure:"price_sats" yaml:"price_sats"`

	MaxContentBytes int `mapstructure:"max_content_bytes" yaml:"max_content_bytes"`
	RateLimitPerMin int `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`

	// MaxQueryOffset caps pagination offset for the merged view; the
	// over-fetch strategy re-reads offset+limit rows per direction on
	// every page, so unbounded offsets would degrade badly.
	MaxQueryOffset int `mapstructure:"max_query_offset" yaml:"max_query_offset"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DataDir:           "data",
		Network:           "testnet",
		RelayURL:          "http://localhost:3999",
		RelayTimeout:      30 * time.Second,
		PriceSats:         1000,
		MaxContentBytes:   10_000,
		RateLimitPerMin:   60,
		MaxQueryOffset:    1000,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Network != "" {
		c.Network = other.Network
	}
	if other.RelayURL != "" {
		c.RelayURL = other.RelayURL
	}
	if other.RelayTimeout != 0 {
		c.RelayTimeout = other.RelayTimeout
	}
	if other.PriceSats != 0 {
		c.PriceSats = other.PriceSats
	}
	if other.MaxContentBytes != 0 {
		c.MaxContentBytes = other.MaxContentBytes
	}
	if other.RateLimitPerMin != 0 {
		c.RateLimitPerMin = other.RateLimitPerMin
	}
	if other.MaxQueryOffset != 0 {
		c.MaxQueryOffset = other.MaxQueryOffset
	}
}
