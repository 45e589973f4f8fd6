// Package config loads client settings from a TOML file and converts
// them into transport options.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/flux-johnm/net-ssh/transport"
)

// Host key policy names accepted in a config file.
const (
	PolicyNone    = "none"
	PolicyLenient = "lenient"
	PolicyStrict  = "strict"
)

// Config is the on-disk client configuration.
type Config struct {
	Port           int    `toml:"port"`
	ConnectTimeout string `toml:"connect_timeout"`
	ClientVersion  string `toml:"client_version"`

	HostKeyPolicy  string `toml:"host_key_policy"`
	KnownHostsPath string `toml:"known_hosts_path"`

	RekeyBytesLimit   uint64 `toml:"rekey_bytes_limit"`
	RekeyPacketsLimit uint64 `toml:"rekey_packets_limit"`

	KexAlgorithms []string `toml:"kex_algorithms"`
	Ciphers       []string `toml:"ciphers"`
	MACs          []string `toml:"macs"`
	Compression   []string `toml:"compression"`
}

// Load reads and validates a configuration file, filling in defaults for
// absent fields.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = transport.DefaultPort
	}
	if c.HostKeyPolicy == "" {
		c.HostKeyPolicy = PolicyLenient
	}
}

// Validate rejects settings the transport cannot honor.
func Validate(cfg Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("config port %d out of range", cfg.Port)
	}
	switch strings.TrimSpace(cfg.HostKeyPolicy) {
	case PolicyNone, PolicyLenient, PolicyStrict:
	default:
		return fmt.Errorf("config host_key_policy %q not one of %s, %s, %s",
			cfg.HostKeyPolicy, PolicyNone, PolicyLenient, PolicyStrict)
	}
	if cfg.ConnectTimeout != "" {
		if _, err := time.ParseDuration(cfg.ConnectTimeout); err != nil {
			return fmt.Errorf("config connect_timeout invalid: %w", err)
		}
	}
	return nil
}

// Options converts the configuration into transport options.
func (c Config) Options() (*transport.Options, error) {
	opts := &transport.Options{
		Port:              c.Port,
		KnownHostsPath:    c.KnownHostsPath,
		RekeyBytesLimit:   c.RekeyBytesLimit,
		RekeyPacketsLimit: c.RekeyPacketsLimit,
		ClientVersion:     c.ClientVersion,
	}

	switch c.HostKeyPolicy {
	case PolicyNone:
		opts.HostKeyVerification = false
	case PolicyLenient:
		opts.HostKeyVerification = true
	case PolicyStrict:
		opts.HostKeyVerification = transport.VerifyVery
	default:
		return nil, fmt.Errorf("config host_key_policy %q unknown", c.HostKeyPolicy)
	}

	if c.ConnectTimeout != "" {
		timeout, err := time.ParseDuration(c.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("config connect_timeout invalid: %w", err)
		}
		opts.Timeout = timeout
	}

	if c.KexAlgorithms != nil || c.Ciphers != nil || c.MACs != nil || c.Compression != nil {
		prefs := transport.DefaultPreferences()
		if c.KexAlgorithms != nil {
			prefs.Kex = c.KexAlgorithms
		}
		if c.Ciphers != nil {
			prefs.Ciphers = c.Ciphers
		}
		if c.MACs != nil {
			prefs.MACs = c.MACs
		}
		if c.Compression != nil {
			prefs.Compression = c.Compression
		}
		opts.Preferences = prefs
	}
	return opts, nil
}
