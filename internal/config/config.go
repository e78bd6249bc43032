// Package config loads and validates the enumerated configuration options
// from spec.md §6: spectrogram, peak detection, hashing, store, and cache.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrConfig is the sentinel wrapped by every configuration validation error.
// Config errors abort startup per the error handling design (§7).
var ErrConfig = errors.New("config error")

// Spectrogram holds the §4.1 STFT parameters.
type Spectrogram struct {
	SampleRate int     `yaml:"sample_rate"`
	WindowSize int     `yaml:"window_size"`
	Overlap    float64 `yaml:"overlap_ratio"`
	AmpMin     float64 `yaml:"amp_min"`
}

// Peaks holds the §4.2 peak detector parameters.
type Peaks struct {
	ConnectivityMask    int  `yaml:"connectivity_mask"`
	NeighborhoodSize    int  `yaml:"peak_neighborhood_size"`
	Sort                bool `yaml:"peak_sort"`
}

// Hashing holds the §4.3 hash packer parameters.
type Hashing struct {
	FanValue     int `yaml:"fan_value"`
	MinTimeDelta int `yaml:"min_hash_time_delta"`
	MaxTimeDelta int `yaml:"max_hash_time_delta"`
}

// Store holds the §4.4/§6 relational store connection parameters.
type Store struct {
	Driver    string `yaml:"driver"` // "mysql" or "postgres"
	DSN       string `yaml:"dsn"`
	PoolSize  int    `yaml:"pool_size"`
	BatchSize int    `yaml:"batch_size"`
}

// Cache holds the §4.5/§6 cache connection parameters.
type Cache struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	KeyPrefix      string `yaml:"key_prefix"`
	ConnectTimeout int    `yaml:"connect_timeout_seconds"`
	OpTimeout      int    `yaml:"op_timeout_seconds"`
	TTLSeconds     int    `yaml:"ttl_seconds"`
	Disabled       bool   `yaml:"disabled"`
}

// Config is the top-level configuration document.
type Config struct {
	Spectrogram Spectrogram `yaml:"spectrogram"`
	Peaks       Peaks       `yaml:"peaks"`
	Hashing     Hashing     `yaml:"hashing"`
	Store       Store       `yaml:"store"`
	Cache       Cache       `yaml:"cache"`
}

// Default returns the reference defaults named throughout spec.md.
func Default() Config {
	return Config{
		Spectrogram: Spectrogram{
			SampleRate: 44100,
			WindowSize: 4096,
			Overlap:    0.5,
			AmpMin:     10,
		},
		Peaks: Peaks{
			ConnectivityMask: 2,
			NeighborhoodSize: 20,
			Sort:             true,
		},
		Hashing: Hashing{
			FanValue:     15,
			MinTimeDelta: 0,
			MaxTimeDelta: 200,
		},
		Store: Store{
			Driver:    "mysql",
			PoolSize:  5,
			BatchSize: 1000,
		},
		Cache: Cache{
			Host:           "127.0.0.1",
			Port:           "6379",
			KeyPrefix:      "fingerprints",
			ConnectTimeout: 2,
			OpTimeout:      2,
			TTLSeconds:     86400,
		},
	}
}

// Load reads a YAML document from path, merges it over Default(), and
// validates it. Any range violation is a ConfigError and aborts startup.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config file %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(ErrConfig, "parsing yaml: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every range invariant named in spec.md. Frequency-bin
// overflow (hashing f_i/f_j must fit 20 bits) is checked by the hashing
// package itself once the spectrogram's row count is known; this only
// checks the configuration values that are knowable in isolation.
func (c Config) Validate() error {
	if c.Hashing.FanValue < 2 {
		return errors.Wrapf(ErrConfig, "fan_value must be >= 2, got %d", c.Hashing.FanValue)
	}
	if c.Hashing.MinTimeDelta > c.Hashing.MaxTimeDelta {
		return errors.Wrapf(ErrConfig, "min_hash_time_delta (%d) must be <= max_hash_time_delta (%d)",
			c.Hashing.MinTimeDelta, c.Hashing.MaxTimeDelta)
	}
	if c.Peaks.ConnectivityMask != 1 && c.Peaks.ConnectivityMask != 2 {
		return errors.Wrapf(ErrConfig, "connectivity_mask must be 1 or 2, got %d", c.Peaks.ConnectivityMask)
	}
	if c.Peaks.NeighborhoodSize < 1 {
		return errors.Wrapf(ErrConfig, "peak_neighborhood_size must be >= 1, got %d", c.Peaks.NeighborhoodSize)
	}
	if c.Spectrogram.WindowSize <= 0 || c.Spectrogram.WindowSize&(c.Spectrogram.WindowSize-1) != 0 {
		return errors.Wrapf(ErrConfig, "window_size must be a positive power of two, got %d", c.Spectrogram.WindowSize)
	}
	if c.Spectrogram.Overlap < 0 || c.Spectrogram.Overlap >= 1 {
		return errors.Wrapf(ErrConfig, "overlap_ratio must be in [0,1), got %f", c.Spectrogram.Overlap)
	}
	if c.Store.PoolSize <= 0 {
		return errors.Wrapf(ErrConfig, "pool_size must be > 0, got %d", c.Store.PoolSize)
	}
	if c.Store.BatchSize <= 0 {
		return errors.Wrapf(ErrConfig, "batch_size must be > 0, got %d", c.Store.BatchSize)
	}
	return nil
}
