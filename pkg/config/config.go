// Package config loads attack-radar settings from flags, ATTACK_RADAR_*
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hervehildenbrand/attack-radar/pkg/anomaly"
	"github.com/hervehildenbrand/attack-radar/pkg/buffer"
	"github.com/hervehildenbrand/attack-radar/pkg/scheduler"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "ATTACK_RADAR"

// Config is the validated service configuration.
type Config struct {
	Listen         string
	BufferCapacity int
	SeedCount      int
	SpawnMin       time.Duration
	SpawnMax       time.Duration
	PollInterval   time.Duration
	PollTimeout    time.Duration
	ClassifierURL  string
	FeatureCount   int
	FeatureValue   float64
	CatalogFile    string
	RedisURL       string
	DatabaseURL    string
	AutoActivate   bool
	LogLevel       string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("buffer_capacity", buffer.DefaultCapacity)
	v.SetDefault("seed_count", scheduler.DefaultSeedCount)
	v.SetDefault("spawn_min", scheduler.DefaultMinInterval)
	v.SetDefault("spawn_max", scheduler.DefaultMaxInterval)
	v.SetDefault("poll_interval", anomaly.DefaultInterval)
	v.SetDefault("poll_timeout", anomaly.DefaultTimeout)
	v.SetDefault("classifier_url", anomaly.DefaultURL)
	v.SetDefault("feature_count", anomaly.DefaultFeatureCount)
	v.SetDefault("feature_value", anomaly.DefaultFeatureValue)
	v.SetDefault("catalog_file", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("auto_activate", false)
	v.SetDefault("log_level", "info")
}

// New returns a viper instance with defaults and environment binding.
// configFile is read when non-empty.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Listen:         v.GetString("listen"),
		BufferCapacity: v.GetInt("buffer_capacity"),
		SeedCount:      v.GetInt("seed_count"),
		SpawnMin:       v.GetDuration("spawn_min"),
		SpawnMax:       v.GetDuration("spawn_max"),
		PollInterval:   v.GetDuration("poll_interval"),
		PollTimeout:    v.GetDuration("poll_timeout"),
		ClassifierURL:  v.GetString("classifier_url"),
		FeatureCount:   v.GetInt("feature_count"),
		FeatureValue:   v.GetFloat64("feature_value"),
		CatalogFile:    v.GetString("catalog_file"),
		RedisURL:       v.GetString("redis_url"),
		DatabaseURL:    v.GetString("database_url"),
		AutoActivate:   v.GetBool("auto_activate"),
		LogLevel:       v.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the simulation relies on.
func (c Config) Validate() error {
	var errs []error
	if c.BufferCapacity <= 0 {
		errs = append(errs, fmt.Errorf("buffer_capacity must be positive, got %d", c.BufferCapacity))
	}
	if c.SeedCount < 0 {
		errs = append(errs, fmt.Errorf("seed_count must not be negative, got %d", c.SeedCount))
	}
	if c.SpawnMin <= 0 {
		errs = append(errs, fmt.Errorf("spawn_min must be positive, got %s", c.SpawnMin))
	}
	if c.SpawnMax < c.SpawnMin {
		errs = append(errs, fmt.Errorf("spawn_max %s is below spawn_min %s", c.SpawnMax, c.SpawnMin))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.PollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poll_timeout must be positive, got %s", c.PollTimeout))
	}
	if c.FeatureCount <= 0 {
		errs = append(errs, fmt.Errorf("feature_count must be positive, got %d", c.FeatureCount))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Spawner returns the scheduler settings.
func (c Config) Spawner() scheduler.Config {
	return scheduler.Config{MinInterval: c.SpawnMin, MaxInterval: c.SpawnMax, SeedCount: c.SeedCount}
}

// Bridge returns the anomaly bridge settings.
func (c Config) Bridge() anomaly.Config {
	return anomaly.Config{
		Interval: c.PollInterval,
		Timeout:  c.PollTimeout,
		Features: anomaly.SuspiciousFeatures(c.FeatureCount, c.FeatureValue),
	}
}
