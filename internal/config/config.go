package config

import (
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		// Grace extends the Redis liveness marker past the quiz time limit.
		Grace string `yaml:"grace"`
	} `yaml:"session"`
	Analytics struct {
		Timezone       string `yaml:"timezone"`
		RecentActivity int    `yaml:"recent_activity"`
	} `yaml:"analytics"`
	Badges struct {
		Catalog string `yaml:"catalog"`
	} `yaml:"badges"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the zero config.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	return cfg, err
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Location resolves the analytics timezone; empty means the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Analytics.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Analytics.Timezone)
}
