package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup from a YAML file.
type Config struct {
	Telegram struct {
		Token string `yaml:"token"`
	} `yaml:"telegram"`
	Admin struct {
		MainID int64 `yaml:"main_id"`
	} `yaml:"admin"`
	Transfer struct {
		MaxSizeMB     int64 `yaml:"max_size_mb"`     // 0 = unlimited
		RetryAttempts int   `yaml:"retry_attempts"`  // per stage
		RetryBackoff  int   `yaml:"retry_backoff_s"` // seconds, grows linearly
		MaxConcurrent int64 `yaml:"max_concurrent"`
	} `yaml:"transfer"`
	Progress struct {
		BarWidth  int `yaml:"bar_width"`
		StepPct   int `yaml:"step_pct"`
		IntervalS int `yaml:"interval_s"`
	} `yaml:"progress"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Mongo struct {
		URL string `yaml:"url"`
	} `yaml:"mongo"`
	Web struct {
		Port string `yaml:"port"`
	} `yaml:"web"`
}

func loadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram.token is missing")
	}
	if cfg.Admin.MainID == 0 {
		return nil, fmt.Errorf("admin.main_id is missing")
	}

	// Sane defaults for everything else
	if cfg.Transfer.RetryAttempts <= 0 {
		cfg.Transfer.RetryAttempts = 3
	}
	if cfg.Transfer.RetryBackoff <= 0 {
		cfg.Transfer.RetryBackoff = 2
	}
	if cfg.Transfer.MaxConcurrent <= 0 {
		cfg.Transfer.MaxConcurrent = 3
	}
	if cfg.Progress.BarWidth <= 0 {
		cfg.Progress.BarWidth = 10
	}
	if cfg.Progress.StepPct <= 0 {
		cfg.Progress.StepPct = 5
	}
	if cfg.Progress.IntervalS <= 0 {
		cfg.Progress.IntervalS = 2
	}
	if cfg.Web.Port == "" {
		cfg.Web.Port = "8080"
	}
	return &cfg, nil
}

func (c *Config) maxSizeBytes() int64 {
	if c.Transfer.MaxSizeMB <= 0 {
		return 0
	}
	return c.Transfer.MaxSizeMB * 1024 * 1024
}

func (c *Config) progressInterval() time.Duration {
	return time.Duration(c.Progress.IntervalS) * time.Second
}

func (c *Config) retryBackoff() time.Duration {
	return time.Duration(c.Transfer.RetryBackoff) * time.Second
}
