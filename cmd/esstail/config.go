package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// tailConfig is the esstail JSON config file.
type tailConfig struct {
	ServiceID   string   `json:"serviceId"`
	Environment string   `json:"environment"`
	LogLevel    string   `json:"logLevel"`
	DedupSize   int      `json:"dedupCacheSize"`
	Events      []string `json:"events"`
	Worlds      []string `json:"worlds"`
	Characters  []string `json:"characters"`
}

const (
	defaultLogLevel  = "info"
	defaultDedupSize = 10000
)

// loadConfig reads and parses the configuration file. The service ID may
// also come from the PS2_SERVICE_ID environment variable, which wins over
// the file.
func loadConfig(path string) (*tailConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &tailConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if env := os.Getenv("PS2_SERVICE_ID"); env != "" {
		cfg.ServiceID = env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.DedupSize == 0 {
		cfg.DedupSize = defaultDedupSize
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *tailConfig) error {
	if cfg.ServiceID == "" {
		return errors.New("serviceId is required (or set PS2_SERVICE_ID)")
	}
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}
	if cfg.DedupSize < 0 {
		return fmt.Errorf("dedupCacheSize must be non-negative")
	}
	return nil
}
