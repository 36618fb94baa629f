package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/neomorfeo/practiq/internal/domain"
)

// config holds the process settings read from the environment.
type config struct {
	Port                   string
	DatabasePath           string
	Dormancy               domain.DormancyPolicy
	DormancyScanInterval   time.Duration
	ChecklistTemplatesPath string
	DefaultCurrency        string
}

func loadConfig() (config, error) {
	threshold, err := envInt("DORMANCY_THRESHOLD_DAYS", 90)
	if err != nil {
		return config{}, err
	}
	grace, err := envInt("DORMANCY_GRACE_DAYS", 30)
	if err != nil {
		return config{}, err
	}
	interval, err := time.ParseDuration(envOrDefault("DORMANCY_SCAN_INTERVAL", "24h"))
	if err != nil {
		return config{}, fmt.Errorf("parsing DORMANCY_SCAN_INTERVAL: %w", err)
	}
	if interval < 0 {
		return config{}, fmt.Errorf("DORMANCY_SCAN_INTERVAL must not be negative, got %s", interval)
	}

	return config{
		Port:         envOrDefault("PORT", "8080"),
		DatabasePath: envOrDefault("DATABASE_PATH", "practiq.db"),
		Dormancy: domain.DormancyPolicy{
			ThresholdDays: threshold,
			GraceDays:     grace,
		},
		DormancyScanInterval:   interval,
		ChecklistTemplatesPath: os.Getenv("CHECKLIST_TEMPLATES_PATH"),
		DefaultCurrency:        envOrDefault("DEFAULT_CURRENCY", "USD"),
	}, nil
}

// envInt reads a non-negative integer.
func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
