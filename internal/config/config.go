package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the duty engine configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`

	// HolidayCalendarID is a public Google holiday calendar, e.g.
	// "en.swedish#holiday@group.v.calendar.google.com". Empty disables
	// external holiday lookup; all dates count as regular days.
	HolidayCalendarID string  `yaml:"holidayCalendarID,omitempty"`
	HolidayAPIKey     string  `yaml:"holidayAPIKey,omitempty"`
	HolidayMultiplier float64 `yaml:"holidayMultiplier,omitempty" validate:"omitempty,gte=1"`

	DefaultHorizonDays int    `yaml:"defaultHorizonDays,omitempty" validate:"omitempty,min=1,max=365"`
	BatchSize          int    `yaml:"batchSize,omitempty" validate:"omitempty,min=1"`
	MemberPlaceholder  string `yaml:"memberPlaceholder,omitempty"`

	// Cron schedules for the daemon's periodic jobs
	AdvanceCron string `yaml:"advanceCron,omitempty"`
	SweepCron   string `yaml:"sweepCron,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from stable_duty_config.yaml.
// It looks for the config file in the current directory first, then in the
// user's home directory.
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}
	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration struct and checks cron syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for name, spec := range map[string]string{"advanceCron": cfg.AdvanceCron, "sweepCron": cfg.SweepCron} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron expression in %s: %w", name, err)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.HolidayMultiplier == 0 {
		cfg.HolidayMultiplier = 1.5
	}
	if cfg.DefaultHorizonDays == 0 {
		cfg.DefaultHorizonDays = 14
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 500
	}
	if cfg.AdvanceCron == "" {
		cfg.AdvanceCron = "0 3 * * *"
	}
	if cfg.SweepCron == "" {
		cfg.SweepCron = "@hourly"
	}
}

// findConfigFile searches for stable_duty_config.yaml in the current
// directory and home directory
func findConfigFile() (string, error) {
	configFileName := "stable_duty_config.yaml"

	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file not found in current directory or home directory")
}
