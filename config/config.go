package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken    string   `yaml:"telegram_token"`
	OpenAIAPIKey     string   `yaml:"openai_api_key"`
	OwnerID          int64    `yaml:"owner_id"`
	OpenAIModel      string   `yaml:"openai_model"`
	Latitude         float64  `yaml:"latitude"`
	Longitude        float64  `yaml:"longitude"`
	Timezone         string   `yaml:"timezone"`
	ForecastDays     int      `yaml:"forecast_days"`
	ForecastHours    int      `yaml:"forecast_hours"`
	HourlyVariables  []string `yaml:"hourly_variables"`
	UpdateTime       string   `yaml:"update_time"`
	SubscriptionFile string   `yaml:"subscription_file"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_secs"`
	ChartWidth       int      `yaml:"chart_width"`
	ChartHeight      int      `yaml:"chart_height"`
}

// updateTimeRegex validates HH:MM format with proper ranges.
var updateTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// defaultHourlyVariables are the Open-Meteo hourly series the bot charts.
var defaultHourlyVariables = []string{
	"temperature_2m",
	"precipitation_probability",
	"rain",
	"showers",
	"snowfall",
	"cloud_cover",
	"wind_speed_10m",
}

// Load reads configuration from a YAML file and applies defaults. Secrets
// (bot token, OpenAI key, owner ID) may come from the environment instead of
// the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file: run on defaults plus environment.
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("WEATHER_BOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.Latitude == 0 {
		cfg.Latitude = 51.3079
	}
	if cfg.Longitude == 0 {
		cfg.Longitude = 12.3761
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Europe/Berlin"
	}
	if cfg.ForecastDays == 0 {
		cfg.ForecastDays = 1
	}
	if cfg.ForecastHours == 0 {
		cfg.ForecastHours = 12
	}
	if len(cfg.HourlyVariables) == 0 {
		cfg.HourlyVariables = append([]string(nil), defaultHourlyVariables...)
	}
	if cfg.UpdateTime == "" {
		cfg.UpdateTime = "13:12"
	}
	if cfg.SubscriptionFile == "" {
		cfg.SubscriptionFile = "./subscriptions.json"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 30
	}
	if cfg.ChartWidth == 0 {
		cfg.ChartWidth = 1600
	}
	if cfg.ChartHeight == 0 {
		cfg.ChartHeight = 900
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
	if owner := os.Getenv("OWNER_ID"); owner != "" {
		if id, err := strconv.ParseInt(owner, 10, 64); err == nil {
			cfg.OwnerID = id
		}
	}
	if file := os.Getenv("WEATHER_BOT_SUBSCRIPTIONS"); file != "" {
		cfg.SubscriptionFile = file
	}
}

func validate(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required (or TELEGRAM_BOT_TOKEN)")
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("openai_api_key is required (or OPENAI_API_KEY)")
	}
	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %v", cfg.Latitude)
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %v", cfg.Longitude)
	}
	if cfg.ForecastDays < 1 {
		return fmt.Errorf("forecast_days must be positive, got %d", cfg.ForecastDays)
	}
	if cfg.ForecastHours < 1 {
		return fmt.Errorf("forecast_hours must be positive, got %d", cfg.ForecastHours)
	}
	if !updateTimeRegex.MatchString(cfg.UpdateTime) {
		return fmt.Errorf("update_time must be in HH:MM format (00:00-23:59), got %q", cfg.UpdateTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	return nil
}
