// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"`
	AdminIDs []int64 `yaml:"admin_ids"`
}

// ChannelsConfig maps a region code to its publishing channels. Regions
// without an entry reject publication with a configuration error.
type ChannelsConfig struct {
	ByRegion map[string][]string `yaml:"by_region"`
}

type LogConfig struct {
	Level    string `yaml:"level"`  // trace|debug|info|warn|error
	Format   string `yaml:"format"` // json|console
	Sampling bool   `yaml:"sampling"`
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RobokassaConfig struct {
	MerchantLogin string `yaml:"merchant_login"`
	Password1     string `yaml:"password1"`
	Password2     string `yaml:"password2"`
	TestMode      bool   `yaml:"test_mode"`
}

type RatesConfig struct {
	SourceURL string        `yaml:"source_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Retries   int           `yaml:"retries"`
}

type ModerationConfig struct {
	APIKey     string  `yaml:"api_key"`
	BaseURL    string  `yaml:"base_url"`
	Model      string  `yaml:"model"`
	MinScore   float64 `yaml:"min_score"` // verdicts below this confidence pass
	FailOpen   bool    `yaml:"fail_open"`
	Disabled   bool    `yaml:"disabled"`
}

type SchedulerConfig struct {
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
	BoostInterval   time.Duration `yaml:"boost_interval"`
	NotifyInterval  time.Duration `yaml:"notify_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RateInterval    time.Duration `yaml:"rate_interval"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Channels   ChannelsConfig   `yaml:"channels"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Robokassa  RobokassaConfig  `yaml:"robokassa"`
	Rates      RatesConfig      `yaml:"rates"`
	Moderation ModerationConfig `yaml:"moderation"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Rates.SourceURL == "" {
		cfg.Rates.SourceURL = "https://www.cbr-xml-daily.ru/daily_json.js"
	}
	if cfg.Rates.Timeout <= 0 {
		cfg.Rates.Timeout = 10 * time.Second
	}
	if cfg.Rates.Retries <= 0 {
		cfg.Rates.Retries = 2
	}
	if cfg.Moderation.MinScore <= 0 {
		cfg.Moderation.MinScore = 0.8
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = 10 * time.Minute
	}
	if cfg.Scheduler.BoostInterval <= 0 {
		cfg.Scheduler.BoostInterval = 15 * time.Minute
	}
	if cfg.Scheduler.NotifyInterval <= 0 {
		cfg.Scheduler.NotifyInterval = time.Hour
	}
	if cfg.Scheduler.CleanupInterval <= 0 {
		cfg.Scheduler.CleanupInterval = 6 * time.Hour
	}
	if cfg.Scheduler.RateInterval <= 0 {
		cfg.Scheduler.RateInterval = 6 * time.Hour
	}
}
