package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Mutter0815/ListSync/pkg/logx"
)

// Config holds the settings shared by campaign-api and lifecycle-worker.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Redis     RedisConfig     `yaml:"redis"`
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

type ServiceConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// DelayedKey is the sorted set holding tasks that are not due yet.
	DelayedKey   string        `yaml:"delayed_key"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type MailchimpConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// List defaults are required by the platform when a list is created.
	Company            string `yaml:"company"`
	Address            string `yaml:"address"`
	City               string `yaml:"city"`
	Country            string `yaml:"country"`
	PermissionReminder string `yaml:"permission_reminder"`
	FromName           string `yaml:"from_name"`
	FromEmail          string `yaml:"from_email"`
	Language           string `yaml:"language"`
}

type NotifierConfig struct {
	// Provider is one of "log", "resend", "ses".
	Provider      string `yaml:"provider"`
	From          string `yaml:"from"`
	OperatorEmail string `yaml:"operator_email"`
	ResendAPIKey  string `yaml:"resend_api_key"`
	SESRegion     string `yaml:"ses_region"`
	SESAccessKey  string `yaml:"ses_access_key"`
	SESSecretKey  string `yaml:"ses_secret_key"`
}

// LifecycleConfig carries the policy knobs of the sync and campaign lifecycle.
type LifecycleConfig struct {
	RetryLimit             int           `yaml:"retry_limit"`
	RetryBaseDelay         time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay          time.Duration `yaml:"retry_max_delay"`
	DefaultTimeframe       time.Duration `yaml:"default_timeframe"`
	CheckpointCount        int           `yaml:"checkpoint_count"`
	CheckpointSpacing      time.Duration `yaml:"checkpoint_spacing"`
	CampaignImportWindow   time.Duration `yaml:"campaign_import_window"`
	SegmentRefreshInterval time.Duration `yaml:"segment_refresh_interval"`
}

// Default returns a config with every default applied and no file or env input.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Port == "" {
		cfg.Service.Port = "8080"
	}
	if cfg.Service.MetricsPort == "" {
		cfg.Service.MetricsPort = "9090"
	}
	if cfg.RabbitMQ.Queue == "" {
		cfg.RabbitMQ.Queue = "lifecycle_tasks"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.DelayedKey == "" {
		cfg.Redis.DelayedKey = "lifecycle:delayed"
	}
	if cfg.Redis.PollInterval == 0 {
		cfg.Redis.PollInterval = time.Second
	}
	if cfg.Mailchimp.TimeoutSeconds == 0 {
		cfg.Mailchimp.TimeoutSeconds = 30
	}
	if cfg.Mailchimp.Language == "" {
		cfg.Mailchimp.Language = "en"
	}
	if cfg.Notifier.Provider == "" {
		cfg.Notifier.Provider = "log"
	}
	if cfg.Notifier.SESRegion == "" {
		cfg.Notifier.SESRegion = "us-east-1"
	}

	l := &cfg.Lifecycle
	if l.RetryLimit == 0 {
		l.RetryLimit = 5
	}
	if l.RetryBaseDelay == 0 {
		l.RetryBaseDelay = time.Minute
	}
	if l.RetryMaxDelay == 0 {
		l.RetryMaxDelay = 30 * time.Minute
	}
	if l.DefaultTimeframe == 0 {
		l.DefaultTimeframe = 7 * 24 * time.Hour
	}
	if l.CheckpointCount == 0 {
		l.CheckpointCount = 4
	}
	if l.CheckpointSpacing == 0 {
		l.CheckpointSpacing = 6 * time.Hour
	}
	if l.CampaignImportWindow == 0 {
		l.CampaignImportWindow = 24 * time.Hour
	}
	if l.SegmentRefreshInterval == 0 {
		l.SegmentRefreshInterval = 24 * time.Hour
	}
}

// LoadFromEnv loads the file at path (when path is not empty), then applies
// environment overrides. A .env file in the working directory is read first.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Service.Port = getenv("PORT", cfg.Service.Port)
	cfg.Service.MetricsPort = getenv("METRICS_PORT", cfg.Service.MetricsPort)
	cfg.Database.DSN = getenv("DB_DSN", cfg.Database.DSN)
	cfg.RabbitMQ.URL = getenv("RMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.Queue = getenv("QUEUE", cfg.RabbitMQ.Queue)
	cfg.Redis.Addr = getenv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getenv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Mailchimp.APIKey = getenv("MAILCHIMP_API_KEY", cfg.Mailchimp.APIKey)
	cfg.Mailchimp.BaseURL = getenv("MAILCHIMP_BASE_URL", cfg.Mailchimp.BaseURL)
	cfg.Notifier.Provider = getenv("NOTIFIER_PROVIDER", cfg.Notifier.Provider)
	cfg.Notifier.OperatorEmail = getenv("OPERATOR_EMAIL", cfg.Notifier.OperatorEmail)
	cfg.Notifier.ResendAPIKey = getenv("RESEND_API_KEY", cfg.Notifier.ResendAPIKey)
	cfg.Notifier.SESAccessKey = getenv("AWS_SES_ACCESS_KEY", cfg.Notifier.SESAccessKey)
	cfg.Notifier.SESSecretKey = getenv("AWS_SES_SECRET_KEY", cfg.Notifier.SESSecretKey)
	cfg.Notifier.SESRegion = getenv("AWS_SES_REGION", cfg.Notifier.SESRegion)

	if v := os.Getenv("RETRY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid RETRY_LIMIT %q", v)
		}
		cfg.Lifecycle.RetryLimit = n
	}

	if cfg.Mailchimp.BaseURL == "" {
		cfg.Mailchimp.BaseURL = baseURLFromKey(cfg.Mailchimp.APIKey)
	}
	return cfg, nil
}

// MustLoad is LoadFromEnv plus the checks both services need to start.
func MustLoad(path string) *Config {
	cfg, err := LoadFromEnv(path)
	if err != nil {
		logx.L().Fatalw("config_load_error", "path", path, "error", err)
	}
	if cfg.Database.DSN == "" {
		logx.L().Fatalw("config_missing", "key", "DB_DSN")
	}
	if cfg.RabbitMQ.URL == "" {
		logx.L().Fatalw("config_missing", "key", "RMQ_URL")
	}
	return cfg
}

// baseURLFromKey derives the API host from the data center suffix of a
// Mailchimp key ("...-us21" -> https://us21.api.mailchimp.com/3.0).
func baseURLFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '-' {
			if dc := key[i+1:]; dc != "" {
				return "https://" + dc + ".api.mailchimp.com/3.0"
			}
			break
		}
	}
	return ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
