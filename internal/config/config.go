package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Server    ServerConfig
	Site      SiteConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Resend    ResendConfig
	Drip      DripConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Address     string
	AdminAPIKey string
}

type SiteConfig struct {
	URL        string
	ConfirmURL string
	SuccessURL string
	ErrorURL   string
	InvalidURL string
}

type DatabaseConfig struct {
	PostgresURL string
	ContentFile string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type ResendConfig struct {
	APIKey  string
	BaseURL string
	From    string
}

type DripConfig struct {
	OptInTTL      time.Duration
	SubscriberTTL time.Duration
	RetryDelay    time.Duration
	SendingLease  time.Duration
	BatchSize     int
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func LoadAll() (*Config, error) {
	var errs []error

	str := func(key string) string {
		v, err := requireEnv(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	flag := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	siteURL := strings.TrimRight(str("SITE_URL"), "/")

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			Address:     getEnv("SERVER_ADDRESS", ":8080"),
			AdminAPIKey: str("ADMIN_API_KEY"),
		},
		Site: SiteConfig{
			URL:        siteURL,
			ConfirmURL: siteURL + getEnv("CONFIRM_PATH", "/v1/optin/confirm"),
			SuccessURL: getEnv("CONFIRM_SUCCESS_URL", siteURL+"/subscribed"),
			ErrorURL:   getEnv("CONFIRM_ERROR_URL", siteURL+"/subscribe-error"),
			InvalidURL: getEnv("CONFIRM_INVALID_URL", siteURL+"/subscribe-expired"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
			ContentFile: os.Getenv("CONTENT_FILE"),
		},
		Redis: RedisConfig{
			Address:  str("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       num("REDIS_DB", 0),
		},
		Resend: ResendConfig{
			APIKey:  str("RESEND_API_KEY"),
			BaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
			From:    str("EMAIL_FROM"),
		},
		Drip: DripConfig{
			OptInTTL:      time.Duration(num("OPTIN_TTL_HOURS", 48)) * time.Hour,
			SubscriberTTL: time.Duration(num("SUBSCRIBER_TTL_DAYS", 90)) * 24 * time.Hour,
			RetryDelay:    time.Duration(num("RETRY_DELAY_MINUTES", 60)) * time.Minute,
			SendingLease:  time.Duration(num("SENDING_LEASE_MINUTES", 10)) * time.Minute,
			BatchSize:     num("PROCESS_BATCH_SIZE", 50),
		},
		Scheduler: SchedulerConfig{
			Enabled:  flag("SCHED_ENABLED", false),
			Interval: time.Duration(num("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
		},
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Database.PostgresURL == "" && cfg.Database.ContentFile == "" {
		errs = append(errs, errors.New("one of POSTGRES_URL or CONTENT_FILE must be set"))
	}
	if cfg.Drip.BatchSize <= 0 {
		errs = append(errs, errors.New("PROCESS_BATCH_SIZE must be > 0"))
	}
	if cfg.Drip.OptInTTL <= 0 {
		errs = append(errs, errors.New("OPTIN_TTL_HOURS must be > 0"))
	}
	if cfg.Drip.SubscriberTTL <= 0 {
		errs = append(errs, errors.New("SUBSCRIBER_TTL_DAYS must be > 0"))
	}
	if cfg.Drip.RetryDelay <= 0 {
		errs = append(errs, errors.New("RETRY_DELAY_MINUTES must be > 0"))
	}
	if cfg.Drip.SendingLease <= 0 {
		errs = append(errs, errors.New("SENDING_LEASE_MINUTES must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %q", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
