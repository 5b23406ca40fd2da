package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DefaultRunHour   = 0
	DefaultRunMinute = 0
	DefaultWorkers   = 8
)

var log = InitLogger()

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type SchedulerConfig struct {
	Hour    int
	Minute  int
	Workers int
}

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

type TelegramConfig struct {
	Token       string
	AdminChatId int64
}

type Config struct {
	Postgres  *PostgresConfig
	RedisURL  string
	Scheduler SchedulerConfig
	Retry     RetryConfig
	Telegram  TelegramConfig
	OpsAddr   string
	// days of month on which withdrawals may be submitted; empty means any day
	WithdrawalDays []int
	MaxDailyROI    decimal.Decimal
}

// InitConfig loads .env (if present) and reads the typed configuration from the environment.
func InitConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded: ", err)
	}

	cfg := &Config{
		Postgres: LoadPostgresConfig(),
		RedisURL: strings.TrimSpace(os.Getenv("REDIS_URL")),
		Scheduler: SchedulerConfig{
			Hour:    envIntDefault("ROI_RUN_HOUR", DefaultRunHour),
			Minute:  envIntDefault("ROI_RUN_MINUTE", DefaultRunMinute),
			Workers: envIntDefault("ROI_WORKERS", DefaultWorkers),
		},
		Retry: RetryConfig{
			Attempts:  envIntDefault("RETRY_ATTEMPTS", 5),
			BaseDelay: envDurationDefault("RETRY_BASE_DELAY", 100*time.Millisecond),
		},
		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
			AdminChatId: int64(envIntDefault("TELEGRAM_ADMIN_CHAT_ID", 0)),
		},
		OpsAddr:     envDefault("OPS_ADDR", ":9090"),
		MaxDailyROI: decimal.NewFromInt(5),
	}

	if v := strings.TrimSpace(os.Getenv("MAX_DAILY_ROI")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse MAX_DAILY_ROI: %w", err)
		}
		cfg.MaxDailyROI = d
	}

	days, err := ParseWithdrawalDays(os.Getenv("WITHDRAWAL_DAYS"))
	if err != nil {
		return nil, err
	}
	cfg.WithdrawalDays = days

	if cfg.Scheduler.Hour < 0 || cfg.Scheduler.Hour > 23 || cfg.Scheduler.Minute < 0 || cfg.Scheduler.Minute > 59 {
		return nil, fmt.Errorf("invalid ROI schedule %02d:%02d", cfg.Scheduler.Hour, cfg.Scheduler.Minute)
	}
	if cfg.Scheduler.Workers < 1 {
		cfg.Scheduler.Workers = 1
	}
	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = 1
	}

	return cfg, nil
}

func LoadPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     envDefault("DB_HOST", "localhost"),
		Port:     envDefault("DB_PORT", "5432"),
		DBName:   os.Getenv("DB_NAME"),
	}
}

// ParseWithdrawalDays parses a comma separated list like "1,15,28".
func ParseWithdrawalDays(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	seen := make(map[int]struct{})
	res := make([]int, 0, 4)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parse WITHDRAWAL_DAYS %q: %w", part, err)
		}
		if day < 1 || day > 31 {
			return nil, fmt.Errorf("withdrawal day %d out of range", day)
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		res = append(res, day)
	}
	sort.Ints(res)
	return res, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Errorf("Error parsing %s, using %d", key, fallback)
		return fallback
	}
	return i
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Errorf("Error parsing %s, using %v", key, fallback)
		return fallback
	}
	return d
}
