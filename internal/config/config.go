package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Storage    StorageConfig
	Slack      SlackConfig
	Scheduler  SchedulerConfig
	TimePolicy TimePolicy
}

type DatabaseConfig struct {
	Driver   string // postgres | memory
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// SeedFile is a YAML employee directory loaded by the memory driver.
	SeedFile string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// StorageConfig selects where payroll snapshots are written.
type StorageConfig struct {
	Driver   string // local | s3
	BasePath string
	BaseURL  string
	Bucket   string
	Region   string
	Prefix   string
}

type SlackConfig struct {
	BotToken       string
	InfoChannelID  string
	ErrorChannelID string
}

type SchedulerConfig struct {
	Enabled bool
}

// TimePolicy carries the tunables of the attendance engine. Values come from
// the environment and may be overridden by the YAML file in TIME_POLICY_FILE.
type TimePolicy struct {
	AllowEarlyMinutes         int           `yaml:"allow_early_minutes"`
	AllowLateMinutes          int           `yaml:"allow_late_minutes"`
	StrictShiftWindow         bool          `yaml:"strict_shift_window"`
	TimeZone                  string        `yaml:"time_zone"`
	DefaultPunchMode          string        `yaml:"default_punch_mode"`
	RoundingIntervalMinutes   int           `yaml:"rounding_interval_minutes"`
	RoundingStrategy          string        `yaml:"rounding_strategy"`
	CorrectionEscalationAfter time.Duration `yaml:"correction_escalation_after"`
	ExceptionEscalationAfter  time.Duration `yaml:"exception_escalation_after"`
	PayrollCutoffDay          int           `yaml:"payroll_cutoff_day"`
	SyncMaxRetries            int           `yaml:"sync_max_retries"`
	DefaultHRReviewerID       string        `yaml:"default_hr_reviewer_id"`
}

// Location resolves TimeZone, falling back to UTC.
func (p TimePolicy) Location() *time.Location {
	loc, err := time.LoadLocation(p.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-hris"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		SeedFile: getEnv("DB_SEED_FILE", ""),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	config.Storage = StorageConfig{
		Driver:   getEnv("STORAGE_DRIVER", "local"),
		BasePath: getEnv("STORAGE_BASE_PATH", "./storage"),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
		Bucket:   getEnv("S3_BUCKET", ""),
		Region:   getEnv("AWS_REGION", ""),
		Prefix:   getEnv("S3_PREFIX", "timekeeping"),
	}

	config.Slack = SlackConfig{
		BotToken:       getEnv("SLACK_BOT_TOKEN", ""),
		InfoChannelID:  getEnv("SLACK_INFO_CHANNEL", ""),
		ErrorChannelID: getEnv("SLACK_ERROR_CHANNEL", ""),
	}

	config.Scheduler = SchedulerConfig{
		Enabled: getEnvBool("SCHEDULER_ENABLED", true),
	}

	policy, err := loadTimePolicy()
	if err != nil {
		return nil, err
	}
	config.TimePolicy = policy

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// DefaultTimePolicy returns the policy used when nothing is configured.
func DefaultTimePolicy() TimePolicy {
	return TimePolicy{
		AllowEarlyMinutes:         60,
		AllowLateMinutes:          120,
		StrictShiftWindow:         false,
		TimeZone:                  "UTC",
		DefaultPunchMode:          "MULTIPLE",
		RoundingIntervalMinutes:   15,
		RoundingStrategy:          "NEAREST",
		CorrectionEscalationAfter: 48 * time.Hour,
		ExceptionEscalationAfter:  48 * time.Hour,
		PayrollCutoffDay:          25,
		SyncMaxRetries:            5,
	}
}

func loadTimePolicy() (TimePolicy, error) {
	p := DefaultTimePolicy()

	var err error
	if p.AllowEarlyMinutes, err = getEnvInt("ALLOW_EARLY_MINUTES", p.AllowEarlyMinutes); err != nil {
		return p, err
	}
	if p.AllowLateMinutes, err = getEnvInt("ALLOW_LATE_MINUTES", p.AllowLateMinutes); err != nil {
		return p, err
	}
	if p.RoundingIntervalMinutes, err = getEnvInt("ROUNDING_INTERVAL_MINUTES", p.RoundingIntervalMinutes); err != nil {
		return p, err
	}
	if p.PayrollCutoffDay, err = getEnvInt("PAYROLL_CUTOFF_DAY", p.PayrollCutoffDay); err != nil {
		return p, err
	}
	if p.SyncMaxRetries, err = getEnvInt("SYNC_MAX_RETRIES", p.SyncMaxRetries); err != nil {
		return p, err
	}
	if p.CorrectionEscalationAfter, err = getEnvDuration("CORRECTION_ESCALATION_AFTER", p.CorrectionEscalationAfter); err != nil {
		return p, err
	}
	if p.ExceptionEscalationAfter, err = getEnvDuration("EXCEPTION_ESCALATION_AFTER", p.ExceptionEscalationAfter); err != nil {
		return p, err
	}
	p.StrictShiftWindow = getEnvBool("STRICT_SHIFT_WINDOW", p.StrictShiftWindow)
	p.TimeZone = getEnv("TIME_ZONE", p.TimeZone)
	p.DefaultPunchMode = getEnv("DEFAULT_PUNCH_MODE", p.DefaultPunchMode)
	p.RoundingStrategy = getEnv("ROUNDING_STRATEGY", p.RoundingStrategy)
	p.DefaultHRReviewerID = getEnv("DEFAULT_HR_REVIEWER_ID", p.DefaultHRReviewerID)

	if path := getEnv("TIME_POLICY_FILE", ""); path != "" {
		if err := p.overrideFromFile(path); err != nil {
			return p, err
		}
		slog.Info("Time policy loaded from file", "path", path)
	}

	return p, nil
}

// overrideFromFile applies the keys present in a YAML policy file on top of p.
func (p *TimePolicy) overrideFromFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read time policy file: %w", err)
	}
	if err := yaml.Unmarshal(buf, p); err != nil {
		return fmt.Errorf("failed to parse time policy file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("DB_DRIVER must be postgres or memory")
	}
	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Storage.Driver == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER is s3")
	}
	return c.TimePolicy.Validate()
}

func (p TimePolicy) Validate() error {
	switch p.RoundingStrategy {
	case "NEAREST", "CEILING", "FLOOR":
	default:
		return fmt.Errorf("ROUNDING_STRATEGY must be NEAREST, CEILING or FLOOR")
	}
	if p.RoundingIntervalMinutes <= 0 {
		return fmt.Errorf("ROUNDING_INTERVAL_MINUTES must be positive")
	}
	if p.DefaultPunchMode != "MULTIPLE" && p.DefaultPunchMode != "FIRST_LAST" {
		return fmt.Errorf("DEFAULT_PUNCH_MODE must be MULTIPLE or FIRST_LAST")
	}
	if p.PayrollCutoffDay < 1 || p.PayrollCutoffDay > 28 {
		return fmt.Errorf("PAYROLL_CUTOFF_DAY must be between 1 and 28")
	}
	if p.AllowEarlyMinutes < 0 || p.AllowLateMinutes < 0 {
		return fmt.Errorf("shift window tolerances must not be negative")
	}
	if _, err := time.LoadLocation(p.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE: %w", err)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
