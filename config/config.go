// Package config builds the immutable application configuration once at start-up.
//
// Load order:
//  1. .env (secrets such as JWT_SECRET, SMTP_PASSWORD)
//  2. YAML file named by CONFIG_FILE, default configs/app.yaml
//  3. environment variables override both
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env           string              `yaml:"env"`
	Server        ServerConfig        `yaml:"server"`
	Mongo         MongoConfig         `yaml:"mongo"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	OTP           OTPConfig           `yaml:"otp"`
	Session       SessionConfig       `yaml:"session"`
	PasswordReset PasswordResetConfig `yaml:"passwordReset"`
	Mail          MailConfig          `yaml:"mail"`
	Booking       BookingConfig       `yaml:"booking"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Log           LogConfig           `yaml:"log"`
	Jobs          JobsConfig          `yaml:"jobs"`
	BcryptCost    int                 `yaml:"bcryptCost"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	CookieSecure   bool          `yaml:"cookieSecure"`
	ShutdownGrace  time.Duration `yaml:"shutdownGrace"`
}

type MongoConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URI             string `yaml:"uri"`
	Database        string `yaml:"database"`
	UseTransactions bool   `yaml:"useTransactions"`
	RunMigrations   bool   `yaml:"runMigrations"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// JWTConfig signs tokens only. A token expires with its session, see SessionConfig.TTL.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type OTPConfig struct {
	Length         int           `yaml:"length"`
	TTL            time.Duration `yaml:"ttl"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	ResendCooldown time.Duration `yaml:"resendCooldown"`
}

type SessionConfig struct {
	TTL       time.Duration `yaml:"ttl"`
	Retention time.Duration `yaml:"retention"`
}

type PasswordResetConfig struct {
	TokenTTL  time.Duration `yaml:"tokenTTL"`
	MaxResets int           `yaml:"maxResets"`
}

type MailConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	From        string `yaml:"from"`
	FrontendURL string `yaml:"frontendURL"`
}

type BookingConfig struct {
	HorizonDays int    `yaml:"horizonDays"`
	TimeZone    string `yaml:"timeZone"`
}

type RateLimitConfig struct {
	AuthRequests int           `yaml:"authRequests"`
	AuthWindow   time.Duration `yaml:"authWindow"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type JobsConfig struct {
	Enabled              bool   `yaml:"enabled"`
	SessionCleanupSpec   string `yaml:"sessionCleanupSpec"`
	RetentionCleanupSpec string `yaml:"retentionCleanupSpec"`
}

var envPaths = []string{
	".env",
	"../.env",
}

func Default() Config {
	return Config{
		Env: "dev",
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ShutdownGrace:  10 * time.Second,
		},
		Mongo: MongoConfig{
			Enabled:  true,
			URI:      "mongodb://localhost:27017",
			Database: "healthconnect",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			CacheTTL: 5 * time.Minute,
		},
		JWT: JWTConfig{
			Issuer: "healthconnect",
		},
		OTP: OTPConfig{
			Length:         6,
			TTL:            10 * time.Minute,
			MaxAttempts:    3,
			ResendCooldown: time.Minute,
		},
		Session: SessionConfig{
			TTL:       7 * 24 * time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:  time.Hour,
			MaxResets: 1,
		},
		Mail: MailConfig{
			Port:        587,
			From:        "HealthConnect <no-reply@healthconnect.local>",
			FrontendURL: "http://localhost:3000",
		},
		Booking: BookingConfig{
			HorizonDays: 7,
			TimeZone:    "Local",
		},
		RateLimit: RateLimitConfig{
			AuthRequests: 20,
			AuthWindow:   time.Minute,
		},
		Log: LogConfig{
			Level:       "info",
			Development: true,
		},
		Jobs: JobsConfig{
			Enabled:              true,
			SessionCleanupSpec:   "@every 15m",
			RetentionCleanupSpec: "30 3 * * *",
		},
		BcryptCost: 12,
	}
}

// Load reads .env, the YAML file and the environment, in that order.
func Load() (Config, error) {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg := Default()
	path := getEnv("CONFIG_FILE", filepath.Join("configs", "app.yaml"))
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Server.CookieSecure = getBool("COOKIE_SECURE", cfg.Server.CookieSecure)

	cfg.Mongo.Enabled = getBool("MONGO_ENABLED", cfg.Mongo.Enabled)
	cfg.Mongo.URI = getEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = getEnv("MONGO_DATABASE", cfg.Mongo.Database)
	cfg.Mongo.UseTransactions = getBool("MONGO_TRANSACTIONS", cfg.Mongo.UseTransactions)
	cfg.Mongo.RunMigrations = getBool("MONGO_MIGRATIONS", cfg.Mongo.RunMigrations)

	cfg.Redis.Enabled = getBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getInt("REDIS_DB", cfg.Redis.DB)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)

	cfg.Mail.Enabled = getBool("SMTP_ENABLED", cfg.Mail.Enabled)
	cfg.Mail.Host = getEnv("SMTP_HOST", cfg.Mail.Host)
	cfg.Mail.Port = getInt("SMTP_PORT", cfg.Mail.Port)
	cfg.Mail.Username = getEnv("SMTP_USERNAME", cfg.Mail.Username)
	cfg.Mail.Password = getEnv("SMTP_PASSWORD", cfg.Mail.Password)
	cfg.Mail.From = getEnv("SMTP_FROM", cfg.Mail.From)
	cfg.Mail.FrontendURL = getEnv("FRONTEND_URL", cfg.Mail.FrontendURL)

	cfg.Booking.TimeZone = getEnv("BOOKING_TIMEZONE", cfg.Booking.TimeZone)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Development = getBool("LOG_DEVELOPMENT", cfg.Log.Development)
	cfg.Jobs.Enabled = getBool("JOBS_ENABLED", cfg.Jobs.Enabled)
	cfg.BcryptCost = getInt("BCRYPT_COST", cfg.BcryptCost)
}

// Location resolves the booking time zone, falling back to the process zone.
func (c Config) Location() *time.Location {
	if c.Booking.TimeZone == "" || c.Booking.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Booking.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
