package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SMTP      SMTPConfig
	Forecast  ForecastConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// PublicBaseURL is the externally reachable origin used in vendor links
	PublicBaseURL   string
	MigrationsDir   string
	ShutdownTimeout time.Duration
	// TrustProxy honours X-Forwarded-For and X-Real-IP as the client address
	TrustProxy bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
	MaxConns int
}

// DSN returns a libpq style connection string understood by pgx
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.Schema)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type JWTConfig struct {
	Secret string
}

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type ForecastConfig struct {
	URL              string
	Timeout          time.Duration
	Retries          int
	Concurrency      int
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type RateLimitConfig struct {
	PublicRequests int
	PublicWindow   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

// Load reads configuration from the environment, an optional dotenv file
// given by --env-file, and a .env file in the working directory
func Load() (*Config, error) {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	envFile := flags.String("env-file", "", "dotenv file loaded before reading the environment")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	return load(*envFile)
}

func load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Warning: Could not read config file: %v", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Env:             v.GetString("SERVER_ENV"),
			LogLevel:        v.GetString("LOG_LEVEL"),
			PublicBaseURL:   v.GetString("PUBLIC_BASE_URL"),
			MigrationsDir:   v.GetString("MIGRATIONS_DIR"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
			TrustProxy:      v.GetBool("TRUST_PROXY"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		SMTP: SMTPConfig{
			Enabled:  v.GetBool("SMTP_ENABLED"),
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: v.GetString("SMTP_USERNAME"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
			Timeout:  v.GetDuration("SMTP_TIMEOUT"),
		},
		Forecast: ForecastConfig{
			URL:              v.GetString("FORECAST_URL"),
			Timeout:          v.GetDuration("FORECAST_TIMEOUT"),
			Retries:          v.GetInt("FORECAST_RETRIES"),
			Concurrency:      v.GetInt("FORECAST_CONCURRENCY"),
			FailureThreshold: v.GetUint32("FORECAST_FAILURE_THRESHOLD"),
			OpenTimeout:      v.GetDuration("FORECAST_OPEN_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			PublicRequests: v.GetInt("RATE_LIMIT_PUBLIC_REQUESTS"),
			PublicWindow:   v.GetDuration("RATE_LIMIT_PUBLIC_WINDOW"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SMTP_ENABLED", false)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_TIMEOUT", "10s")
	v.SetDefault("FORECAST_URL", "http://localhost:5000")
	v.SetDefault("FORECAST_TIMEOUT", "5s")
	v.SetDefault("FORECAST_RETRIES", 2)
	v.SetDefault("FORECAST_CONCURRENCY", 4)
	v.SetDefault("FORECAST_FAILURE_THRESHOLD", 5)
	v.SetDefault("FORECAST_OPEN_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_PUBLIC_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_PUBLIC_WINDOW", "1m")
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.From == "") {
		errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required when SMTP_ENABLED is set"))
	}
	if c.Forecast.Concurrency < 1 {
		errs = append(errs, errors.New("FORECAST_CONCURRENCY must be at least 1"))
	}
	if c.RateLimit.PublicRequests < 1 || c.RateLimit.PublicWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PUBLIC_REQUESTS and RATE_LIMIT_PUBLIC_WINDOW must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
