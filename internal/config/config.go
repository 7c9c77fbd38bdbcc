package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the control plane configuration read from the environment (.env if present).
type Config struct {
	AppEnv   string
	HTTPAddr string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	RedisAddr     string
	RedisPassword string

	JanusURL       string
	GatewayTimeout time.Duration
	ViewerBoost    int

	JWTSecret     string
	ActivityFlush time.Duration
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "livesignal")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JANUS_WS_URL", "ws://localhost:8188")
	v.SetDefault("GATEWAY_TIMEOUT", DefaultGatewayWait)
	v.SetDefault("VIEWER_BOOST", DefaultViewerBoost)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ACTIVITY_FLUSH_INTERVAL", DefaultActivityFlush)

	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		HTTPAddr:       v.GetString("HTTP_ADDR"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		JanusURL:       v.GetString("JANUS_WS_URL"),
		GatewayTimeout: v.GetDuration("GATEWAY_TIMEOUT"),
		ViewerBoost:    v.GetInt("VIEWER_BOOST"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		ActivityFlush:  v.GetDuration("ACTIVITY_FLUSH_INTERVAL"),
	}
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")

	return cfg, nil
}

// Validate checks required fields and production safety.
func (c *Config) Validate() error {
	if c.DB.Host == "" {
		return errors.New("config: DB_HOST is required")
	}
	if c.DB.Name == "" {
		return errors.New("config: DB_NAME is required")
	}
	if c.JanusURL == "" {
		return errors.New("config: JANUS_WS_URL is required")
	}
	if c.GatewayTimeout <= 0 {
		return errors.New("config: GATEWAY_TIMEOUT must be positive")
	}
	if c.ViewerBoost < 0 {
		return errors.New("config: VIEWER_BOOST must not be negative")
	}
	if c.AppEnv == "production" && c.JWTSecret == "" {
		return errors.New("config: in production JWT_SECRET is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string for GORM.
func (c *Config) DSN() string {
	return c.dsnFor(c.DB.Name)
}

// MaintenanceDSN points at the postgres database, used to create DB.Name when missing.
func (c *Config) MaintenanceDSN() string {
	return c.dsnFor("postgres")
}

func (c *Config) dsnFor(dbName string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, dbName, c.DB.SSLMode)
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
