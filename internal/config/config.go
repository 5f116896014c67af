package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Import    ImportConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env != "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN returns the connection string for the pgx driver
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port of the Redis server
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

// AdminConfig describes the account created on first start when no admin exists.
type AdminConfig struct {
	Username          string
	Password          string
	Bekleidungsnummer string
}

type ImportConfig struct {
	MaxUploadMB int64
}

// MaxUploadBytes is the upload limit for spreadsheet imports.
func (i ImportConfig) MaxUploadBytes() int64 {
	return i.MaxUploadMB << 20
}

type RateLimitConfig struct {
	LoginRequests int
	LoginWindow   time.Duration
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("ADMIN_USERNAME", "Admin")
	viper.SetDefault("ADMIN_PASSWORD", "admin123")
	viper.SetDefault("ADMIN_BEKLEIDUNGSNUMMER", "ADMIN")
	viper.SetDefault("IMPORT_MAX_UPLOAD_MB", 10)
	viper.SetDefault("RATE_LIMIT_LOGIN_REQUESTS", 10)
	viper.SetDefault("RATE_LIMIT_LOGIN_WINDOW", 60)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Admin: AdminConfig{
			Username:          viper.GetString("ADMIN_USERNAME"),
			Password:          viper.GetString("ADMIN_PASSWORD"),
			Bekleidungsnummer: viper.GetString("ADMIN_BEKLEIDUNGSNUMMER"),
		},
		Import: ImportConfig{
			MaxUploadMB: viper.GetInt64("IMPORT_MAX_UPLOAD_MB"),
		},
		RateLimit: RateLimitConfig{
			LoginRequests: viper.GetInt("RATE_LIMIT_LOGIN_REQUESTS"),
			LoginWindow:   time.Duration(viper.GetInt("RATE_LIMIT_LOGIN_WINDOW")) * time.Second,
		},
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
