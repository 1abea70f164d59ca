package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string `toml:"host"`
	Port               string `toml:"port"`
	User               string `toml:"user"`
	Password           string `toml:"password"`
	Name               string `toml:"name"`
	SSLMode            string `toml:"sslmode"`
	MaxOpenConns       int    `toml:"max_open_conns"`
	MaxIdleConns       int    `toml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `toml:"conn_max_lifetime_sec"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	// PresignDownloads redirects downloads to a presigned URL instead of proxying content.
	PresignDownloads bool `toml:"presign_downloads"`
	PresignExpirySec int  `toml:"presign_expiry_sec"`
}

// RedisConfig configures the document view cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	ViewTTLSec int    `toml:"view_ttl_sec"`
}

// RabbitMQConfig configures workflow event publishing. An empty URL disables it.
type RabbitMQConfig struct {
	URL         string `toml:"url"`
	EventsQueue string `toml:"events_queue"`
	// RunWorker starts the notification consumer in-process.
	RunWorker bool `toml:"run_worker"`
}

// AuthConfig holds the HMAC secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// SeedUser is a directory entry loaded into the memory backend.
type SeedUser struct {
	ID    string `toml:"id"`
	Email string `toml:"email"`
	Role  string `toml:"role"`
}

// AppConfig is the centralized configuration struct for the application.
// Values come from defaults, then the optional TOML file, then environment variables.
type AppConfig struct {
	Env            string         `toml:"env"`
	AppHost        string         `toml:"host"`
	Port           string         `toml:"port"`
	Backend        string         `toml:"backend"`
	LogLevel       string         `toml:"log_level"`
	MaxUploadBytes int            `toml:"max_upload_bytes"`
	Database       DatabaseConfig `toml:"database"`
	MinIO          MinIOConfig    `toml:"minio"`
	Redis          RedisConfig    `toml:"redis"`
	RabbitMQ       RabbitMQConfig `toml:"rabbitmq"`
	Auth           AuthConfig     `toml:"auth"`
	Users          []SeedUser     `toml:"users"`
}

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Load builds the configuration. A .env file can be auto-loaded by importing
// _ "github.com/joho/godotenv/autoload"; real environment variables take precedence
// over both the file and the defaults.
func Load() (*AppConfig, error) {
	cfg := defaultConfig()

	path := getEnv("CONFIG_FILE", "configs/edms.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	overrideByEnv(cfg)

	if cfg.Backend != BackendPostgres && cfg.Backend != BackendMemory {
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	return cfg, nil
}

// PresignExpiry returns the lifetime of presigned download URLs.
func (c *AppConfig) PresignExpiry() time.Duration {
	return time.Duration(c.MinIO.PresignExpirySec) * time.Second
}

// ViewTTL returns how long cached document snapshots live.
func (c *AppConfig) ViewTTL() time.Duration {
	return time.Duration(c.Redis.ViewTTLSec) * time.Second
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Env:            "development",
		AppHost:        "localhost:8080",
		Port:           "8080",
		Backend:        BackendPostgres,
		LogLevel:       "info",
		MaxUploadBytes: 32 << 20,
		Database: DatabaseConfig{
			Port:               "5432",
			SSLMode:            "disable",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		MinIO: MinIOConfig{
			Bucket:           "documents",
			PresignExpirySec: 900,
		},
		Redis: RedisConfig{
			ViewTTLSec: 60,
		},
		RabbitMQ: RabbitMQConfig{
			EventsQueue: "edms.document.events",
		},
	}
}

func overrideByEnv(cfg *AppConfig) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.AppHost = getEnv("APP_HOST", cfg.AppHost)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Backend = getEnv("APP_BACKEND", cfg.Backend)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MaxUploadBytes = getEnvInt("APP_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", cfg.Database.ConnMaxLifetimeSec)

	cfg.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", cfg.MinIO.Endpoint)
	cfg.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", cfg.MinIO.AccessKey)
	cfg.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", cfg.MinIO.SecretKey)
	cfg.MinIO.Bucket = getEnv("MINIO_BUCKET", cfg.MinIO.Bucket)
	cfg.MinIO.UseSSL = getEnvBool("MINIO_USE_SSL", cfg.MinIO.UseSSL)
	cfg.MinIO.PresignDownloads = getEnvBool("MINIO_PRESIGN_DOWNLOADS", cfg.MinIO.PresignDownloads)
	cfg.MinIO.PresignExpirySec = getEnvInt("MINIO_PRESIGN_EXPIRY_SEC", cfg.MinIO.PresignExpirySec)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.ViewTTLSec = getEnvInt("REDIS_VIEW_TTL_SEC", cfg.Redis.ViewTTLSec)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.EventsQueue = getEnv("RABBITMQ_EVENTS_QUEUE", cfg.RabbitMQ.EventsQueue)
	cfg.RabbitMQ.RunWorker = getEnvBool("RABBITMQ_RUN_WORKER", cfg.RabbitMQ.RunWorker)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
