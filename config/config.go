// Package config provides configuration management for the account service.
// It handles loading and validation of configuration values from environment variables,
// with support for required variables, default values, and collective error reporting.
// Configuration is read once at startup and treated as read-only afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Storage drivers understood by the image store.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// PoolConfig represents configuration for the database connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// DSN returns a postgres URL, usable by both pgx and golang-migrate.
func (c *PoolConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DBName,
	)
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	AccessTokenSecret string // Secret key for signing session tokens
	BcryptCost        int
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port      string // Port for the HTTP server
	PublicURL string // Base URL used to build public image links
}

// StorageConfig selects where uploaded profile images live.
type StorageConfig struct {
	Driver     string // "local" or "s3"
	ImagesDir  string // Directory for the local driver
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Workers    int // Background workers persisting/removing image files
	QueueDepth int
}

// LogConfig controls the logrus logger.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	DB             *PoolConfig
	Auth           *AuthConfig
	Server         *ServerConfig
	Storage        *StorageConfig
	Log            *LogConfig
	MigrationsPath string
}

// Helper function to get a required environment variable.
// Appends an error to the errors slice if the variable is not set or empty.
func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

// Helper function to get an optional environment variable with a default string value.
func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get an optional environment variable parsed as an int.
// Uses defaultValue if not set or if parsing fails. Appends an error if parsing fails.
func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

// clampPoolSize keeps the pool size between 5 and 100.
func clampPoolSize(size int) int {
	if size < 5 {
		return 5
	}
	if size > 100 {
		return 100
	}
	return size
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
// It collects all errors encountered during loading and returns a single error if any exist.
// There is no fallback for ACCESS_TOKEN_SECRET: the process refuses to start without it.
func LoadConfig() (*AppConfig, error) {
	var errors []string

	db := &PoolConfig{
		User:     getRequiredEnv("DB_USER", &errors),
		Password: getRequiredEnv("DB_PASSWORD", &errors),
		DBName:   getRequiredEnv("DB_NAME", &errors),
		Host:     getOptionalEnv("DB_HOST", "localhost"),
		Port:     getOptionalEnvInt("DB_PORT", 5432, &errors),
		MaxSize:  clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errors)),
	}

	auth := &AuthConfig{
		AccessTokenSecret: getRequiredEnv("ACCESS_TOKEN_SECRET", &errors),
		BcryptCost:        getOptionalEnvInt("BCRYPT_COST", 10, &errors),
	}

	port := getOptionalEnv("PORT", "5000")
	server := &ServerConfig{
		Port:      port,
		PublicURL: strings.TrimRight(getOptionalEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
	}

	storage := &StorageConfig{
		Driver:     strings.ToLower(getOptionalEnv("STORAGE_DRIVER", StorageLocal)),
		ImagesDir:  getOptionalEnv("IMAGES_DIR", "./public/images"),
		Region:     getOptionalEnv("S3_REGION", "auto"),
		Endpoint:   getOptionalEnv("S3_ENDPOINT", ""),
		Workers:    getOptionalEnvInt("FILE_WORKERS", 2, &errors),
		QueueDepth: getOptionalEnvInt("FILE_QUEUE_DEPTH", 64, &errors),
	}
	switch storage.Driver {
	case StorageLocal:
	case StorageS3:
		storage.Bucket = getRequiredEnv("S3_BUCKET", &errors)
		storage.AccessKey = getRequiredEnv("S3_ACCESS_KEY_ID", &errors)
		storage.SecretKey = getRequiredEnv("S3_SECRET_ACCESS_KEY", &errors)
	default:
		errors = append(errors, fmt.Sprintf("invalid value for STORAGE_DRIVER: expected 'local' or 's3', got '%s'", storage.Driver))
	}

	logCfg := &LogConfig{
		Level:  getOptionalEnv("LOG_LEVEL", "info"),
		Format: getOptionalEnv("LOG_FORMAT", "json"),
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		DB:             db,
		Auth:           auth,
		Server:         server,
		Storage:        storage,
		Log:            logCfg,
		MigrationsPath: getOptionalEnv("MIGRATIONS_PATH", "./db/migrations"),
	}, nil
}
