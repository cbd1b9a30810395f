package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Release export configuration
	SourceRoot string // root of the platform source tree consumed by source exports
	ExportDir  string // where generated archives and manifests are stored

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string
}

// Load loads configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments use the process environment.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		DBType:            getEnv("DB_TYPE", "mysql"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		SourceRoot:        getEnv("SOURCE_ROOT", ""),
		ExportDir:         getEnv("EXPORT_DIR", "exports"),
		AuthzURL:          getEnv("AUTHZ_URL", ""),
		AuthzClientID:     getEnv("AUTHZ_CLIENT_ID", ""),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" && cfg.DBType != "sqlite" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.AuthzURL == "" {
		return nil, fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
