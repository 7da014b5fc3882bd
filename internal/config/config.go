// Package config handles loading and validating configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the dark pool API.
type Config struct {
	// HTTP server
	Port string

	// Relational pointer store
	DBPath string

	// Auth
	JWTSecret string

	// Solana RPC
	SolanaRPCURL string

	// Blind store gateway; empty selects the in-process store
	BlindStoreURL     string
	BlindStoreTTLDays int

	// Oracle
	OracleReadTimeout time.Duration

	// Logging
	Debug bool
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "darkpool.db"),

		JWTSecret: getEnv("JWT_SECRET", "darkpool-secret-key"),

		SolanaRPCURL: getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),

		BlindStoreURL:     getEnv("BLIND_STORE_URL", ""),
		BlindStoreTTLDays: getEnvInt("BLIND_STORE_TTL_DAYS", 30),

		OracleReadTimeout: time.Duration(getEnvInt("ORACLE_READ_TIMEOUT_SECONDS", 5)) * time.Second,

		Debug: getEnv("DEBUG", "") == "true",
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
