// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Reports
	OverdueThresholdDays int
	TopBorrowedLimit     int

	// Rate Limit（req/min単位）
	RateLimitGeneral     int
	RateLimitCirculation int

	// Worker
	WorkerInterval time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OverdueThresholdDays = getEnvInt("OVERDUE_THRESHOLD_DAYS", 14)
	cfg.TopBorrowedLimit = getEnvInt("TOP_BORROWED_LIMIT", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCirculation = getEnvInt("RATE_LIMIT_CIRCULATION", 30)
	cfg.WorkerInterval = getEnvDuration("WORKER_INTERVAL", 10*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.OverdueThresholdDays <= 0 {
		return nil, fmt.Errorf("OVERDUE_THRESHOLD_DAYS must be positive, got %d", cfg.OverdueThresholdDays)
	}
	if cfg.TopBorrowedLimit <= 0 {
		return nil, fmt.Errorf("TOP_BORROWED_LIMIT must be positive, got %d", cfg.TopBorrowedLimit)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
