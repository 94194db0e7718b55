// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the required runtime settings of the HTTP service.
type Config struct {
	Env            string
	Port           string
	LogLevel       string
	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Load reads a .env file when present and then the process environment.
// Variables already set in the environment win over the file. Missing
// required keys stop the process.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
	}
}

// IsProd reports whether the service runs in production mode.
func (c Config) IsProd() bool { return c.Env == "prod" }

// DSN renders the MySQL data source name. parseTime maps DATETIME columns
// to time.Time and loc=UTC keeps them consistent.
func (c Config) DSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth = c.DBUser + ":" + c.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, c.DBHost, c.DBPort, c.DBName)
}

func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
