package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig database connection settings.
// Driver selects the sql driver: "postgres" (default) or "sqlite".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Path     string // sqlite file path or ":memory:"
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GetDSN returns the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv overrides fields from <prefix>_* environment variables.
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if driver := os.Getenv(prefix + "_DRIVER"); driver != "" {
		c.Driver = driver
	}
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	if path := os.Getenv(prefix + "_PATH"); path != "" {
		c.Path = path
	}
}

// LoadFromEnv overrides fields from <prefix>_* environment variables.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.DB = n
		}
	}
}
