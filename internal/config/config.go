package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "retail-backoffice/common/config"
)

// Config retail-data (HTTP API) settings.
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	// Dialect drives SQL rendering and the date-difference filter
	// operators; defaults to the database driver.
	Dialect string
	Redis   commoncfg.RedisConfig
	Log     struct {
		Level  string
		Format string
	}
	Pagination struct {
		PerPage int
	}
	Access struct {
		CacheTTL    time.Duration
		EventStream string
	}
	// SchemaPath is an entity schema file; empty uses the embedded one.
	SchemaPath string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Driver:   "postgres",
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "retail",
		SSLMode:  "disable",
		Path:     ":memory:",
	}
	cfg.Database.LoadFromEnv("DB")
	cfg.Dialect = getEnv("DB_DIALECT", cfg.Database.Driver)

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Pagination.PerPage = parseInt(getEnv("APP_PAGINATION_PER_PAGE", "25"), 25)

	cfg.Access.CacheTTL = time.Duration(parseInt(getEnv("ACCESS_CACHE_TTL", "300"), 300)) * time.Second
	cfg.Access.EventStream = getEnv("ACCESS_EVENT_STREAM", "access:events")

	cfg.SchemaPath = getEnv("SCHEMA_PATH", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
