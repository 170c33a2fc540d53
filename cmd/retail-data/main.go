package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retail-backoffice/common/database"
	"retail-backoffice/common/logger"
	commonredis "retail-backoffice/common/redis"
	"retail-backoffice/internal/config"
	"retail-backoffice/internal/domain"
	httpapi "retail-backoffice/internal/http"
	"retail-backoffice/internal/metadata"
	"retail-backoffice/internal/repository"
	"retail-backoffice/internal/service"
	"retail-backoffice/internal/store"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	flags := pflag.NewFlagSet("retail-data", pflag.ExitOnError)
	addr := flags.String("addr", cfg.HTTP.Addr, "HTTP listen address (overrides HTTP_ADDR)")
	schema := flags.String("schema", cfg.SchemaPath, "entity schema YAML file (overrides SCHEMA_PATH)")
	_ = flags.Parse(os.Args[1:])
	cfg.HTTP.Addr = *addr
	cfg.SchemaPath = *schema

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "retail-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("retail-data stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if !cfg.DBEnabled {
		return fmt.Errorf("DB_ENABLED=false: retail-data needs a database")
	}
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver), zap.String("dialect", cfg.Dialect))

	registry, err := domain.LoadSchema(cfg.SchemaPath)
	if err != nil {
		return err
	}
	log.Info("Schema loaded", zap.Strings("entities", registry.Names()))

	redisClient := commonredis.NewRedisClient(&cfg.Redis)
	defer commonredis.Close(redisClient)
	cache := store.NewAccessCache(store.NewRedisKV(redisClient), cfg.Access.CacheTTL)

	// Permission rows may have changed while the service was down.
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	if err := commonredis.Ping(startCtx, redisClient); err != nil {
		log.Warn("Redis unavailable, access cache and events will fail open", zap.Error(err))
	} else if n, err := cache.Flush(startCtx); err != nil {
		log.Warn("Failed to flush access cache", zap.Error(err))
	} else {
		log.Info("Access cache flushed", zap.Int("keys", n))
	}
	cancelStart()

	router, err := newRouter(context.Background(), cfg, db, registry, redisClient, cache, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return service.NewServer(cfg.HTTP.Addr, router, log).Run(ctx, 10*time.Second)
}

// newRouter wires the repositories and services behind the HTTP routes.
func newRouter(ctx context.Context, cfg *config.Config, db *sql.DB, registry *metadata.Registry, redisClient *commonredis.Client, cache *store.AccessCache, log *zap.Logger) (*httpapi.Router, error) {
	accessRepo, err := repository.NewAccessRepository(db, cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if sqliteRepo, ok := accessRepo.(*repository.SQLiteAccessRepository); ok {
		if err := sqliteRepo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}

	records := repository.NewSQLRepository(db, cfg.Dialect, log)
	lists := service.NewListService(registry, records, cfg.Pagination.PerPage, cfg.Dialect, log)
	accesses := service.NewAccessService(accessRepo, cache, redisClient, cfg.Access.EventStream, log)

	router := httpapi.NewRouter(log)
	router.RegisterEntityRoutes(httpapi.NewEntityHandler(lists, accesses, log))
	router.RegisterAbilityRoutes(httpapi.NewAbilityHandler(accesses, log))
	router.RegisterMetricsRoute()
	router.RegisterHealthRoute()
	return router, nil
}
