package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"

	"MatchSync/internal/adapter/matchapi"
	"MatchSync/internal/api"
	"MatchSync/internal/config"
	"MatchSync/internal/model"
	"MatchSync/internal/repository"
	"MatchSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ensureDatabaseExists creates the MatchSync database through the postgres
// maintenance database on first start. dsn must be URL form.
func ensureDatabaseExists(ctx context.Context, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbname := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if dbname == "" || dbname == "postgres" {
		return nil
	}
	u.Path = "/postgres"
	admin, err := sql.Open("pgx", u.String())
	if err != nil {
		return err
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var exists bool
	if err := admin.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbname).Scan(&exists); err != nil {
		return fmt.Errorf("look up database %s: %w", dbname, err)
	}
	if exists {
		return nil
	}
	_, err = admin.ExecContext(ctx, `CREATE DATABASE "`+strings.ReplaceAll(dbname, `"`, `""`)+`"`)
	return err
}

func openDatabase(cfg *config.DatabaseConfig, logrusLogger *logrus.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	if err != nil && (strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "3D000")) {
		logrusLogger.Info("target database missing, creating it")
		if e := ensureDatabaseExists(context.Background(), cfg.DSN); e != nil {
			return nil, fmt.Errorf("create database: %w", e)
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

func main() {
	// 1. configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2. logging
	logrusLogger := logrus.New()
	logrusLogger.SetFormatter(&logrus.JSONFormatter{})
	logrusLogger.SetLevel(logrus.InfoLevel)
	if cfg.Server.Mode == gin.DebugMode {
		logrusLogger.SetLevel(logrus.DebugLevel)
	}
	logrusLogger.Info("config loaded")

	// 3. PostgreSQL, created on demand
	db, err := openDatabase(&cfg.Database, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("database: %v", err)
	}
	logrusLogger.Info("PostgreSQL connected")

	// 4. schema and read views
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		logrusLogger.Fatalf("migrate schema: %v", err)
	}
	gateway := repository.NewGateway(db, cfg.Sync.TrackedTeamID, cfg.Sync.BatchSize, logrusLogger)
	if err := gateway.EnsureViews(context.Background()); err != nil {
		logrusLogger.Fatalf("ensure views: %v", err)
	}
	logrusLogger.Info("schema ready")

	// 5. upstream client and orchestrator
	client, err := matchapi.NewClient(&cfg.Upstream, logrusLogger)
	if err != nil {
		logrusLogger.Fatalf("upstream client: %v", err)
	}
	syncService := service.NewSyncService(client, gateway, cfg, logrusLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 6. in-process scheduler
	var scheduler *service.Scheduler
	if cfg.Sync.Enabled {
		scheduler, err = service.NewScheduler(syncService, cfg.Sync.Interval, logrusLogger)
		if err != nil {
			logrusLogger.Fatalf("scheduler: %v", err)
		}
		scheduler.Start()
	}

	// 7. admin server
	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(cfg, syncService, logrusLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrusLogger.Infof("admin server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrusLogger.Fatalf("admin server: %v", err)
		}
	}()

	<-ctx.Done()
	logrusLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrusLogger.WithError(err).Warn("admin server shutdown")
	}
	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			logrusLogger.WithError(err).Warn("scheduler shutdown")
		}
	}
}
