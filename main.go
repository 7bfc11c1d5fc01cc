package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/net4255/visitlog/internal/config"
	"github.com/net4255/visitlog/internal/core"
	httpapi "github.com/net4255/visitlog/internal/http"
	"github.com/net4255/visitlog/internal/store"
)

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg := config.Load()

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	var backendFlag, dsnFlag string
	flag.StringVar(&backendFlag, "backend", "", "store backend: mongo, sqlite or none (overrides env STORE_BACKEND)")
	flag.StringVar(&dsnFlag, "dsn", "", "SQLite DSN (overrides env SQLITE_DSN)")
	flag.Parse()
	if backendFlag != "" {
		if !config.ValidBackend(backendFlag) {
			log.Fatal().Str("backend", backendFlag).Msg("unknown store backend")
		}
		cfg.StoreBackend = strings.ToLower(backendFlag)
	}
	if dsnFlag != "" {
		cfg.SQLiteDSN = dsnFlag
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("open store")
	}

	var visits *core.VisitLogger
	if st != nil {
		visits = core.NewVisitLogger(st, core.Options{
			Timeout:      cfg.StoreTimeout,
			DefaultLimit: cfg.VisitsLimit,
			MaxLimit:     cfg.VisitsMaxLimit,
		})
		// Unreachable stores are not fatal; requests degrade instead.
		if err := visits.Ping(context.Background()); err != nil {
			log.Warn().Err(err).Str("backend", cfg.StoreBackend).Msg("store not reachable at startup")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(ctx, cfg, visits),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Port).Str("backend", cfg.StoreBackend).Str("render", cfg.RenderMode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if st != nil {
		if err := st.Close(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}
	log.Info().Msg("bye")
}

// openStore returns nil without error for the "none" backend.
func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendNone:
		return nil, nil
	case config.BackendSQLite:
		db, err := sql.Open("sqlite3", cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		// Connection pool tuning
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Migrate schema
		if err := store.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		return store.NewSQLite(db), nil
	default:
		return store.NewMongo(store.MongoConfig{
			Host:       cfg.MongoHost,
			Port:       cfg.MongoPort,
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
			Timeout:    cfg.StoreTimeout,
		})
	}
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
