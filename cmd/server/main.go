// Package main initializes and starts the catalog REST server, setting up
// configuration, logging, storage, seeding, the orphan sweeper and the
// HTTP router.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/moviecatalog/internal/config"
	"github.com/atinyakov/moviecatalog/internal/db"
	"github.com/atinyakov/moviecatalog/internal/logger"
	"github.com/atinyakov/moviecatalog/internal/models"
	"github.com/atinyakov/moviecatalog/internal/repository"
	"github.com/atinyakov/moviecatalog/internal/seed"
	"github.com/atinyakov/moviecatalog/internal/server/handler/http"
	"github.com/atinyakov/moviecatalog/internal/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open storage", zap.Error(err))
	}
	defer closeRepo()

	svc := service.NewResourceService(repo)

	snapshot, err := loadSeed(options.SeedFile)
	if err != nil {
		zapLogger.Fatal("cannot load seed", zap.Error(err))
	}
	seeded, err := svc.Seed(ctx, snapshot, options.Reset)
	if err != nil {
		zapLogger.Fatal("cannot seed storage", zap.Error(err))
	}
	if seeded {
		zapLogger.Info("storage seeded", zap.Bool("reset", options.Reset))
	}

	// Sweeping through the service keeps its list cache in step.
	db.StartOrphanSweeper(ctx, svc, time.Minute, zapLogger)

	resourceHandler := &http.ResourceHandler{ResourceService: svc}
	router := http.NewRouter(resourceHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore picks PostgreSQL when a DSN is configured and the JSON data file
// otherwise.
func openStore(options *config.Options, log *zap.Logger) (service.RecordRepository, func(), error) {
	if options.DatabaseDSN != "" {
		conn, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using postgres storage")
		return repository.NewPostgresRecordRepository(conn), func() { _ = conn.Close() }, nil
	}

	repo, err := repository.NewFileRecordRepository(afero.NewOsFs(), options.DataFile)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using file storage", zap.String("path", options.DataFile))
	return repo, func() {}, nil
}

func loadSeed(path string) (models.Snapshot, error) {
	if path == "" {
		return seed.Load()
	}
	return seed.LoadFile(afero.NewOsFs(), path)
}
