// Package app initializes and runs the storage engine. It opens the
// database, runs migrations, selects the physical storage backend, wires
// the services, starts the background trash reaper and serves Prometheus
// metrics until shut down.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudcrate/cloudcrate/internal/config"
	"github.com/cloudcrate/cloudcrate/internal/logging"
	"github.com/cloudcrate/cloudcrate/internal/metrics"
	"github.com/cloudcrate/cloudcrate/internal/repositories/repomanager"
	"github.com/cloudcrate/cloudcrate/internal/services"
	"github.com/cloudcrate/cloudcrate/internal/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	Tree    *services.TreeService
	Size    *services.SizeService
	Quota   *services.QuotaService
	Archive *services.ArchiveService
	reaper  *services.TrashReaper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := newAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.InitStorageMetrics(nil)

	size := services.NewSizeService(db, repos)
	quota := services.NewQuotaService(db, repos, size, m)
	tree := services.NewTreeService(db, repos, store, quota, logger)
	archive := services.NewArchiveService(db, repos, store, size, logger, m, cfg.ArchiveMaxBytes, cfg.ArchiveMaxFiles)
	reaper := services.NewTrashReaper(db, repos, store, logger, m, cfg.TrashRetention, cfg.ReaperInterval, cfg.ReaperBatchSize)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		Tree:    tree,
		Size:    size,
		Quota:   quota,
		Archive: archive,
		reaper:  reaper,
	}, nil
}

// newAdapter selects the physical backend from config.
func newAdapter(ctx context.Context, cfg *config.Config) (storage.Adapter, error) {
	switch cfg.StorageBackend {
	case "disk":
		return storage.NewDiskAdapter(storage.NewResolver(cfg.StorageRoot)), nil
	case "s3":
		return storage.NewS3Adapter(ctx, storage.NewResolver(""), storage.S3Options{
			User:         cfg.S3RootUser,
			Password:     cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	app.logger.Info(ctx, "metrics server listening", "addr", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reaper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
