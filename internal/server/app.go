// Package server wires the ecomarket components together and runs the
// HTTP API and the gRPC health endpoint until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/dmitrijs2005/ecomarket/internal/server/auth"
	"github.com/dmitrijs2005/ecomarket/internal/server/config"
	"github.com/dmitrijs2005/ecomarket/internal/server/httpapi"
	"github.com/dmitrijs2005/ecomarket/internal/server/metrics"
	"github.com/dmitrijs2005/ecomarket/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/ecomarket/internal/server/services"
	"github.com/dmitrijs2005/ecomarket/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/ecomarket/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	flushLogger func()
	db          *sql.DB
	authService *services.AuthService
	handler     http.Handler
}

// NewApp connects to the database, applies migrations, seeds the built-in
// roles and the administrator, and builds the HTTP handler.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, flush, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		flush()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		flush()
		return nil, err
	}
	app.flushLogger = flush
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	hasher := auth.NewBcryptHasher(c.BcryptCost)
	tokens := auth.NewTokenService([]byte(c.SecretKey), c.TokenValidityDuration)
	authService := services.NewAuthService(db, rm, hasher, tokens, logger.With("module", "auth_service"))

	if _, err := authService.Seed(ctx, services.AdminAccount{
		Username: c.AdminUsername,
		Email:    c.AdminEmail,
		Password: c.AdminPassword,
	}); err != nil {
		return nil, fmt.Errorf("seed error: %w", err)
	}

	images, err := storage.NewLocalStore(c.UploadDir, logger.With("module", "image_store"))
	if err != nil {
		return nil, fmt.Errorf("upload dir error: %w", err)
	}
	if c.S3Bucket != "" {
		mirror, err := storage.NewS3Mirror(ctx, storage.S3Settings{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 mirror error: %w", err)
		}
		images = images.WithMirror(mirror)
		logger.Info(ctx, "image mirror enabled", "bucket", c.S3Bucket)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "ecomarket"),
	)

	handler := httpapi.NewRouter(&httpapi.Deps{
		Auth:            authService,
		Images:          images,
		Policy:          storage.UploadPolicy{MaxSize: c.MaxUploadSize},
		PublicImagePath: c.PublicImagePath,
		Logger:          logger.With("module", "http"),
		Metrics:         metrics.NewCollector(reg),
		Gatherer:        reg,
		Health:          db,
	})

	return &App{
		config:      c,
		logger:      logger,
		flushLogger: func() {},
		db:          db,
		authService: authService,
		handler:     handler,
	}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// releases the database and flushes the logger.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
	app.flushLogger()
}
