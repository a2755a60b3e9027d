package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"medtech-planner/internal/client/processing"
	"medtech-planner/internal/config"
	"medtech-planner/internal/domain"
	form_h "medtech-planner/internal/http-server/handler/form"
	"medtech-planner/internal/http-server/router"
	minio_repo "medtech-planner/internal/repository/result/cloud/minio"
	"medtech-planner/internal/repository/result/memory"
	form_uc "medtech-planner/internal/usecase/form"

	"github.com/wb-go/wbf/zlog"
)

type resultStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (*domain.Blob, error)
	Delete(ctx context.Context, key string) error
}

type App struct {
	cfg        *config.Config
	server     *http.Server
	logger     *zlog.Zerolog
	controller *form_uc.Controller
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	store, err := newResultStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.ProcessingEndpoint()
	client, err := processing.New(endpoint, store,
		processing.WithTimeout(cfg.Processing.Timeout),
		processing.WithMaxResponseSize(cfg.Processing.MaxResponseSize),
		processing.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create processing client: %w", err)
	}

	controller := form_uc.NewController(client, store, logger)

	formHandler := form_h.NewFormHandler(controller, store, logger, cfg.Upload.MaxSize)

	h := &router.Handler{
		FormHandler: formHandler,
	}

	workDir, _ := os.Getwd()
	mux := router.SetupRouter(h, filepath.Join(workDir, "static"))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info().
		Str("env", cfg.Env).
		Str("endpoint", endpoint).
		Str("storage", cfg.Storage.Driver).
		Msg("Application configured")

	return &App{
		cfg:        cfg,
		server:     server,
		logger:     logger,
		controller: controller,
	}, nil
}

func newResultStore(cfg *config.Config, logger *zlog.Zerolog) (resultStore, error) {
	if cfg.Storage.Driver != "minio" {
		return memory.NewStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	repo, err := minio_repo.NewMinIORepository(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create result repository: %w", err)
	}
	return repo, nil
}

func (a *App) Run() error {
	a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.handleSignals(cancel)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error().Err(err).Msg("Server error")
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Server shutdown failed")
		}

		a.controller.Close()

		a.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

func (a *App) handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	cancel()
}
