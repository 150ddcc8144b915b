// Package httpserver runs an http.Server until its context ends and then drains it
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/config"
)

const defaultShutdownTimeout = 30 * time.Second

// ShutdownHook runs after the listener is closed, within the shutdown deadline
type ShutdownHook func(ctx context.Context) error

// New builds an http.Server from the server config
func New(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ServeAndWait starts srv and blocks until ctx is canceled or the server fails.
// It then shuts the server down and runs hooks in order, all bounded by shutdownTimeout.
// A server failure is returned after the shutdown attempt.
func ServeAndWait(ctx context.Context, logger *zap.Logger, srv *http.Server, shutdownTimeout time.Duration, hooks ...ShutdownHook) error {
	if srv == nil {
		return errors.New("nil http server")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("HTTP server error", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server", zap.Duration("timeout", shutdownTimeout))
	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		logger.Error("HTTP server shutdown error", zap.Error(shutdownErr))
		shutdownErr = fmt.Errorf("http shutdown: %w", shutdownErr)
	}

	for _, hook := range hooks {
		if err := hook(shutdownCtx); err != nil {
			logger.Error("Shutdown hook failed", zap.Error(err))
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	if runErr != nil {
		return errors.Join(fmt.Errorf("http server failed: %w", runErr), shutdownErr)
	}
	if shutdownErr != nil {
		return shutdownErr
	}

	logger.Info("HTTP server stopped")
	return nil
}
