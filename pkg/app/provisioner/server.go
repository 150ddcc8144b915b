// Package provisioner implements app.Runner for the provisioning service process.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/app/httpserver"
	"github.com/chainsafe/optimal-wallet/pkg/artifacts"
	"github.com/chainsafe/optimal-wallet/pkg/auth"
	"github.com/chainsafe/optimal-wallet/pkg/config"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum"
	"github.com/chainsafe/optimal-wallet/pkg/ethereum/contracts"
	"github.com/chainsafe/optimal-wallet/pkg/keys"
	"github.com/chainsafe/optimal-wallet/pkg/pgutil"
	"github.com/chainsafe/optimal-wallet/pkg/provision"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	connectTimeout               = 30 * time.Second
)

// Server holds configuration for the provisioner process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new provisioner Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run connects to the chain and the run store, then serves the provisioning API until an
// OS shutdown signal is received. Accepted runs are drained before the process exits.
func (s *Server) Run() error {
	if s.cfg == nil {
		return errors.New("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting wallet provisioning service",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	keyring, err := keys.NewKeyringFromConfig(&cfg.Keys)
	if err != nil {
		return fmt.Errorf("load signer keys: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ethClient, err := ethereum.NewClient(connectCtx, &cfg.Ethereum, keyring, logger)
	if err != nil {
		return fmt.Errorf("initialize ethereum client: %w", err)
	}
	defer ethClient.Close()

	orchestrator, err := s.newOrchestrator(ethClient, logger)
	if err != nil {
		return err
	}

	store, db, err := s.openStore(connectCtx, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	svc := provision.NewLog(provision.NewService(orchestrator, store, provision.ServiceConfig{
		MaxConcurrentRuns: cfg.Provisioning.MaxConcurrentRuns,
		RunTimeout:        cfg.Provisioning.RunTimeout,
		ListLimit:         cfg.Provisioning.ListLimit,
	}, logger), logger)

	var ready func(context.Context) error
	if db != nil {
		ready = db.PingContext
	}

	router := newRouter(cfg, svc, ready, logger)
	srv := httpserver.New(&cfg.Server, router)

	return httpserver.ServeAndWait(ctx, logger, srv, cfg.Shutdown.Timeout, svc.Shutdown)
}

func (s *Server) newOrchestrator(conn ethereum.Connection, logger *zap.Logger) (*provision.Orchestrator, error) {
	var opts []artifacts.Option
	if s.cfg.Artifacts.Dir != "" {
		opts = append(opts, artifacts.WithArtifactDir(s.cfg.Artifacts.Dir))
	} else {
		logger.Warn("No artifact directory configured, deployments will fail")
	}
	provider, err := artifacts.NewProvider(opts...)
	if err != nil {
		return nil, fmt.Errorf("load contract artifacts: %w", err)
	}

	backend, err := contracts.NewBackend(conn, contracts.NewRegistry(provider), logger,
		ethereum.WithPollInterval(s.cfg.Ethereum.ReceiptPollInterval),
		ethereum.WithReceiptTimeout(s.cfg.Ethereum.ReceiptTimeout))
	if err != nil {
		return nil, fmt.Errorf("create contract backend: %w", err)
	}

	return provision.NewOrchestrator(backend, logger)
}

// openStore returns a postgres backed store when a database is configured and an in-memory
// store otherwise. The returned db is nil for the in-memory store.
func (s *Server) openStore(ctx context.Context, logger *zap.Logger) (runstore.Store, *bun.DB, error) {
	if !s.cfg.Database.Enabled() {
		logger.Warn("No database configured, provisioning runs are kept in memory")
		return runstore.NewMemoryStore(), nil, nil
	}

	db, err := pgutil.ConnectDB(ctx, &s.cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect run store: %w", err)
	}
	return runstore.NewStore(db), db, nil
}

func newRouter(cfg *config.Config, svc provision.Service, ready func(context.Context) error, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			if err := ready(req.Context()); err != nil {
				logger.Warn("Readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Middleware(logger))
		}
		provision.RegisterRoutes(r, svc, logger)
	})

	return r
}
