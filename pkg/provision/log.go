package provision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

const serviceName = "ProvisioningService"

// logService wraps Service with logging of every call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the provisioning Service.
// It logs method entry and exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logService{svc: svc, logger: logger}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)))
	if err != nil {
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
		return
	}
	ls.logger.Info(method+" completed", fields...)
}

// Submit wraps the service method with logging
func (ls *logService) Submit(ctx context.Context, plan *Plan) (run *runstore.Run, err error) {
	start := time.Now()
	fields := []zap.Field{}
	if plan != nil {
		fields = append(fields,
			zap.Stringer("deployer", plan.Deployer),
			zap.Stringer("worker", plan.Worker),
			zap.Int("owners", len(plan.Wallet.Owners)),
			zap.Int("session_keys", len(plan.Wallet.SessionKeys)))
	}
	ls.logger.Info("Submit started", append(fields,
		zap.String("service", serviceName),
		zap.String("method", "Submit"))...)

	defer func() {
		if run != nil {
			fields = append(fields, zap.String("run_id", run.ID))
		}
		ls.done("Submit", start, err, fields...)
	}()

	return ls.svc.Submit(ctx, plan)
}

// Get wraps the service method with logging
func (ls *logService) Get(ctx context.Context, id string) (run *runstore.Run, err error) {
	start := time.Now()
	defer func() {
		fields := []zap.Field{zap.String("run_id", id)}
		if run != nil {
			fields = append(fields, zap.String("status", run.Status))
		}
		ls.done("Get", start, err, fields...)
	}()
	return ls.svc.Get(ctx, id)
}

// List wraps the service method with logging
func (ls *logService) List(ctx context.Context, limit int) (runs []*runstore.Run, err error) {
	start := time.Now()
	defer func() {
		ls.done("List", start, err, zap.Int("limit", limit), zap.Int("count", len(runs)))
	}()
	return ls.svc.List(ctx, limit)
}

// Shutdown wraps the service method with logging
func (ls *logService) Shutdown(ctx context.Context) (err error) {
	start := time.Now()
	ls.logger.Info("Shutdown started", zap.String("service", serviceName))
	defer func() {
		ls.done("Shutdown", start, err)
	}()
	return ls.svc.Shutdown(ctx)
}
