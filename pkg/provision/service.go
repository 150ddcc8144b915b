package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/optimal-wallet/internal/metrics"
	apperrors "github.com/chainsafe/optimal-wallet/pkg/app/errors"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ErrServiceClosed is returned by Submit after Shutdown
var ErrServiceClosed = errors.New("provisioning service is shutting down")

// Service accepts provisioning plans and runs them in the background
type Service interface {
	// Submit stores a pending run for plan and starts it. It returns before any transaction is sent.
	Submit(ctx context.Context, plan *Plan) (*runstore.Run, error)
	Get(ctx context.Context, id string) (*runstore.Run, error)
	List(ctx context.Context, limit int) ([]*runstore.Run, error)
	// Shutdown rejects new plans and waits for accepted runs. When ctx ends first the
	// remaining runs are canceled.
	Shutdown(ctx context.Context) error
}

// Runner executes one plan. *Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, plan *Plan, observer Observer) (*Result, error)
}

// ServiceConfig bounds the background runs
type ServiceConfig struct {
	MaxConcurrentRuns int
	// RunTimeout bounds one run. Zero disables the bound.
	RunTimeout time.Duration
	ListLimit  int
}

type service struct {
	runner Runner
	store  runstore.Store
	logger *zap.Logger
	cfg    ServiceConfig

	baseCtx context.Context
	cancel  context.CancelFunc
	slots   chan struct{}

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	now func() time.Time
}

// NewService creates a provisioning service. Runs are bound to an internal context that is
// canceled only by Shutdown, never by the submitting request.
func NewService(runner Runner, store runstore.Store, cfg ServiceConfig, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 1
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		runner:  runner,
		store:   store,
		logger:  logger.Named("provision"),
		cfg:     cfg,
		baseCtx: ctx,
		cancel:  cancel,
		slots:   make(chan struct{}, cfg.MaxConcurrentRuns),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Submit(ctx context.Context, plan *Plan) (*runstore.Run, error) {
	if err := plan.Validate(); err != nil {
		return nil, apperrors.BadRequestError(err, err.Error())
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to encode plan: %w", err))
	}

	now := s.now()
	run := &runstore.Run{
		ID:        uuid.NewString(),
		Status:    runstore.StatusPending,
		Plan:      raw,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// the run is counted before the lock is released so Shutdown always waits for it
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.UnavailableError(ErrServiceClosed, ErrServiceClosed.Error())
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.store.CreateRun(ctx, run); err != nil {
		s.wg.Done()
		return nil, apperrors.DependencyError(err, "failed to store run")
	}

	go s.execute(run.ID, plan)

	cp := *run
	return &cp, nil
}

func (s *service) Get(ctx context.Context, id string) (*runstore.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.BadRequestError(err, "invalid run id")
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "run not found")
		}
		return nil, apperrors.DependencyError(err, "failed to load run")
	}
	return run, nil
}

func (s *service) List(ctx context.Context, limit int) ([]*runstore.Run, error) {
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, apperrors.DependencyError(err, "failed to list runs")
	}
	return runs, nil
}

func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached, canceling in-flight runs")
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *service) execute(id string, plan *Plan) {
	defer s.wg.Done()

	// store writes must outlive run cancellation
	storeCtx := context.WithoutCancel(s.baseCtx)
	logger := s.logger.With(zap.String("run_id", id))

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-s.baseCtx.Done():
		s.finish(storeCtx, logger, id, nil, ErrServiceClosed)
		return
	}

	metrics.ProvisioningRunsInFlight.Inc()
	defer metrics.ProvisioningRunsInFlight.Dec()

	ctx := s.baseCtx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	now := s.now()
	if err := s.store.UpdateRun(storeCtx, &runstore.Run{ID: id, Status: runstore.StatusRunning, UpdatedAt: now}); err != nil {
		logger.Error("Failed to mark run as running", zap.Error(err))
	}
	logger.Info("Provisioning run started")

	result, err := s.runner.Run(ctx, plan, &storeObserver{
		store:  s.store,
		runID:  id,
		ctx:    storeCtx,
		logger: logger,
		now:    s.now,
	})
	s.finish(storeCtx, logger, id, result, err)
}

func (s *service) finish(ctx context.Context, logger *zap.Logger, id string, result *Result, runErr error) {
	now := s.now()
	update := &runstore.Run{
		ID:          id,
		Status:      runstore.StatusSucceeded,
		UpdatedAt:   now,
		CompletedAt: &now,
	}

	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			logger.Error("Failed to encode run result", zap.Error(err))
		} else {
			update.Result = raw
		}
	}

	if runErr != nil {
		update.Status = runstore.StatusFailed
		update.Error = runErr.Error()
		var stepErr *StepError
		if errors.As(runErr, &stepErr) {
			update.FailedStep = stepErr.Index
		}
	}

	if err := s.store.UpdateRun(ctx, update); err != nil {
		logger.Error("Failed to store run outcome", zap.Error(err))
	}
	metrics.ProvisioningRuns.WithLabelValues(update.Status).Inc()

	if runErr != nil {
		logger.Warn("Provisioning run failed", zap.Int("failed_step", update.FailedStep), zap.Error(runErr))
		return
	}
	logger.Info("Provisioning run succeeded")
}

// storeObserver records step progress in the run store. Store failures are logged and
// never stop the run.
type storeObserver struct {
	store  runstore.Store
	runID  string
	ctx    context.Context
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	started map[int]time.Time
}

func (o *storeObserver) StepStarted(_ context.Context, step Step) {
	now := o.now()
	o.mu.Lock()
	if o.started == nil {
		o.started = make(map[int]time.Time)
	}
	o.started[step.Index] = now
	o.mu.Unlock()

	o.save(&runstore.Step{
		RunID:     o.runID,
		Index:     step.Index,
		Stage:     step.Stage,
		Name:      step.Name,
		Status:    runstore.StatusRunning,
		StartedAt: now,
	})
}

func (o *storeObserver) StepCompleted(_ context.Context, result StepResult) {
	st := o.step(result.Step, runstore.StatusSucceeded)
	if result.Skipped {
		st.Status = runstore.StatusSkipped
	}
	if result.TxHash != (common.Hash{}) {
		st.TxHash = result.TxHash.Hex()
	}
	if result.Address != (common.Address{}) {
		st.Address = result.Address.Hex()
	}
	st.GasUsed = result.GasUsed
	o.save(st)
}

func (o *storeObserver) StepFailed(_ context.Context, step Step, err error) {
	st := o.step(step, runstore.StatusFailed)
	st.Error = err.Error()
	o.save(st)
}

func (o *storeObserver) step(step Step, status string) *runstore.Step {
	now := o.now()
	o.mu.Lock()
	started, ok := o.started[step.Index]
	o.mu.Unlock()
	if !ok {
		started = now
	}
	return &runstore.Step{
		RunID:       o.runID,
		Index:       step.Index,
		Stage:       step.Stage,
		Name:        step.Name,
		Status:      status,
		StartedAt:   started,
		CompletedAt: &now,
	}
}

func (o *storeObserver) save(step *runstore.Step) {
	if err := o.store.SaveStep(o.ctx, step); err != nil {
		o.logger.Error("Failed to store step",
			zap.Int("step", step.Index),
			zap.String("name", step.Name),
			zap.Error(err))
	}
}
