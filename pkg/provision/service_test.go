package provision

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/optimal-wallet/pkg/app/errors"
	"github.com/chainsafe/optimal-wallet/pkg/runstore"
)

// fakeRunner reports the configured steps to the observer and returns RunFunc's outcome
type fakeRunner struct {
	RunFunc func(ctx context.Context, plan *Plan, observer Observer) (*Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, plan *Plan, observer Observer) (*Result, error) {
	return f.RunFunc(ctx, plan, observer)
}

func succeedingRunner() *fakeRunner {
	return &fakeRunner{RunFunc: func(ctx context.Context, _ *Plan, obs Observer) (*Result, error) {
		step := Step{Index: 1, Stage: 1, Name: StepOrganization}
		obs.StepStarted(ctx, step)
		sr := StepResult{
			Step:    step,
			TxHash:  common.HexToHash("0xaa"),
			Address: common.HexToAddress("0x00000000000000000000000000000000000000c3"),
			GasUsed: 21000,
		}
		obs.StepCompleted(ctx, sr)
		return &Result{Organization: sr.Address, Steps: []StepResult{sr}}, nil
	}}
}

func waitForStatus(t *testing.T, store runstore.Store, id string, status string) *runstore.Run {
	t.Helper()
	var run *runstore.Run
	require.Eventually(t, func() bool {
		got, err := store.GetRun(context.Background(), id)
		if err != nil {
			return false
		}
		run = got
		return got.Status == status
	}, 5*time.Second, 10*time.Millisecond, "run %s never reached %s", id, status)
	return run
}

func TestService_SubmitRunsInBackground(t *testing.T) {
	store := runstore.NewMemoryStore()
	svc := NewService(succeedingRunner(), store, ServiceConfig{MaxConcurrentRuns: 2}, nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	run, err := svc.Submit(context.Background(), validPlan())
	require.NoError(t, err)
	_, err = uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusPending, run.Status)

	var stored Plan
	require.NoError(t, json.Unmarshal(run.Plan, &stored))
	assert.Equal(t, testDeployer, stored.Deployer)

	done := waitForStatus(t, store, run.ID, runstore.StatusSucceeded)
	require.NotNil(t, done.CompletedAt)
	require.Len(t, done.Steps, 1)
	assert.Equal(t, runstore.StatusSucceeded, done.Steps[0].Status)
	assert.Equal(t, common.HexToAddress("0xc3"), common.HexToAddress(done.Steps[0].Address))
	assert.Equal(t, uint64(21000), done.Steps[0].GasUsed)

	var result Result
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Equal(t, common.HexToAddress("0xc3"), result.Organization)
}

func TestService_FailedRunRecordsStep(t *testing.T) {
	store := runstore.NewMemoryStore()
	runner := &fakeRunner{RunFunc: func(ctx context.Context, _ *Plan, obs Observer) (*Result, error) {
		step := Step{Index: 3, Stage: 2, Name: StepTokenRules}
		obs.StepStarted(ctx, step)
		err := &StepError{Index: 3, Stage: 2, Name: StepTokenRules, Err: context.DeadlineExceeded}
		obs.StepFailed(ctx, step, err)
		return &Result{}, err
	}}
	svc := NewService(runner, store, ServiceConfig{}, nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	run, err := svc.Submit(context.Background(), validPlan())
	require.NoError(t, err)

	done := waitForStatus(t, store, run.ID, runstore.StatusFailed)
	assert.Equal(t, 3, done.FailedStep)
	assert.Contains(t, done.Error, "token_rules")
	require.Len(t, done.Steps, 1)
	assert.Equal(t, runstore.StatusFailed, done.Steps[0].Status)
	assert.NotEmpty(t, done.Steps[0].Error)
}

func TestService_InvalidPlan(t *testing.T) {
	store := runstore.NewMemoryStore()
	svc := NewService(succeedingRunner(), store, ServiceConfig{}, nil)

	plan := validPlan()
	plan.Worker = common.Address{}
	_, err := svc.Submit(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	var planErr *InvalidPlanError
	assert.ErrorAs(t, err, &planErr)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestService_Get(t *testing.T) {
	svc := NewService(succeedingRunner(), runstore.NewMemoryStore(), ServiceConfig{}, nil)

	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))

	_, err = svc.Get(context.Background(), uuid.NewString())
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound))
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
}

func TestService_ListLimit(t *testing.T) {
	store := runstore.NewMemoryStore()
	svc := NewService(succeedingRunner(), store, ServiceConfig{ListLimit: 2}, nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), validPlan())
		require.NoError(t, err)
	}

	runs, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = svc.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestService_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	release := make(chan struct{})
	runner := &fakeRunner{RunFunc: func(context.Context, *Plan, Observer) (*Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return &Result{}, nil
	}}
	store := runstore.NewMemoryStore()
	svc := NewService(runner, store, ServiceConfig{MaxConcurrentRuns: 1}, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := svc.Submit(context.Background(), validPlan())
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&active) == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	for _, id := range ids {
		waitForStatus(t, store, id, runstore.StatusSucceeded)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestService_ShutdownCancelsAfterDeadline(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	runner := &fakeRunner{RunFunc: func(ctx context.Context, _ *Plan, _ Observer) (*Result, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return &Result{}, ctx.Err()
	}}
	store := runstore.NewMemoryStore()
	svc := NewService(runner, store, ServiceConfig{}, nil)

	run, err := svc.Submit(context.Background(), validPlan())
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, svc.Shutdown(ctx), context.DeadlineExceeded)

	done := waitForStatus(t, store, run.ID, runstore.StatusFailed)
	assert.Contains(t, done.Error, "context canceled")

	_, err = svc.Submit(context.Background(), validPlan())
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnavailable))
	assert.ErrorIs(t, err, ErrServiceClosed)
}

func TestService_RunTimeout(t *testing.T) {
	runner := &fakeRunner{RunFunc: func(ctx context.Context, _ *Plan, _ Observer) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	store := runstore.NewMemoryStore()
	svc := NewService(runner, store, ServiceConfig{RunTimeout: 10 * time.Millisecond}, nil)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	run, err := svc.Submit(context.Background(), validPlan())
	require.NoError(t, err)

	done := waitForStatus(t, store, run.ID, runstore.StatusFailed)
	assert.Contains(t, done.Error, "deadline exceeded")
}

// gatedStore holds CreateRun for plans whose worker is gated and fails it when failCreate is set
type gatedStore struct {
	runstore.Store
	gate       chan struct{}
	entered    chan struct{}
	failCreate bool
}

func (g *gatedStore) CreateRun(ctx context.Context, run *runstore.Run) error {
	if g.failCreate {
		return errors.New("connection reset")
	}
	if g.gate != nil {
		var p Plan
		if err := json.Unmarshal(run.Plan, &p); err == nil && p.Worker == testWorker {
			g.entered <- struct{}{}
			<-g.gate
		}
	}
	return g.Store.CreateRun(ctx, run)
}

func TestService_SubmitDoesNotSerializeStoreWrites(t *testing.T) {
	store := &gatedStore{
		Store:   runstore.NewMemoryStore(),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc := NewService(succeedingRunner(), store, ServiceConfig{MaxConcurrentRuns: 2}, nil)

	slow := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), validPlan())
		slow <- err
	}()
	<-store.entered

	other := validPlan()
	other.Worker = common.HexToAddress("0x00000000000000000000000000000000000000e9")
	fast, err := svc.Submit(context.Background(), other)
	require.NoError(t, err)
	waitForStatus(t, store, fast.ID, runstore.StatusSucceeded)

	shutdown := make(chan error, 1)
	go func() { shutdown <- svc.Shutdown(context.Background()) }()

	select {
	case <-shutdown:
		t.Fatal("shutdown returned while a submission was still storing its run")
	case <-time.After(20 * time.Millisecond):
	}

	close(store.gate)
	require.NoError(t, <-slow)
	require.NoError(t, <-shutdown)
}

func TestService_SubmitStoreFailure(t *testing.T) {
	store := &gatedStore{Store: runstore.NewMemoryStore(), failCreate: true}
	svc := NewService(succeedingRunner(), store, ServiceConfig{}, nil)

	_, err := svc.Submit(context.Background(), validPlan())
	assert.True(t, apperrors.Is(err, apperrors.CategoryDependencyFailure))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
}
