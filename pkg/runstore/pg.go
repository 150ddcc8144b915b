package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a postgres implementation of the run store
func NewStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.NewInsert().
		Model(toRunDao(run)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *pgStore) GetRun(ctx context.Context, id string) (*Run, error) {
	dao := new(RunDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var steps []StepDao
	err = s.db.NewSelect().
		Model(&steps).
		Where("run_id = ?", id).
		Order("step_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get run steps: %w", err)
	}

	run := toRun(dao)
	run.Steps = make([]*Step, len(steps))
	for i := range steps {
		run.Steps[i] = toStep(&steps[i])
	}
	return run, nil
}

func (s *pgStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	var daos []RunDao
	query := s.db.NewSelect().
		Model(&daos).
		ExcludeColumn("plan", "result").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*Run, len(daos))
	for i := range daos {
		runs[i] = toRun(&daos[i])
	}
	return runs, nil
}

func (s *pgStore) UpdateRun(ctx context.Context, run *Run) error {
	res, err := s.db.NewUpdate().
		Model(toRunDao(run)).
		Column("status", "result", "error", "failed_step", "updated_at", "completed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *pgStore) SaveStep(ctx context.Context, step *Step) error {
	_, err := s.db.NewInsert().
		Model(toStepDao(step)).
		On("CONFLICT (run_id, step_index) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("tx_hash = EXCLUDED.tx_hash").
		Set("address = EXCLUDED.address").
		Set("gas_used = EXCLUDED.gas_used").
		Set("error = EXCLUDED.error").
		Set("completed_at = EXCLUDED.completed_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}
