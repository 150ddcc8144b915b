package runstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// RunDao maps to the 'provisioning_runs' table
type RunDao struct {
	bun.BaseModel `bun:"table:provisioning_runs,alias:r"`
	ID            string     `bun:"id,pk,type:varchar(36)"`
	Status        string     `bun:"status,notnull,type:varchar(20)"`
	Plan          *string    `bun:"plan,type:jsonb"`
	Result        *string    `bun:"result,type:jsonb"`
	Error         *string    `bun:"error,type:text"`
	FailedStep    int        `bun:"failed_step,notnull,default:0"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	CompletedAt   *time.Time `bun:"completed_at"`
}

// StepDao maps to the 'provisioning_steps' table
type StepDao struct {
	bun.BaseModel `bun:"table:provisioning_steps,alias:s"`
	RunID         string     `bun:"run_id,pk,type:varchar(36)"`
	Index         int        `bun:"step_index,pk"`
	Stage         int        `bun:"stage,notnull"`
	Name          string     `bun:"name,notnull,type:varchar(64)"`
	Status        string     `bun:"status,notnull,type:varchar(20)"`
	TxHash        *string    `bun:"tx_hash,type:varchar(66)"`
	Address       *string    `bun:"address,type:varchar(42)"`
	GasUsed       int64      `bun:"gas_used,notnull,default:0"`
	Error         *string    `bun:"error,type:text"`
	StartedAt     time.Time  `bun:"started_at,notnull"`
	CompletedAt   *time.Time `bun:"completed_at"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRunDao(run *Run) *RunDao {
	return &RunDao{
		ID:          run.ID,
		Status:      run.Status,
		Plan:        optString(string(run.Plan)),
		Result:      optString(string(run.Result)),
		Error:       optString(run.Error),
		FailedStep:  run.FailedStep,
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
		CompletedAt: run.CompletedAt,
	}
}

func toRun(dao *RunDao) *Run {
	run := &Run{
		ID:          dao.ID,
		Status:      dao.Status,
		Error:       derefString(dao.Error),
		FailedStep:  dao.FailedStep,
		CreatedAt:   dao.CreatedAt,
		UpdatedAt:   dao.UpdatedAt,
		CompletedAt: dao.CompletedAt,
	}
	if dao.Plan != nil {
		run.Plan = json.RawMessage(*dao.Plan)
	}
	if dao.Result != nil {
		run.Result = json.RawMessage(*dao.Result)
	}
	return run
}

func toStepDao(step *Step) *StepDao {
	return &StepDao{
		RunID:       step.RunID,
		Index:       step.Index,
		Stage:       step.Stage,
		Name:        step.Name,
		Status:      step.Status,
		TxHash:      optString(step.TxHash),
		Address:     optString(step.Address),
		GasUsed:     int64(step.GasUsed),
		Error:       optString(step.Error),
		StartedAt:   step.StartedAt,
		CompletedAt: step.CompletedAt,
	}
}

func toStep(dao *StepDao) *Step {
	return &Step{
		RunID:       dao.RunID,
		Index:       dao.Index,
		Stage:       dao.Stage,
		Name:        dao.Name,
		Status:      dao.Status,
		TxHash:      derefString(dao.TxHash),
		Address:     derefString(dao.Address),
		GasUsed:     uint64(dao.GasUsed),
		Error:       derefString(dao.Error),
		StartedAt:   dao.StartedAt,
		CompletedAt: dao.CompletedAt,
	}
}
