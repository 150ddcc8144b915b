// Package runstore persists provisioning runs and their per-step progress.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run lookup finds no matching record
var ErrRunNotFound = errors.New("run not found")

// Run status values
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	// StatusSkipped is used by steps whose result was supplied by the plan
	StatusSkipped = "skipped"
)

// Run is one provisioning run
type Run struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Plan   json.RawMessage `json:"plan,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	// FailedStep is the index of the step that stopped the run, 0 otherwise
	FailedStep  int        `json:"failedStep,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Steps       []*Step    `json:"steps,omitempty"`
}

// Step is the progress of one step of a run
type Step struct {
	RunID       string     `json:"-"`
	Index       int        `json:"index"`
	Stage       int        `json:"stage"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	TxHash      string     `json:"txHash,omitempty"`
	Address     string     `json:"address,omitempty"`
	GasUsed     uint64     `json:"gasUsed,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Store defines the interface for run persistence
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	// GetRun returns the run with its steps ordered by index
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the latest runs first, without steps
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	// SaveStep inserts or replaces the step (run id, index)
	SaveStep(ctx context.Context, step *Step) error
}
