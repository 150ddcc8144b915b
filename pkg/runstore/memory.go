package runstore

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	steps map[string]map[int]*Step
}

// NewMemoryStore creates a run store that keeps everything in process memory
func NewMemoryStore() Store {
	return &memoryStore{
		runs:  make(map[string]*Run),
		steps: make(map[string]map[int]*Step),
	}
}

func (s *memoryStore) CreateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	cp.Steps = nil
	s.runs[run.ID] = &cp
	return nil
}

func (s *memoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	cp.Steps = make([]*Step, 0, len(s.steps[id]))
	for _, step := range s.steps[id] {
		st := *step
		cp.Steps = append(cp.Steps, &st)
	}
	sort.Slice(cp.Steps, func(i, j int) bool { return cp.Steps[i].Index < cp.Steps[j].Index })
	return &cp, nil
}

func (s *memoryStore) ListRuns(_ context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		cp := *run
		cp.Plan = nil
		cp.Result = nil
		runs = append(runs, &cp)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *memoryStore) UpdateRun(_ context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	cp := *run
	cp.Plan = existing.Plan
	cp.CreatedAt = existing.CreatedAt
	cp.Steps = nil
	s.runs[run.ID] = &cp
	return nil
}

func (s *memoryStore) SaveStep(_ context.Context, step *Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[step.RunID]; !ok {
		return ErrRunNotFound
	}
	if s.steps[step.RunID] == nil {
		s.steps[step.RunID] = make(map[int]*Step)
	}
	cp := *step
	s.steps[step.RunID][step.Index] = &cp
	return nil
}
