package tasks

import (
	"sort"
	"sync"
	"time"
)

// Store is the process-wide, in-memory task collection. Ids are issued
// sequentially from 1 under the store lock, so concurrent creates never
// share or skip an id.
type Store struct {
	mu      sync.RWMutex
	nextID  int
	tasks   map[int]Task
	nowFunc func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// NewStore creates an empty task store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		nextID:  1,
		tasks:   make(map[int]Task),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the candidate and, if it is acceptable, inserts it.
// A rejected candidate leaves the store and its id counter untouched.
func (s *Store) Create(c Candidate) (Task, error) {
	if errs := Validate(c); len(errs) > 0 {
		return Task{}, &ValidationError{Errors: errs}
	}
	return s.Insert(c), nil
}

// Insert builds the full record for an accepted candidate, applies the
// automation once, and stores it. The record becomes visible to readers
// only once every creation-time field is set.
func (s *Store) Insert(c Candidate) Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	t := Task{
		ID:          s.nextID,
		Title:       c.Title,
		Type:        TaskType(c.Type),
		Priority:    Priority(c.Priority),
		Description: c.Description,
		Status:      StatusOpen,
		CreatedAt:   now,
	}
	t = AutoAssign(t)
	t.DueDate = ComputeDueDate(t.Priority, now)

	s.tasks[t.ID] = t
	s.nextID++
	return t
}

// Get returns the task with the given id.
func (s *Store) Get(id int) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// List returns the tasks matching f, ordered by id.
func (s *Store) List(f Filter) []Task {
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Update applies the non-nil fields of p to the task and stamps UpdatedAt,
// even when nothing actually changed.
func (s *Store) Update(id int, p Patch) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}

	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	now := s.nowFunc()
	t.UpdatedAt = &now

	s.tasks[id] = t
	return t, nil
}

// Snapshot returns a copy of every stored task, ordered by id.
func (s *Store) Snapshot() []Task {
	return s.List(Filter{})
}

// Len returns the number of stored tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
