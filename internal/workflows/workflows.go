// Package workflows stores workflow definitions. Workflows are data only:
// nothing in this service evaluates a trigger or runs an action.
package workflows

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/marcus/taskflow/internal/tasks"
)

// Workflow is a stored automation definition.
type Workflow struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Trigger   string    `json:"trigger"`
	Actions   []string  `json:"actions"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Definition is a proposed workflow as supplied by a caller. Actions is a
// pointer so a missing list can be told apart from an empty one.
type Definition struct {
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	Actions *[]string `json:"actions"`
}

// ErrNotFound is returned when a workflow id is not in the store.
var ErrNotFound = errors.New("workflow not found")

// Check returns one message per missing field of d.
func Check(d Definition) []string {
	var errs []string
	if d.Name == "" {
		errs = append(errs, "Missing required field: name")
	}
	if d.Trigger == "" {
		errs = append(errs, "Missing required field: trigger")
	}
	if d.Actions == nil {
		errs = append(errs, "Missing required field: actions")
	}
	return errs
}

// Store is the in-memory workflow registry with sequential ids.
type Store struct {
	mu        sync.RWMutex
	nextID    int
	workflows map[int]Workflow
	nowFunc   func() time.Time
}

// NewStore creates an empty workflow store. A nil clock means time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		nextID:    1,
		workflows: make(map[int]Workflow),
		nowFunc:   now,
	}
}

// Create checks d and inserts it. A rejected definition is reported as a
// *tasks.ValidationError and leaves the store untouched.
func (s *Store) Create(d Definition) (Workflow, error) {
	if errs := Check(d); len(errs) > 0 {
		return Workflow{}, &tasks.ValidationError{Errors: errs}
	}
	return s.Insert(d.Name, d.Trigger, *d.Actions), nil
}

// Insert stores a new enabled workflow as given, without any checks.
func (s *Store) Insert(name, trigger string, actions []string) Workflow {
	if actions == nil {
		actions = []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	w := Workflow{
		ID:        s.nextID,
		Name:      name,
		Trigger:   trigger,
		Actions:   append([]string(nil), actions...),
		Enabled:   true,
		CreatedAt: s.nowFunc(),
	}
	s.workflows[w.ID] = w
	s.nextID++
	return cloneWorkflow(w)
}

// Get returns the workflow with the given id.
func (s *Store) Get(id int) (Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return Workflow{}, ErrNotFound
	}
	return cloneWorkflow(w), nil
}

// List returns every workflow ordered by id.
func (s *Store) List() []Workflow {
	s.mu.RLock()
	out := make([]Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, cloneWorkflow(w))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// cloneWorkflow copies the actions slice so callers cannot reach stored state.
func cloneWorkflow(w Workflow) Workflow {
	w.Actions = append(make([]string, 0, len(w.Actions)), w.Actions...)
	return w
}
