// Package tasks holds the task record, the rules that gate task creation,
// the automation applied to accepted tasks, and the in-memory task store.
package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskType is the declared kind of a task.
type TaskType string

const (
	TypeBug           TaskType = "bug"
	TypeFeature       TaskType = "feature"
	TypeDocumentation TaskType = "documentation"
	TypeOther         TaskType = "other"
)

// AllTypes returns the accepted task types in display order.
func AllTypes() []TaskType {
	return []TaskType{TypeBug, TypeFeature, TypeDocumentation, TypeOther}
}

// Priority is the declared urgency of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// AllPriorities returns the accepted priorities in display order.
func AllPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// StatusOpen is the status every task starts with.
const StatusOpen = "open"

// Task is a stored unit of work. Records handed out by the Store are copies;
// mutating one never changes stored state.
type Task struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Type        TaskType   `json:"type"`
	Priority    Priority   `json:"priority"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	AssignedTo  string     `json:"assigned_to"`
	DueDate     time.Time  `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// Candidate is a proposed task as supplied by a caller.
type Candidate struct {
	Title       string `json:"title"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// Patch lists the mutable fields of a task. Nil fields are left untouched.
// Anything else a caller sends has no field to land in and is dropped.
type Patch struct {
	Status      *string   `json:"status,omitempty"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
}

// Filter selects tasks in List. Empty fields match everything.
type Filter struct {
	Status     string
	AssignedTo string
	Priority   string
}

// Matches reports whether t satisfies every non-empty filter field.
func (f Filter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Priority != "" && string(t.Priority) != f.Priority {
		return false
	}
	return true
}

// ErrNotFound is returned when a task id is not in the store.
var ErrNotFound = errors.New("task not found")

// ValidationError carries every rule a candidate violated.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// IsValidation reports whether err is (or wraps) a *ValidationError and
// returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
