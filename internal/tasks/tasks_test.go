package tasks

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want []string
	}{
		{
			name: "valid",
			c:    Candidate{Title: "Fix bug", Type: "bug", Priority: "high"},
			want: nil,
		},
		{
			name: "missing title",
			c:    Candidate{Type: "feature", Priority: "low"},
			want: []string{"Missing required field: title"},
		},
		{
			name: "bad type",
			c:    Candidate{Title: "x", Type: "chore", Priority: "low"},
			want: []string{"Invalid type. Must be one of: ['bug', 'feature', 'documentation', 'other']"},
		},
		{
			name: "bad priority",
			c:    Candidate{Title: "x", Type: "other", Priority: "urgent"},
			want: []string{"Invalid priority. Must be one of: ['high', 'medium', 'low']"},
		},
		{
			name: "empty candidate reports every rule",
			c:    Candidate{},
			want: []string{
				"Missing required field: title",
				"Missing required field: type",
				"Missing required field: priority",
				"Invalid type. Must be one of: ['bug', 'feature', 'documentation', 'other']",
				"Invalid priority. Must be one of: ['high', 'medium', 'low']",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.c)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Validate()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTeamFor(t *testing.T) {
	tests := []struct {
		typ  TaskType
		want string
	}{
		{TypeBug, "dev-team"},
		{TypeFeature, "product-team"},
		{TypeDocumentation, "docs-team"},
		{TypeOther, "general-team"},
		{TaskType("spike"), "general-team"},
		{TaskType(""), "general-team"},
	}
	for _, tt := range tests {
		if got := TeamFor(tt.typ); got != tt.want {
			t.Errorf("TeamFor(%q) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestComputeDueDate(t *testing.T) {
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		p    Priority
		days int
	}{
		{PriorityHigh, 1},
		{PriorityMedium, 3},
		{PriorityLow, 7},
		{Priority("whenever"), 7},
	}
	for _, tt := range tests {
		got := ComputeDueDate(tt.p, now)
		if want := now.Add(time.Duration(tt.days) * 24 * time.Hour); !got.Equal(want) {
			t.Errorf("ComputeDueDate(%q) = %v, want %v", tt.p, got, want)
		}
	}
}

func TestAutoAssignIgnoresOtherFields(t *testing.T) {
	a := AutoAssign(Task{Type: TypeBug, Priority: PriorityLow, Title: "a"})
	b := AutoAssign(Task{Type: TypeBug, Priority: PriorityHigh, Title: "b", AssignedTo: "someone"})
	if a.AssignedTo != b.AssignedTo || a.AssignedTo != TeamDev {
		t.Errorf("AutoAssign bug: got %q and %q, want %q", a.AssignedTo, b.AssignedTo, TeamDev)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Errors: []string{"a", "b"}}
	if !strings.Contains(err.Error(), "a; b") {
		t.Errorf("Error() = %q", err.Error())
	}
	ve, ok := IsValidation(err)
	if !ok || len(ve.Errors) != 2 {
		t.Errorf("IsValidation() = %v, %v", ve, ok)
	}
	if _, ok := IsValidation(ErrNotFound); ok {
		t.Error("IsValidation(ErrNotFound) = true")
	}
}

func TestFilterMatches(t *testing.T) {
	task := Task{Status: "open", AssignedTo: "dev-team", Priority: PriorityHigh}
	tests := []struct {
		f    Filter
		want bool
	}{
		{Filter{}, true},
		{Filter{Status: "open"}, true},
		{Filter{Status: "completed"}, false},
		{Filter{Status: "open", AssignedTo: "dev-team"}, true},
		{Filter{Status: "open", AssignedTo: "docs-team"}, false},
		{Filter{Priority: "high"}, true},
		{Filter{Priority: "low"}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Matches(task); got != tt.want {
			t.Errorf("%+v.Matches() = %v, want %v", tt.f, got, tt.want)
		}
	}
}
