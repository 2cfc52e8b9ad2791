package stats

import (
	"testing"
	"time"

	"github.com/marcus/taskflow/internal/db"
	"github.com/marcus/taskflow/internal/tasks"
)

func TestComputeEmpty(t *testing.T) {
	r := New(tasks.NewStore()).Compute()

	if r.TotalTasks != 0 {
		t.Errorf("TotalTasks = %d, want 0", r.TotalTasks)
	}
	if r.AutomationRate != "0.0%" {
		t.Errorf("AutomationRate = %q, want 0.0%%", r.AutomationRate)
	}
	if r.TasksByStatus == nil || len(r.TasksByStatus) != 0 {
		t.Errorf("TasksByStatus = %v, want empty map", r.TasksByStatus)
	}
	if r.TasksByTeam == nil || len(r.TasksByTeam) != 0 {
		t.Errorf("TasksByTeam = %v, want empty map", r.TasksByTeam)
	}
	if r.EstimatedTimeSaved != "0 minutes" {
		t.Errorf("EstimatedTimeSaved = %q", r.EstimatedTimeSaved)
	}
	if r.ErrorReduction != "95%" {
		t.Errorf("ErrorReduction = %q, want 95%%", r.ErrorReduction)
	}
}

func TestComputeAlternatingTypes(t *testing.T) {
	store := tasks.NewStore()
	types := []string{"bug", "feature", "bug", "feature", "bug"}
	for _, typ := range types {
		if _, err := store.Create(tasks.Candidate{Title: "t", Type: typ, Priority: "low"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	r := New(store).Compute()

	if r.TotalTasks != 5 {
		t.Errorf("TotalTasks = %d, want 5", r.TotalTasks)
	}
	if r.AutoAssignedTasks != 5 {
		t.Errorf("AutoAssignedTasks = %d, want 5", r.AutoAssignedTasks)
	}
	if r.AutomationRate != "100.0%" {
		t.Errorf("AutomationRate = %q, want 100.0%%", r.AutomationRate)
	}
	if len(r.TasksByTeam) != 2 || r.TasksByTeam["dev-team"] != 3 || r.TasksByTeam["product-team"] != 2 {
		t.Errorf("TasksByTeam = %v", r.TasksByTeam)
	}
	if r.TasksByStatus["open"] != 5 {
		t.Errorf("TasksByStatus = %v", r.TasksByStatus)
	}
	if r.TasksByPriority["low"] != 5 {
		t.Errorf("TasksByPriority = %v", r.TasksByPriority)
	}
	if r.EstimatedTimeSaved != "25 minutes" {
		t.Errorf("EstimatedTimeSaved = %q, want 25 minutes", r.EstimatedTimeSaved)
	}
}

func TestComputeClearedAssignee(t *testing.T) {
	r := Compute([]tasks.Task{
		{Status: "open", AssignedTo: "dev-team"},
		{Status: "blocked", AssignedTo: ""},
		{Status: "open", AssignedTo: ""},
	})

	if r.AutoAssignedTasks != 3 {
		t.Errorf("AutoAssignedTasks = %d, want 3", r.AutoAssignedTasks)
	}
	if r.AutomationRate != "100.0%" {
		t.Errorf("AutomationRate = %q, want 100.0%%", r.AutomationRate)
	}
	if r.TasksByTeam[""] != 2 || r.TasksByTeam["dev-team"] != 1 {
		t.Errorf("TasksByTeam = %v, want 2 under \"\" and 1 under dev-team", r.TasksByTeam)
	}
	if _, ok := r.TasksByTeam["unassigned"]; ok {
		t.Errorf("TasksByTeam = %v, cleared assignee must not be renamed", r.TasksByTeam)
	}
	if r.TasksByStatus["open"] != 2 || r.TasksByStatus["blocked"] != 1 {
		t.Errorf("TasksByStatus = %v", r.TasksByStatus)
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		part, total int
		want        string
	}{
		{0, 0, "0.0%"},
		{1, 3, "33.3%"},
		{2, 3, "66.7%"},
		{3, 3, "100.0%"},
	}
	for _, tt := range tests {
		if got := FormatRate(tt.part, tt.total); got != tt.want {
			t.Errorf("FormatRate(%d, %d) = %q, want %q", tt.part, tt.total, got, tt.want)
		}
	}
}

func TestSnapshotHistory(t *testing.T) {
	database, err := db.Open(db.MemoryPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = database.Close() }()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		r := Compute(make([]tasks.Task, i))
		if _, err := SaveSnapshot(database, r, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	history, err := History(database, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Report.TotalTasks != 3 || history[1].Report.TotalTasks != 2 {
		t.Errorf("history not newest first: %+v", history)
	}
	if !history[0].TakenAt.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("TakenAt = %v", history[0].TakenAt)
	}
}

func TestSnapshotHistorySubSecond(t *testing.T) {
	database, err := db.Open(db.MemoryPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = database.Close() }()

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	// Saved out of order so the id tie-break cannot hide a bad sort.
	if _, err := SaveSnapshot(database, Compute(make([]tasks.Task, 1)), base.Add(500*time.Millisecond)); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if _, err := SaveSnapshot(database, Compute(make([]tasks.Task, 2)), base); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	history, err := History(database, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Report.TotalTasks != 1 {
		t.Fatalf("newest snapshot = %+v, want the one taken at .5s", history)
	}
	if !history[0].TakenAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("TakenAt = %v", history[0].TakenAt)
	}
}

func TestParseDBTimestamp(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"2026-05-01T10:00:00Z", true},
		{"2026-05-01T10:00:00.123456789Z", true},
		{"2026-05-01 10:00:00", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		if _, ok := parseDBTimestamp(tt.raw); ok != tt.ok {
			t.Errorf("parseDBTimestamp(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
		}
	}
}
