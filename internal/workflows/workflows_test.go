package workflows

import (
	"sync"
	"testing"
	"time"

	"github.com/marcus/taskflow/internal/tasks"
)

func actions(a ...string) *[]string { return &a }

func TestCreate(t *testing.T) {
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	s := NewStore(func() time.Time { return created })

	w, err := s.Create(Definition{Name: "Auto-close", Trigger: "task.completed", Actions: actions("notify", "archive")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.ID != 1 {
		t.Errorf("ID = %d, want 1", w.ID)
	}
	if !w.Enabled {
		t.Error("expected new workflow to be enabled")
	}
	if !w.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", w.CreatedAt, created)
	}
	if len(w.Actions) != 2 || w.Actions[0] != "notify" || w.Actions[1] != "archive" {
		t.Errorf("Actions = %v, want ordered [notify archive]", w.Actions)
	}
}

func TestCreateMissingFields(t *testing.T) {
	s := NewStore(nil)

	_, err := s.Create(Definition{})
	ve, ok := tasks.IsValidation(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("Errors = %v, want 3 entries", ve.Errors)
	}
	if len(s.List()) != 0 {
		t.Error("rejected workflow was stored")
	}

	// an explicitly empty action list is present, not missing
	if _, err := s.Create(Definition{Name: "n", Trigger: "t", Actions: actions()}); err != nil {
		t.Errorf("Create with empty actions: %v", err)
	}
}

func TestInsertAcceptsAnything(t *testing.T) {
	s := NewStore(nil)
	w := s.Insert("", "", nil)
	if w.Actions == nil {
		t.Error("expected non-nil actions")
	}
	if w.ID != 1 {
		t.Errorf("ID = %d, want 1", w.ID)
	}
}

func TestGetAndList(t *testing.T) {
	s := NewStore(nil)
	for _, name := range []string{"a", "b", "c"} {
		s.Insert(name, "manual", []string{"x"})
	}

	got, err := s.Get(2)
	if err != nil {
		t.Fatalf("Get(2): %v", err)
	}
	if got.Name != "b" {
		t.Errorf("Get(2).Name = %q, want b", got.Name)
	}
	if _, err := s.Get(9); err != ErrNotFound {
		t.Errorf("Get(9) err = %v, want ErrNotFound", err)
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
	for i, w := range list {
		if w.ID != i+1 {
			t.Errorf("List()[%d].ID = %d", i, w.ID)
		}
	}
}

func TestListReturnsCopies(t *testing.T) {
	s := NewStore(nil)
	s.Insert("a", "t", []string{"one"})

	list := s.List()
	list[0].Actions[0] = "changed"

	got, _ := s.Get(1)
	if got.Actions[0] != "one" {
		t.Errorf("stored actions mutated through List: %v", got.Actions)
	}
}

func TestConcurrentInsert(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Insert("w", "t", []string{"a"})
		}()
	}
	wg.Wait()

	list := s.List()
	if len(list) != 100 {
		t.Fatalf("len = %d, want 100", len(list))
	}
	for i, w := range list {
		if w.ID != i+1 {
			t.Fatalf("ids not contiguous at %d: %d", i, w.ID)
		}
	}
}
