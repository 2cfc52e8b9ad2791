package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/marcus/taskflow/internal/audit"
	"github.com/marcus/taskflow/internal/logging"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/tasks"
	"github.com/marcus/taskflow/internal/workflows"
)

// AutomationApplied reports which automation ran on a created task.
type AutomationApplied struct {
	AutoAssigned      bool `json:"auto_assigned"`
	DueDateCalculated bool `json:"due_date_calculated"`
}

// TaskCreated is the response to POST /api/tasks.
type TaskCreated struct {
	Message           string            `json:"message"`
	Task              tasks.Task        `json:"task"`
	AutomationApplied AutomationApplied `json:"automation_applied"`
}

// TaskUpdated is the response to PATCH /api/tasks/{id}.
type TaskUpdated struct {
	Message string     `json:"message"`
	Task    tasks.Task `json:"task"`
}

// TaskList is the response to GET /api/tasks.
type TaskList struct {
	Count int          `json:"count"`
	Tasks []tasks.Task `json:"tasks"`
}

// WorkflowCreated is the response to POST /api/workflows.
type WorkflowCreated struct {
	Message  string             `json:"message"`
	Workflow workflows.Workflow `json:"workflow"`
}

// WorkflowList is the response to GET /api/workflows.
type WorkflowList struct {
	Count     int                  `json:"count"`
	Workflows []workflows.Workflow `json:"workflows"`
}

// Health is the response to GET /health.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Index is the response to GET /.
type Index struct {
	Name      string            `json:"name"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// StatsHistory is the response to GET /api/stats/history.
type StatsHistory struct {
	Count     int              `json:"count"`
	Snapshots []stats.Snapshot `json:"snapshots"`
}

// AuditList is the response to GET /api/audit.
type AuditList struct {
	Count  int           `json:"count"`
	Events []audit.Event `json:"events"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Index{
		Name:    "taskflow",
		Message: "Task workflow automation API",
		Version: Version,
		Endpoints: map[string]string{
			"health":        "/health",
			"tasks":         "/api/tasks",
			"workflows":     "/api/workflows",
			"stats":         "/api/stats",
			"stats_history": "/api/stats/history",
			"audit":         "/api/audit",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:    "healthy",
		Timestamp: s.now(),
		Version:   Version,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var c tasks.Candidate
	if err := decodeBody(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.tasks.Create(c)
	if err != nil {
		if ve, ok := tasks.IsValidation(err); ok {
			logging.FromRequest(r).Warn().Strs("errors", ve.Errors).Msg("task rejected")
			writeJSON(w, http.StatusBadRequest, validationResponse{Errors: ve.Errors})
			return
		}
		writeInternal(w, r, err)
		return
	}

	s.recordCreate(r, audit.EntityTask, t.ID, t)
	writeJSON(w, http.StatusCreated, TaskCreated{
		Message: "Task created and auto-assigned",
		Task:    t,
		AutomationApplied: AutomationApplied{
			AutoAssigned:      true,
			DueDateCalculated: true,
		},
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := s.tasks.List(tasks.Filter{
		Status:     q.Get("status"),
		AssignedTo: q.Get("assigned_to"),
		Priority:   q.Get("priority"),
	})
	writeJSON(w, http.StatusOK, TaskList{Count: len(list), Tasks: list})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	t, err := s.tasks.Get(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	if _, err := s.tasks.Get(id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	var p tasks.Patch
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := s.tasks.Update(id, p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		if err := s.audit.LogUpdate(audit.EntityTask, t.ID, p, r.Header.Get(logging.RequestIDHeader)); err != nil {
			s.log.Errorf("audit task update: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, TaskUpdated{Message: "Task updated", Task: t})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var d workflows.Definition
	if err := decodeBody(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wf, err := s.workflows.Create(d)
	if err != nil {
		if ve, ok := tasks.IsValidation(err); ok {
			logging.FromRequest(r).Warn().Strs("errors", ve.Errors).Msg("workflow rejected")
			writeJSON(w, http.StatusBadRequest, validationResponse{Errors: ve.Errors})
			return
		}
		writeInternal(w, r, err)
		return
	}

	s.recordCreate(r, audit.EntityWorkflow, wf.ID, wf)
	writeJSON(w, http.StatusCreated, WorkflowCreated{Message: "Workflow created", Workflow: wf})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	list := s.workflows.List()
	writeJSON(w, http.StatusOK, WorkflowList{Count: len(list), Workflows: list})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	wf, err := s.workflows.Get(id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Compute())
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if s.db == nil {
		writeJSON(w, http.StatusOK, StatsHistory{Snapshots: []stats.Snapshot{}})
		return
	}

	history, err := stats.History(s.db, limit)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if history == nil {
		history = []stats.Snapshot{}
	}
	writeJSON(w, http.StatusOK, StatsHistory{Count: len(history), Snapshots: history})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if s.audit == nil {
		writeJSON(w, http.StatusOK, AuditList{Events: []audit.Event{}})
		return
	}

	events, err := s.audit.List(audit.Query{
		EntityType: audit.EntityType(r.URL.Query().Get("entity_type")),
		Limit:      limit,
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuditList{Count: len(events), Events: events})
}

// writeStoreError maps store sentinels to 404 and anything else to 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		logging.FromRequest(r).Info().Str("path", r.URL.Path).Msg("task not found")
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, workflows.ErrNotFound):
		logging.FromRequest(r).Info().Str("path", r.URL.Path).Msg("workflow not found")
		writeError(w, http.StatusNotFound, "Workflow not found")
	default:
		writeInternal(w, r, err)
	}
}

func (s *Server) recordCreate(r *http.Request, entity audit.EntityType, id int, record any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogCreate(entity, id, record, r.Header.Get(logging.RequestIDHeader)); err != nil {
		s.log.Errorf("audit %s create: %v", entity, err)
	}
}
