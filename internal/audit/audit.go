// Package audit records an append-only trail of task and workflow mutations
// and rejected requests in the side database.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/taskflow/internal/db"
)

// EntityType names what an audit entry is about.
type EntityType string

const (
	EntityTask     EntityType = "task"
	EntityWorkflow EntityType = "workflow"
	EntityAuth     EntityType = "auth"
)

// Action names what happened to the entity.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDenied Action = "denied"
)

// Event is a single audit log entry.
type Event struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     Action          `json:"action"`
	Details    json.RawMessage `json:"details,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	RequestID  string          `json:"request_id,omitempty"`
}

// Query filters List. A zero Limit means 100.
type Query struct {
	EntityType EntityType
	Limit      int
}

// Logger writes audit events to the audit_log table.
type Logger struct {
	db      *db.DB
	mu      sync.Mutex
	nowFunc func() time.Time
}

// NewLogger creates an audit logger on database.
func NewLogger(database *db.DB) (*Logger, error) {
	if database == nil || database.SQL() == nil {
		return nil, errors.New("audit: db is nil")
	}
	return &Logger{db: database, nowFunc: time.Now}, nil
}

// Log writes an audit event. Details may be any JSON-serializable value or
// nil.
func (l *Logger) Log(entity EntityType, entityID string, action Action, details any, requestID string) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		EntityType: entity,
		EntityID:   entityID,
		Action:     action,
		RequestID:  requestID,
	}

	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return Event{}, fmt.Errorf("marshaling audit details: %w", err)
		}
		ev.Details = data
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev.Timestamp = l.nowFunc().UTC()
	_, err := l.db.SQL().Exec(
		`INSERT INTO audit_log (id, entity_type, entity_id, action, details, timestamp, request_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.EntityType), ev.EntityID, string(ev.Action), string(ev.Details),
		db.FormatTime(ev.Timestamp), ev.RequestID,
	)
	if err != nil {
		return Event{}, fmt.Errorf("writing audit event: %w", err)
	}
	return ev, nil
}

// LogCreate records the creation of an entity with its full record.
func (l *Logger) LogCreate(entity EntityType, id int, record any, requestID string) error {
	_, err := l.Log(entity, strconv.Itoa(id), ActionCreate, record, requestID)
	return err
}

// LogUpdate records the fields an update supplied.
func (l *Logger) LogUpdate(entity EntityType, id int, patch any, requestID string) error {
	_, err := l.Log(entity, strconv.Itoa(id), ActionUpdate, patch, requestID)
	return err
}

// LogDenied records a request rejected by the credential gate.
func (l *Logger) LogDenied(method, path, remote, requestID string) error {
	_, err := l.Log(EntityAuth, path, ActionDenied, map[string]string{
		"method": method,
		"remote": remote,
	}, requestID)
	return err
}

// List returns matching events, newest first.
func (l *Logger) List(q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, entity_type, entity_id, action, COALESCE(details, ''), timestamp, request_id FROM audit_log`
	var args []any
	if q.EntityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, string(q.EntityType))
	}
	query += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.SQL().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			ev                 Event
			entity, action, ts string
			details            string
		)
		if err := rows.Scan(&ev.ID, &entity, &ev.EntityID, &action, &details, &ts, &ev.RequestID); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		ev.EntityType = EntityType(entity)
		ev.Action = Action(action)
		if details != "" {
			ev.Details = json.RawMessage(details)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return events, nil
}

// Prune deletes events older than cutoff and returns how many were removed.
func (l *Logger) Prune(cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.SQL().Exec(`DELETE FROM audit_log WHERE timestamp < ?`, db.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning audit log: %w", err)
	}
	return res.RowsAffected()
}
