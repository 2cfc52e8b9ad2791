package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/taskflow/internal/db"
)

// Snapshot is a stored report with the time it was taken.
type Snapshot struct {
	ID      int64     `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Report  Report    `json:"report"`
}

// SaveSnapshot stores r in the stats_snapshots table.
func SaveSnapshot(database *db.DB, r Report, at time.Time) (int64, error) {
	sqlDB := database.SQL()
	if sqlDB == nil {
		return 0, errors.New("db is nil")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}

	res, err := sqlDB.Exec(
		`INSERT INTO stats_snapshots (taken_at, total_tasks, report) VALUES (?, ?, ?)`,
		db.FormatTime(at), r.TotalTasks, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// History returns up to limit snapshots, newest first. A limit <= 0 means 50.
func History(database *db.DB, limit int) ([]Snapshot, error) {
	sqlDB := database.SQL()
	if sqlDB == nil {
		return nil, errors.New("db is nil")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := sqlDB.Query(
		`SELECT id, taken_at, report FROM stats_snapshots ORDER BY taken_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var (
			snap   Snapshot
			taken  string
			report string
		)
		if err := rows.Scan(&snap.ID, &taken, &report); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		t, ok := parseDBTimestamp(taken)
		if !ok {
			return nil, fmt.Errorf("snapshot %d: bad timestamp %q", snap.ID, taken)
		}
		snap.TakenAt = t
		if err := json.Unmarshal([]byte(report), &snap.Report); err != nil {
			return nil, fmt.Errorf("snapshot %d: decode report: %w", snap.ID, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}
	return out, nil
}

// parseDBTimestamp accepts the formats SQLite hands back for time columns.
func parseDBTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
