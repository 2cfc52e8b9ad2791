package scheduler

import (
	"context"
	"time"

	"github.com/marcus/taskflow/internal/audit"
	"github.com/marcus/taskflow/internal/db"
	"github.com/marcus/taskflow/internal/logging"
	"github.com/marcus/taskflow/internal/stats"
)

// Job names.
const (
	JobStatsSnapshot = "stats-snapshot"
	JobAuditPrune    = "audit-prune"
)

// StatsSnapshotJob stores the current statistics report in the history table.
func StatsSnapshotJob(st *stats.Stats, database *db.DB, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := st.Compute()
		id, err := stats.SaveSnapshot(database, r, now())
		if err != nil {
			return err
		}
		logging.Component("scheduler").InfoCtx("stats snapshot saved", map[string]any{
			"snapshot_id": id,
			"total_tasks": r.TotalTasks,
		})
		return nil
	}
}

// AuditPruneJob deletes audit events older than retentionDays. A
// non-positive retention keeps everything.
func AuditPruneJob(a *audit.Logger, retentionDays int, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		if retentionDays <= 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		cutoff := now().AddDate(0, 0, -retentionDays)
		n, err := a.Prune(cutoff)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.Component("scheduler").Infof("pruned %d audit event(s) older than %s", n, cutoff.Format(time.DateOnly))
		}
		return nil
	}
}
