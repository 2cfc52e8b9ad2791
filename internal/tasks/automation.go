package tasks

import "time"

const (
	TeamDev     = "dev-team"
	TeamProduct = "product-team"
	TeamDocs    = "docs-team"
	TeamGeneral = "general-team"
)

var teamByType = map[TaskType]string{
	TypeBug:           TeamDev,
	TypeFeature:       TeamProduct,
	TypeDocumentation: TeamDocs,
}

var dueDaysByPriority = map[Priority]int{
	PriorityHigh:   1,
	PriorityMedium: 3,
	PriorityLow:    7,
}

// defaultDueDays applies to any priority missing from dueDaysByPriority.
const defaultDueDays = 7

// TeamFor returns the team a task of the given type is routed to.
func TeamFor(t TaskType) string {
	if team, ok := teamByType[t]; ok {
		return team
	}
	return TeamGeneral
}

// DueDays returns the number of days a task of the given priority has.
func DueDays(p Priority) int {
	if days, ok := dueDaysByPriority[p]; ok {
		return days
	}
	return defaultDueDays
}

// AutoAssign sets AssignedTo from the task type and returns the task.
func AutoAssign(t Task) Task {
	t.AssignedTo = TeamFor(t.Type)
	return t
}

// ComputeDueDate returns now plus the day offset for the priority. Days are
// whole 24h spans so the offset is exact regardless of DST.
func ComputeDueDate(p Priority, now time.Time) time.Time {
	return now.Add(time.Duration(DueDays(p)) * 24 * time.Hour)
}
