// Package ui provides a live terminal dashboard for a taskflow server.
// Uses Bubbletea for the event loop and lipgloss for layout.
package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/taskflow/internal/api"
	"github.com/marcus/taskflow/internal/audit"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/tasks"
)

// Source is what the dashboard polls. *client.Client satisfies it.
type Source interface {
	Health(ctx context.Context) (api.Health, error)
	Stats(ctx context.Context) (stats.Report, error)
	ListTasks(ctx context.Context, f tasks.Filter) (api.TaskList, error)
	Audit(ctx context.Context, entityType string, limit int) (api.AuditList, error)
}

// Panel represents which panel is currently focused.
type Panel int

const (
	PanelStats Panel = iota
	PanelTasks
	PanelActivity
	panelCount
)

// ServerStatus is the outcome of the last poll.
type ServerStatus int

const (
	ServerUnknown ServerStatus = iota
	ServerUp
	ServerDown
)

func (s ServerStatus) String() string {
	switch s {
	case ServerUp:
		return "Up"
	case ServerDown:
		return "Down"
	default:
		return "Unknown"
	}
}

const (
	DefaultRefreshInterval = 5 * time.Second
	activityLimit          = 50
	fetchTimeout           = 5 * time.Second
)

// Model holds the dashboard state.
type Model struct {
	source   Source
	interval time.Duration
	now      func() time.Time

	width       int
	height      int
	activePanel Panel
	quitting    bool

	status      ServerStatus
	version     string
	lastErr     error
	lastRefresh time.Time
	loading     bool

	report stats.Report

	tasks          []tasks.Task
	priorityFilter string
	selectedTask   int
	taskScroll     int

	events         []audit.Event
	activityOffset int

	tick   int
	styles *Styles
}

// tickMsg drives the spinner and the refresh schedule.
type tickMsg time.Time

// snapshotMsg carries one poll's results.
type snapshotMsg struct {
	health api.Health
	report stats.Report
	tasks  []tasks.Task
	events []audit.Event
	err    error
	at     time.Time
}

// New creates a dashboard polling src every interval. A non-positive
// interval means DefaultRefreshInterval.
func New(src Source, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Model{
		source:      src,
		interval:    interval,
		now:         time.Now,
		width:       100,
		height:      30,
		activePanel: PanelStats,
		styles:      NewStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchCmd(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd polls the source once. Any failing call marks the server down.
func (m Model) fetchCmd() tea.Cmd {
	src := m.source
	filter := tasks.Filter{Priority: m.priorityFilter}
	now := m.now
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		msg := snapshotMsg{at: now()}
		if msg.health, msg.err = src.Health(ctx); msg.err != nil {
			return msg
		}
		if msg.report, msg.err = src.Stats(ctx); msg.err != nil {
			return msg
		}
		list, err := src.ListTasks(ctx, filter)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.tasks = list.Tasks
		activity, err := src.Audit(ctx, "", activityLimit)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.events = activity.Events
		return msg
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.tick++
		cmds := []tea.Cmd{tickCmd()}
		if !m.loading && time.Time(msg).Sub(m.lastRefresh) >= m.interval {
			m.loading = true
			cmds = append(cmds, m.fetchCmd())
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		return m.applySnapshot(msg), nil
	}

	return m, nil
}

func (m Model) applySnapshot(msg snapshotMsg) Model {
	m.loading = false
	m.lastRefresh = msg.at
	if msg.err != nil {
		m.status = ServerDown
		m.lastErr = msg.err
		return m
	}

	m.status = ServerUp
	m.lastErr = nil
	m.version = msg.health.Version
	m.report = msg.report
	m.tasks = msg.tasks
	m.events = msg.events

	if m.selectedTask >= len(m.tasks) {
		m.selectedTask = max(len(m.tasks)-1, 0)
	}
	if m.activityOffset >= len(m.events) {
		m.activityOffset = max(len(m.events)-1, 0)
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "right", "l":
		m.activePanel = (m.activePanel + 1) % panelCount
		return m, nil

	case "shift+tab", "left", "h":
		m.activePanel = (m.activePanel + panelCount - 1) % panelCount
		return m, nil

	case "up", "k":
		return m.handleUp(), nil

	case "down", "j":
		return m.handleDown(), nil

	case "home", "g":
		return m.handleHome(), nil

	case "end", "G":
		return m.handleEnd(), nil

	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.fetchCmd()

	case "f":
		m.priorityFilter = nextPriority(m.priorityFilter)
		m.selectedTask = 0
		m.taskScroll = 0
		m.loading = true
		return m, m.fetchCmd()
	}

	return m, nil
}

// nextPriority cycles "" -> high -> medium -> low -> "".
func nextPriority(current string) string {
	all := tasks.AllPriorities()
	if current == "" {
		return string(all[0])
	}
	for i, p := range all {
		if string(p) == current && i+1 < len(all) {
			return string(all[i+1])
		}
	}
	return ""
}

func (m Model) handleUp() Model {
	switch m.activePanel {
	case PanelTasks:
		if m.selectedTask > 0 {
			m.selectedTask--
		}
	case PanelActivity:
		if m.activityOffset > 0 {
			m.activityOffset--
		}
	}
	return m
}

func (m Model) handleDown() Model {
	switch m.activePanel {
	case PanelTasks:
		if m.selectedTask < len(m.tasks)-1 {
			m.selectedTask++
		}
	case PanelActivity:
		if m.activityOffset < len(m.events)-1 {
			m.activityOffset++
		}
	}
	return m
}

func (m Model) handleHome() Model {
	switch m.activePanel {
	case PanelTasks:
		m.selectedTask = 0
	case PanelActivity:
		m.activityOffset = 0
	}
	return m
}

func (m Model) handleEnd() Model {
	switch m.activePanel {
	case PanelTasks:
		if len(m.tasks) > 0 {
			m.selectedTask = len(m.tasks) - 1
		}
	case PanelActivity:
		if len(m.events) > 0 {
			m.activityOffset = len(m.events) - 1
		}
	}
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	topHeight := m.height / 2
	bottomHeight := m.height - topHeight - 3
	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth

	statsBorder := m.border(PanelStats).Width(leftWidth - 2).Height(topHeight - 2)
	tasksBorder := m.border(PanelTasks).Width(rightWidth - 2).Height(topHeight - 2)
	activityBorder := m.border(PanelActivity).Width(m.width - 2).Height(bottomHeight - 2)

	topRow := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statsBorder.Render(m.renderStatsPanel(leftWidth-2)),
		tasksBorder.Render(m.renderTaskPanel(rightWidth-2, topHeight-2)),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		topRow,
		activityBorder.Render(m.renderActivityPanel(m.width-2, bottomHeight-2)),
		m.renderHelpBar(),
	)
}

func (m Model) border(panel Panel) lipgloss.Style {
	if m.activePanel == panel {
		return m.styles.ActiveBorder
	}
	return m.styles.InactiveBorder
}

func (m Model) renderStatsPanel(width int) string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Taskflow"))
	b.WriteString("\n")

	b.WriteString(m.styles.Label.Render("Server: "))
	switch m.status {
	case ServerUp:
		b.WriteString(m.styles.StatusOK.Render("Up"))
		if m.version != "" {
			b.WriteString(m.styles.Muted.Render(" v" + m.version))
		}
	case ServerDown:
		b.WriteString(m.styles.StatusError.Render("Down"))
	default:
		b.WriteString(m.styles.StatusWarn.Render(m.spinner() + " connecting"))
	}
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(m.styles.StatusError.Render(truncate(m.lastErr.Error(), width-2)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	r := m.report
	writeKV(&b, m.styles, "Tasks", fmt.Sprintf("%d", r.TotalTasks))
	writeKV(&b, m.styles, "Auto-assigned", fmt.Sprintf("%d (%s)", r.AutoAssignedTasks, orDash(r.AutomationRate)))
	b.WriteString(m.renderRateBar(r.AutoAssignedTasks, r.TotalTasks, width-4))
	b.WriteString("\n")
	writeKV(&b, m.styles, "Time saved", orDash(r.EstimatedTimeSaved))
	b.WriteString("\n")

	b.WriteString(m.styles.Label.Render("By team: "))
	b.WriteString(formatCounts(r.TasksByTeam))
	b.WriteString("\n")
	b.WriteString(m.styles.Label.Render("By status: "))
	b.WriteString(formatCounts(r.TasksByStatus))
	b.WriteString("\n")

	b.WriteString(m.styles.Label.Render("Updated: "))
	if m.lastRefresh.IsZero() {
		b.WriteString(m.styles.Muted.Render("never"))
	} else {
		b.WriteString(m.styles.Value.Render(formatDuration(m.now().Sub(m.lastRefresh)) + " ago"))
	}

	return b.String()
}

// renderRateBar draws part/total as a filled bar.
func (m Model) renderRateBar(part, total, width int) string {
	if width < 10 {
		width = 10
	}
	filled := 0
	if total > 0 {
		filled = width * part / total
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("=", filled) + strings.Repeat("-", width-filled)
	style := m.styles.StatusOK
	if total > 0 && part*2 < total {
		style = m.styles.StatusWarn
	}
	return "[" + style.Render(bar) + "]"
}

func (m Model) renderTaskPanel(width, height int) string {
	var b strings.Builder

	title := "Tasks"
	if m.priorityFilter != "" {
		title += " (" + m.priorityFilter + ")"
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	if len(m.tasks) == 0 {
		b.WriteString(m.styles.Muted.Render("No tasks"))
		return b.String()
	}

	visible := height - 3
	if visible < 1 {
		visible = 1
	}

	scroll := m.taskScroll
	if m.selectedTask < scroll {
		scroll = m.selectedTask
	} else if m.selectedTask >= scroll+visible {
		scroll = m.selectedTask - visible + 1
	}

	now := m.now()
	for i := scroll; i < len(m.tasks) && i < scroll+visible; i++ {
		t := m.tasks[i]
		prio := m.styles.PriorityStyle(string(t.Priority)).Render(fmt.Sprintf("%-6s", t.Priority))
		due := "due " + formatDue(t.DueDate.Sub(now))
		line := fmt.Sprintf(" #%-3d %s %s", t.ID, prio, truncate(t.Title, width-30))
		line += m.styles.Muted.Render(fmt.Sprintf("  %s  %s  %s", t.Status, t.AssignedTo, due))

		if i == m.selectedTask && m.activePanel == PanelTasks {
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.tasks) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", m.selectedTask+1, len(m.tasks))))
	}
	return b.String()
}

func (m Model) renderActivityPanel(width, height int) string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Activity"))
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString(m.styles.Muted.Render("No activity yet"))
		return b.String()
	}

	visible := height - 3
	if visible < 1 {
		visible = 1
	}

	for i := m.activityOffset; i < len(m.events) && i < m.activityOffset+visible; i++ {
		ev := m.events[i]

		actionStyle := m.styles.StatusInfo
		switch ev.Action {
		case audit.ActionCreate:
			actionStyle = m.styles.StatusOK
		case audit.ActionDenied:
			actionStyle = m.styles.StatusError
		}

		line := fmt.Sprintf("%s %s %s %s",
			m.styles.Muted.Render(ev.Timestamp.Local().Format("15:04:05")),
			actionStyle.Render(fmt.Sprintf("[%-6s]", ev.Action)),
			ev.EntityType,
			truncate(ev.EntityID, width-30),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.events) > visible {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf(" [%d/%d]", m.activityOffset+1, len(m.events))))
	}
	return b.String()
}

func (m Model) renderHelpBar() string {
	helpItems := []struct {
		key  string
		desc string
	}{
		{"tab", "switch panel"},
		{"j/k", "up/down"},
		{"f", "priority filter"},
		{"r", "refresh"},
		{"q", "quit"},
	}

	var parts []string
	for _, item := range helpItems {
		parts = append(parts, fmt.Sprintf("%s %s",
			m.styles.HelpKey.Render(item.key),
			m.styles.HelpText.Render(item.desc),
		))
	}
	return "  " + strings.Join(parts, "  |  ")
}

func (m Model) spinner() string {
	frames := []string{"|", "/", "-", "\\"}
	return frames[m.tick%len(frames)]
}

func writeKV(b *strings.Builder, s *Styles, label, value string) {
	b.WriteString(s.Label.Render(label + ": "))
	b.WriteString(s.Value.Render(value))
	b.WriteString("\n")
}

// formatCounts renders a count map as "a=1 b=2", keys sorted.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// formatDue renders time until a due date, or how overdue it is.
func formatDue(d time.Duration) string {
	if d < 0 {
		return formatDuration(-d) + " overdue"
	}
	return "in " + formatDuration(d)
}

// Run starts the dashboard and blocks until the user quits.
func (m *Model) Run() error {
	p := tea.NewProgram(*m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
