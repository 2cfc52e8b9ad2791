package commands

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/taskflow/internal/api"
	"github.com/marcus/taskflow/internal/config"
	"github.com/marcus/taskflow/internal/logging"
	"github.com/marcus/taskflow/internal/tasks"
	"github.com/marcus/taskflow/internal/workflows"
)

func TestServerURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":5000", "http://localhost:5000"},
		{"0.0.0.0:8080", "http://localhost:8080"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000"},
		{"http://tasks.internal", "http://tasks.internal"},
		{"https://tasks.example.com", "https://tasks.example.com"},
	}
	for _, tt := range tests {
		if got := serverURL(tt.addr); got != tt.want {
			t.Errorf("serverURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestFormatLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DBG",
		"info":  "INF",
		"warn":  "WRN",
		"error": "ERR",
		"fatal": "FTL",
		"trace": "TRA",
		"x":     "X",
	}
	for in, want := range tests {
		if got := formatLogLevel(in); got != want {
			t.Errorf("formatLogLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintLogLine(t *testing.T) {
	var buf bytes.Buffer
	printLogLine(&buf, `{"level":"warn","time":"2026-05-01T10:00:00Z","component":"http","method":"GET","path":"/api/tasks","status":401,"request_id":"abc","message":"request"}`)
	got := buf.String()
	assert.Contains(t, got, "WRN [http] request GET /api/tasks 401")
	assert.Contains(t, got, "request_id=abc")

	buf.Reset()
	printLogLine(&buf, "plain text line")
	assert.Equal(t, "plain text line\n", buf.String())
}

func TestReadLastLinesAndExport(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "taskflow-2026-05-01.log")
	newer := filepath.Join(dir, "taskflow-2026-05-02.log")
	require.NoError(t, os.WriteFile(older, []byte("a\nb\nc\n"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("d\ne\n"), 0644))

	files := []string{newer, older}
	assert.Equal(t, []string{"c", "d", "e"}, readLastLines(files, 3))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, readLastLines(files, 10))

	var out bytes.Buffer
	dst := filepath.Join(t.TempDir(), "export.log")
	require.NoError(t, exportLogs(&out, dir, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nd\ne\n", string(data))
	assert.Contains(t, out.String(), "Exported 5 log lines")
}

func TestShowLogsEmptyDir(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, showLogs(&out, filepath.Join(t.TempDir(), "missing"), 10))
	assert.Contains(t, out.String(), "No log files found")
}

func TestPatchFromFlags(t *testing.T) {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	fs.String("status", "", "")
	fs.String("assigned-to", "", "")
	fs.String("description", "", "")
	fs.String("priority", "", "")
	require.NoError(t, fs.Parse([]string{"--status", "done", "--assigned-to", ""}))

	p := patchFromFlags(fs)
	require.NotNil(t, p.Status)
	assert.Equal(t, "done", *p.Status)
	require.NotNil(t, p.AssignedTo)
	assert.Equal(t, "", *p.AssignedTo)
	assert.Nil(t, p.Description)
	assert.Nil(t, p.Priority)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad)
		assert.Error(t, err, "parseID(%q)", bad)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "de*********45", maskSecret("dev-key-12345"))
}

func TestJoinCounts(t *testing.T) {
	got := joinCounts(map[string]int{"open": 3, "blocked": 1, "done": 3})
	assert.Equal(t, "done: 3  open: 3  blocked: 1", got)
}

func TestGeneratedConfigLoads(t *testing.T) {
	t.Setenv("API_KEY", "")
	t.Setenv("TASKFLOW_SERVER_API_KEY", "")

	for _, global := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "nested", config.ProjectConfigName)
		require.NoError(t, writeDefaultConfig(path, global))

		cfg, err := config.LoadFile(path)
		require.NoError(t, err)
		require.NoError(t, config.Validate(cfg))

		want := config.Default()
		want.Source = path
		assert.Equal(t, want, cfg)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "? "))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader(""), &out, "? "))
}

// execute runs the root command with args and returns everything written
// to stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestClientCommandsAgainstServer(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	const key = "test-key"
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	srv := api.New(tasks.NewStore(tasks.WithClock(func() time.Time { return now })), workflows.NewStore(nil), api.Options{APIKey: key})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := []string{"--server", ts.URL, "--api-key", key}

	out, err := execute(t, append([]string{"task", "create",
		"--title", "Fix login", "--type", "bug", "--priority", "high"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Task created and auto-assigned (id 1)")
	assert.Contains(t, out, "Assigned to: dev-team")

	out, err = execute(t, append([]string{"task", "get", "1"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "#1 Fix login")
	assert.Contains(t, out, "Priority:    high")

	out, err = execute(t, append([]string{"task", "update", "1", "--status", "done"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Task updated")
	assert.Contains(t, out, "Status:      done")

	out, err = execute(t, append([]string{"workflow", "create",
		"--name", "Bug triage", "--trigger", "task_created", "--action", "assign", "--action", "notify"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Workflow created (id 1)")

	out, err = execute(t, append([]string{"stats"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Total:           1")
	assert.Contains(t, out, "dev-team: 1")

	out, err = execute(t, append([]string{"health"}, conn...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")
}

func TestClientCommandRejectedKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	srv := api.New(tasks.NewStore(), workflows.NewStore(nil), api.Options{APIKey: "right"})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, err := execute(t, "workflow", "list", "--server", ts.URL, "--api-key", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestKeyRotatorLogsOncePerRotation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Output: &buf})
	require.NoError(t, err)

	srv := api.New(tasks.NewStore(), workflows.NewStore(nil), api.Options{APIKey: "old", Logger: logger})
	onChange := keyRotator(logger, srv, "old")

	next := config.Default()
	next.Server.APIKey = "new"
	onChange(next, nil)
	onChange(next, nil)
	onChange(nil, errors.New("bad yaml"))

	logs := buf.String()
	assert.Equal(t, 1, strings.Count(logs, "api key rotated"), logs)
	assert.Contains(t, logs, "config reload rejected: bad yaml")

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	_, err = execute(t, "workflow", "list", "--server", ts.URL, "--api-key", "new")
	require.NoError(t, err)
}
