package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View server logs",
	Long: `View taskflow server logs written to logging.path.

Displays recent log entries. Use --follow to stream logs in real-time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tail, _ := cmd.Flags().GetInt("tail")
		follow, _ := cmd.Flags().GetBool("follow")
		export, _ := cmd.Flags().GetString("export")

		logDir := logging.DefaultLogDir()
		if cfg, err := loadConfig(cmd); err == nil && cfg.Logging.Path != "" {
			logDir = cfg.ExpandedLogPath()
		}

		out := cmd.OutOrStdout()
		if export != "" {
			return exportLogs(out, logDir, export)
		}
		if follow {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return followLogs(ctx, out, logDir, tail)
		}
		return showLogs(out, logDir, tail)
	},
}

func init() {
	logsCmd.Flags().IntP("tail", "n", 50, "Number of log lines to show")
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().StringP("export", "e", "", "Export logs to file")
	rootCmd.AddCommand(logsCmd)
}

// logEntry represents a parsed JSON log line
type logEntry struct {
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
	Component string    `json:"component,omitempty"`
	Error     string    `json:"error,omitempty"`
	Method    string    `json:"method,omitempty"`
	Path      string    `json:"path,omitempty"`
	Status    int       `json:"status,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func showLogs(out io.Writer, logDir string, n int) error {
	files, err := logging.Files(logDir)
	if err != nil {
		return fmt.Errorf("reading log dir: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No log files found in %s.\n", logDir)
		return nil
	}

	for _, line := range readLastLines(files, n) {
		printLogLine(out, line)
	}
	return nil
}

func followLogs(ctx context.Context, out io.Writer, logDir string, initialLines int) error {
	files, err := logging.Files(logDir)
	if err != nil {
		return fmt.Errorf("reading log dir: %w", err)
	}
	if len(files) > 0 && initialLines > 0 {
		for _, line := range readLastLines(files, initialLines) {
			printLogLine(out, line)
		}
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	t := &tailer{}
	defer t.close()
	if current := currentLogFile(logDir); current != "" {
		t.open(current, true)
	}

	fmt.Fprintln(out, "--- Following logs (Ctrl+C to exit) ---")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Date rollover starts a new file; read it from the beginning.
			if current := currentLogFile(logDir); current != "" && current != t.path {
				t.open(current, false)
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				t.drain(func(line string) { printLogLine(out, line) })
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

// tailer reads complete lines appended to one file.
type tailer struct {
	path   string
	file   *os.File
	reader *bufio.Reader
}

func (t *tailer) open(path string, atEnd bool) {
	t.close()
	f, err := os.Open(path)
	if err != nil {
		return
	}
	if atEnd {
		_, _ = f.Seek(0, io.SeekEnd)
	}
	t.path, t.file, t.reader = path, f, bufio.NewReader(f)
}

func (t *tailer) drain(emit func(string)) {
	if t.reader == nil {
		return
	}
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return
		}
		emit(strings.TrimSuffix(line, "\n"))
	}
}

func (t *tailer) close() {
	if t.file != nil {
		_ = t.file.Close()
	}
	t.path, t.file, t.reader = "", nil, nil
}

func exportLogs(out io.Writer, logDir, outFile string) error {
	files, err := logging.Files(logDir)
	if err != nil {
		return fmt.Errorf("reading log dir: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no log files found in %s", logDir)
	}

	dst, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	w := bufio.NewWriter(dst)
	totalLines := 0

	// Process files in chronological order (oldest first)
	for i := len(files) - 1; i >= 0; i-- {
		for _, line := range readFileLines(files[i]) {
			_, _ = w.WriteString(line + "\n")
			totalLines++
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}

	fmt.Fprintf(out, "Exported %d log lines to %s\n", totalLines, outFile)
	return nil
}

func currentLogFile(logDir string) string {
	path := filepath.Join(logDir, logging.FileName(time.Now()))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// readLastLines returns the last n lines across files, which are newest first.
func readLastLines(files []string, n int) []string {
	var lines []string
	for _, file := range files {
		if len(lines) >= n {
			break
		}
		fileLines := readFileLines(file)
		remaining := n - len(lines)
		if len(fileLines) > remaining {
			fileLines = fileLines[len(fileLines)-remaining:]
		}
		lines = append(fileLines, lines...)
	}
	return lines
}

func readFileLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func printLogLine(out io.Writer, line string) {
	var entry logEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Level == "" {
		fmt.Fprintln(out, line)
		return
	}

	var b strings.Builder
	b.WriteString(entry.Time.Local().Format("15:04:05"))
	b.WriteString(" ")
	b.WriteString(formatLogLevel(entry.Level))
	if entry.Component != "" {
		fmt.Fprintf(&b, " [%s]", entry.Component)
	}
	b.WriteString(" ")
	b.WriteString(entry.Message)
	if entry.Method != "" {
		fmt.Fprintf(&b, " %s %s %d", entry.Method, entry.Path, entry.Status)
	}
	if entry.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", entry.RequestID)
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%s", entry.Error)
	}
	fmt.Fprintln(out, b.String())
}

func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return "DBG"
	case "info":
		return "INF"
	case "warn":
		return "WRN"
	case "error":
		return "ERR"
	case "fatal":
		return "FTL"
	case "panic":
		return "PNC"
	}
	if len(level) >= 3 {
		return strings.ToUpper(level[:3])
	}
	return strings.ToUpper(level)
}
