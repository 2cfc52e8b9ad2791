// Package commands implements the taskflow CLI commands using cobra.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/client"
	"github.com/marcus/taskflow/internal/config"
	"github.com/marcus/taskflow/internal/logging"
)

var (
	// Version is set at build time
	Version = "1.0.0"
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Task workflow automation service",
	Long: `Taskflow is a task-tracking service that auto-assigns incoming tasks to a
team and computes due dates from their priority.

Run 'taskflow serve' to start the API, then use the task, workflow and
stats commands (or 'taskflow dashboard') against it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: taskflow.yaml, then ~/.config/taskflow/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Server URL for client commands (default: derived from server.addr)")
	rootCmd.PersistentFlags().String("api-key", "", "API key for client commands (default: server.api_key)")
}

// loadConfig honours --config, falling back to the layered lookup.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// newClient builds an API client from flags and config.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	server, _ := cmd.Flags().GetString("server")
	if server == "" {
		server = serverURL(cfg.Server.Addr)
	}
	key, _ := cmd.Flags().GetString("api-key")
	if key == "" {
		key = cfg.Server.APIKey
	}
	return client.New(server, key), nil
}

// serverURL turns a listen address into a URL a local client can reach.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	} else if strings.HasPrefix(host, "0.0.0.0:") {
		host = "localhost" + strings.TrimPrefix(host, "0.0.0.0")
	}
	return "http://" + host
}

func initLogging(cfg *config.Config) error {
	return logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.ExpandedLogPath(),
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
}
