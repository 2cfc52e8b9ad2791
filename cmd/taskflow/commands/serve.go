package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/taskflow/internal/api"
	"github.com/marcus/taskflow/internal/audit"
	"github.com/marcus/taskflow/internal/config"
	"github.com/marcus/taskflow/internal/db"
	"github.com/marcus/taskflow/internal/logging"
	"github.com/marcus/taskflow/internal/scheduler"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/tasks"
	"github.com/marcus/taskflow/internal/workflows"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the task workflow API.

Tasks and workflows live in memory for the lifetime of the process. The
side database keeps the audit trail and periodic statistics snapshots.
Editing the active config file rotates the API key without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("no-watch", false, "Do not watch the config file for API key changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := initLogging(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component("serve")

	database, err := db.Open(cfg.ExpandedDBPath())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = database.Close() }()

	var auditLog *audit.Logger
	if cfg.Audit.Enabled {
		auditLog, err = audit.NewLogger(database)
		if err != nil {
			return fmt.Errorf("init audit: %w", err)
		}
	}

	taskStore := tasks.NewStore()
	server := api.New(taskStore, workflows.NewStore(nil), api.Options{
		APIKey: cfg.Server.APIKey,
		Audit:  auditLog,
		DB:     database,
	})

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched, err := buildScheduler(cfg, taskStore, database, auditLog)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil && !errors.Is(err, scheduler.ErrNoJobs) {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = sched.Stop() }()

	noWatch, _ := cmd.Flags().GetBool("no-watch")
	if !noWatch && cfg.Source != "" {
		watchAPIKey(cmd, cfg, server)
	}

	if cfg.Server.APIKey == config.DefaultAPIKey {
		log.Warn("using the built-in development API key; set server.api_key or API_KEY")
	}
	log.InfoCtx("listening", map[string]any{
		"addr":   cfg.Server.Addr,
		"db":     database.Path(),
		"audit":  auditLog != nil,
		"config": cfg.Source,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "taskflow %s listening on %s\n", Version, cfg.Server.Addr)

	if err := server.Run(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}

// buildScheduler registers the background jobs the config enables.
func buildScheduler(cfg *config.Config, ts *tasks.Store, database *db.DB, auditLog *audit.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New()

	if err := sched.Add(scheduler.JobStatsSnapshot, cfg.Schedule.StatsSnapshot,
		scheduler.StatsSnapshotJob(stats.New(ts), database, nil)); err != nil {
		return nil, err
	}
	if auditLog != nil {
		if err := sched.Add(scheduler.JobAuditPrune, cfg.Schedule.AuditPrune,
			scheduler.AuditPruneJob(auditLog, cfg.Audit.RetentionDays, nil)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// watchAPIKey rotates the server's key whenever the config file changes.
// Invalid edits are logged and the previous key stays active.
func watchAPIKey(cmd *cobra.Command, cfg *config.Config, server *api.Server) {
	log := logging.Component("config")

	reload := func() (*config.Config, error) { return loadConfig(cmd) }
	err := config.Watch(cfg.Source, reload, keyRotator(log, server, cfg.Server.APIKey))
	if err != nil {
		log.Warnf("config watch disabled: %v", err)
	}
}

// keyRotator pushes a changed API key to server. SetAPIKey logs the rotation.
func keyRotator(log *logging.Logger, server *api.Server, current string) func(*config.Config, error) {
	return func(next *config.Config, err error) {
		if err != nil {
			log.Errorf("config reload rejected: %v", err)
			return
		}
		if next.Server.APIKey == current {
			return
		}
		current = next.Server.APIKey
		server.SetAPIKey(current)
	}
}
