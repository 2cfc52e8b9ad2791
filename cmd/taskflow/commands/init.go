package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marcus/taskflow/internal/config"
)

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create configuration file",
	Long: `Initialize a new taskflow configuration file.

By default, creates taskflow.yaml in the current directory.
Use --global to create a global config at ~/.config/taskflow/config.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("global", false, "Create global config instead of project config")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config without prompting")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	global, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")
	out := cmd.OutOrStdout()

	configPath := config.GlobalConfigPath()
	configType := "global"
	if !global {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		configPath = filepath.Join(cwd, config.ProjectConfigName)
		configType = "project"
	}

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "%sConfig already exists:%s %s\n", colorYellow, colorReset, configPath)
		if !confirm(cmd.InOrStdin(), out, "Overwrite? [y/N]: ") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := writeDefaultConfig(configPath, global); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s%sCreated %s config:%s %s\n\n", colorBold, colorGreen, configType, colorReset, configPath)
	fmt.Fprintf(out, "%sNext steps:%s\n", colorCyan, colorReset)
	fmt.Fprintln(out, "  1. Set server.api_key to a real secret")
	fmt.Fprintln(out, "  2. Run 'taskflow config validate' to verify")
	fmt.Fprintln(out, "  3. Run 'taskflow serve' to start the API")
	fmt.Fprintln(out)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// writeDefaultConfig writes the defaults to path, creating parent directories.
func writeDefaultConfig(path string, global bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	content, err := generateDefaultConfig(global)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// generateDefaultConfig renders config.Default() as YAML under a comment header.
func generateDefaultConfig(global bool) ([]byte, error) {
	body, err := yaml.Marshal(config.Default())
	if err != nil {
		return nil, fmt.Errorf("encode default config: %w", err)
	}

	var b strings.Builder
	if global {
		b.WriteString("# Taskflow Global Configuration\n")
		b.WriteString("# Location: ~/.config/taskflow/config.yaml\n")
		b.WriteString("#\n")
		b.WriteString("# Per-project configs (taskflow.yaml) override these settings.\n")
	} else {
		b.WriteString("# Taskflow Project Configuration\n")
		b.WriteString("#\n")
		b.WriteString("# Overrides ~/.config/taskflow/config.yaml for this directory.\n")
	}
	b.WriteString("# Environment variables win over both, e.g. TASKFLOW_SERVER_ADDR or API_KEY.\n")
	b.WriteString("# Schedule entries take cron expressions; leave one empty to disable the job.\n\n")
	b.Write(body)
	return []byte(b.String()), nil
}
