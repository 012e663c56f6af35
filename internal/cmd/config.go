package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DigiGoon/bugrd/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View bugrd configuration",
	Long: `View bugrd configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/bugrd/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	cmd.Println("Current configuration:")
	cmd.Println()
	cmd.Println("consent:")
	cmd.Printf("  timeout_seconds: %d\n", cfg.Consent.TimeoutSeconds)
	cmd.Printf("  auto_approve: %t\n", cfg.Consent.AutoApprove)
	cmd.Println("spool:")
	cmd.Printf("  dir: %s\n", cfg.Spool.ResolveDir(config.DataDir()))
	cmd.Printf("  retention_hours: %d\n", cfg.Spool.RetentionHours)
	cmd.Println("collector:")
	if cfg.Collector.Command == "" {
		cmd.Println("  command: (built-in fake collector)")
	} else {
		cmd.Printf("  command: %s\n", cfg.Collector.Command)
		cmd.Printf("  args: %s\n", strings.Join(cfg.Collector.Args, " "))
	}
	cmd.Printf("  estimated_report_mb: %d\n", cfg.Collector.EstimatedReportMB)
	cmd.Println("logging:")
	cmd.Printf("  enabled: %t\n", cfg.Logging.Enabled)
	cmd.Printf("  level: %s\n", cfg.Logging.Level)
	if cfg.Logging.Dir == "" {
		cmd.Println("  dir: (stderr)")
	} else {
		cmd.Printf("  dir: %s\n", cfg.Logging.Dir)
	}
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cmd.Println(config.ConfigFile())
	return nil
}

const defaultConfigTemplate = `# bugrd configuration

consent:
  # How long the user has to approve or deny sharing, in seconds.
  timeout_seconds: 1800
  # Approve immediately without prompting. Headless use only.
  auto_approve: false

spool:
  # Staging directory. Empty uses the default data directory.
  dir: ""
  # How long retained captures survive before pruning. 0 keeps forever.
  retention_hours: 72

collector:
  # External collector command. Empty uses the built-in fake collector.
  # The placeholders {report}, {screenshot}, and {mode} are expanded.
  command: ""
  args: []
  # Expected report size, used for file-growth progress estimation.
  estimated_report_mb: 20

logging:
  enabled: true
  level: info
  # Log directory. Empty logs to stderr.
  dir: ""
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	cmd.Printf("created %s\n", path)
	return nil
}
