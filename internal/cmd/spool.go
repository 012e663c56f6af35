package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/DigiGoon/bugrd/internal/config"
	"github.com/DigiGoon/bugrd/internal/logging"
)

var spoolCmd = &cobra.Command{
	Use:   "spool",
	Short: "Manage captures retained for manual retrieval",
	Long: `Manage spooled captures.

When a capture's consent window expires, the artifact is not shared with
the requester but stays in the local spool. These commands list, export,
and remove those retained captures.`,
	RunE: runSpoolList,
}

var spoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained captures",
	RunE:  runSpoolList,
}

var spoolExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a retained capture's report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpoolExport,
}

var spoolRemoveCmd = &cobra.Command{
	Use:   "remove <session-id>",
	Short: "Remove a spooled capture",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpoolRemove,
}

var spoolPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove retained captures past the retention window",
	RunE:  runSpoolPrune,
}

var spoolExportOutput string

func init() {
	rootCmd.AddCommand(spoolCmd)
	spoolCmd.AddCommand(spoolListCmd)
	spoolCmd.AddCommand(spoolExportCmd)
	spoolCmd.AddCommand(spoolRemoveCmd)
	spoolCmd.AddCommand(spoolPruneCmd)

	spoolExportCmd.Flags().StringVarP(&spoolExportOutput, "output", "o", "",
		"output file (default bugreport-<session-id>.zip)")
}

func runSpoolList(cmd *cobra.Command, args []string) error {
	sp, err := openSpool(config.Get(), logging.NopLogger())
	if err != nil {
		return err
	}

	entries, err := sp.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("no retained captures")
		return nil
	}

	cmd.Printf("%-36s  %-20s  %s\n", "SESSION", "RETAINED AT", "SCREENSHOT")
	for _, entry := range entries {
		screenshot := "no"
		if entry.ScreenshotPath != "" {
			screenshot = "yes"
		}
		cmd.Printf("%-36s  %-20s  %s\n",
			entry.SessionID, entry.CreatedAt.Local().Format("2006-01-02 15:04:05"), screenshot)
	}
	return nil
}

func runSpoolExport(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	sp, err := openSpool(config.Get(), logging.NopLogger())
	if err != nil {
		return err
	}

	output := spoolExportOutput
	if output == "" {
		output = fmt.Sprintf("bugreport-%s.zip", sessionID)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := sp.Export(sessionID, f); err != nil {
		os.Remove(output)
		return err
	}
	cmd.Printf("report written to %s\n", output)
	return nil
}

func runSpoolRemove(cmd *cobra.Command, args []string) error {
	sp, err := openSpool(config.Get(), logging.NopLogger())
	if err != nil {
		return err
	}
	if err := sp.Remove(args[0]); err != nil {
		return err
	}
	cmd.Printf("removed %s\n", args[0])
	return nil
}

func runSpoolPrune(cmd *cobra.Command, args []string) error {
	sp, err := openSpool(config.Get(), logging.NopLogger())
	if err != nil {
		return err
	}
	removed, err := sp.Prune(time.Now())
	if err != nil {
		return err
	}
	cmd.Printf("removed %d expired capture(s)\n", removed)
	return nil
}
