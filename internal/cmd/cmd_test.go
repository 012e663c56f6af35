package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// isolateEnv points config, data, and working directories at temp dirs so
// commands cannot touch the real user environment.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	workDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(workDir); err != nil {
		t.Fatalf("changing to test directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
		viper.Reset()
	})
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if rootCmd.Use != "bugrd" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "bugrd")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"capture", "spool", "config", "version"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(rootCmd, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "bugrd") {
		t.Errorf("version output = %q, want bugrd mentioned", out)
	}
}

func TestConfigPathCommand(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, "config.yaml") {
		t.Errorf("config path output = %q, want a config.yaml path", out)
	}
}

func TestConfigShowCommand(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"consent:", "spool:", "collector:", "logging:"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitCommand(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "created") {
		t.Errorf("config init output = %q, want created message", out)
	}

	// A second init must refuse to overwrite.
	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Error("second config init should fail")
	}
}

func TestSpoolListEmpty(t *testing.T) {
	isolateEnv(t)

	out, err := executeCommand(rootCmd, "spool", "list")
	if err != nil {
		t.Fatalf("spool list: %v", err)
	}
	if !strings.Contains(out, "no retained captures") {
		t.Errorf("spool list output = %q, want empty-spool message", out)
	}
}

func TestSpoolExportUnknownSession(t *testing.T) {
	isolateEnv(t)

	if _, err := executeCommand(rootCmd, "spool", "export", "no-such-session"); err == nil {
		t.Error("export of unknown session should fail")
	}
}

func TestCaptureRejectsBadMode(t *testing.T) {
	isolateEnv(t)

	_, err := executeCommand(rootCmd, "capture", "--mode", "bogus", "--yes", "--fake")
	if err == nil {
		t.Fatal("capture with bad mode should fail")
	}
	if !strings.Contains(err.Error(), "mode") {
		t.Errorf("error = %v, want mode mentioned", err)
	}
	// Reset sticky flag state for other tests.
	captureMode = "full"
}

func TestCaptureFakeEndToEnd(t *testing.T) {
	isolateEnv(t)

	output := filepath.Join(t.TempDir(), "report.zip")
	out, err := executeCommand(rootCmd,
		"capture", "--fake", "--yes", "--output", output, "--requester", "test")
	if err != nil {
		t.Fatalf("capture: %v\noutput: %s", err, out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if len(data) == 0 {
		t.Error("report file is empty")
	}
	if !strings.Contains(out, "report written") {
		t.Errorf("capture output = %q, want completion message", out)
	}

	captureOutput = ""
	captureYes = false
	captureFake = false
}
