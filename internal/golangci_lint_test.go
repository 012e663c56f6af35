package internal

import (
	"os"
	"os/exec"
	"testing"
)

// TestGolangciLintCompliance runs golangci-lint over the whole module.
// Skipped when the tool is not installed; fix failures with:
// golangci-lint run ./...
func TestGolangciLintCompliance(t *testing.T) {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not installed")
	}

	root := moduleRoot(t)

	// A private build cache keeps the run working on sandboxed CI runners
	// with a read-only default cache.
	cmd := exec.Command("golangci-lint", "run", "--allow-parallel-runners", "./...")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GOCACHE="+t.TempDir())

	if output, err := cmd.CombinedOutput(); err != nil {
		t.Errorf("golangci-lint reported issues:\n%s", output)
	}
}
