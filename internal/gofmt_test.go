package internal

import (
	"bytes"
	"go/format"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestGofmtCompliance checks that every Go source file under internal/ and
// cmd/ is gofmt-clean. Fix failures with: gofmt -w ./internal ./cmd/bugrd
func TestGofmtCompliance(t *testing.T) {
	root := moduleRoot(t)

	var unformatted []string
	for _, dir := range []string{filepath.Join(root, "internal"), filepath.Join(root, "cmd")} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") {
				return nil
			}

			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			formatted, err := format.Source(src)
			if err != nil {
				// Parse errors are the compiler's problem, not gofmt's.
				return nil
			}
			if !bytes.Equal(src, formatted) {
				rel, _ := filepath.Rel(root, path)
				unformatted = append(unformatted, rel)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walking %s: %v", dir, err)
		}
	}

	for _, f := range unformatted {
		t.Errorf("not gofmt-clean: %s", f)
	}
	if len(unformatted) > 0 {
		t.Error("run: gofmt -w ./internal ./cmd/bugrd")
	}
}

// moduleRoot resolves the bugrd module root whether the test runs from
// internal/ or from the root itself.
func moduleRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if filepath.Base(wd) == "internal" {
		return filepath.Dir(wd)
	}
	return wd
}
