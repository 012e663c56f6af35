// Package spool stages capture artifacts on disk while consent is pending.
// Artifacts never reach the caller's sinks until the user approves sharing;
// until then they live in a per-session spool directory. Entries whose
// consent request timed out can be retained for manual retrieval and are
// pruned after a retention window.
package spool

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DigiGoon/bugrd/internal/errors"
	"github.com/DigiGoon/bugrd/internal/logging"
)

const (
	// ReportFileName is the artifact file a collector writes into an entry.
	ReportFileName = "report.zip"
	// ScreenshotFileName is the optional screenshot file.
	ScreenshotFileName = "screenshot.png"

	retainedMarker = "RETAINED"
	dirPerm        = 0o700
	filePerm       = 0o600
)

// Entry is one session's staging area inside the spool.
type Entry struct {
	// SessionID is the owning capture session.
	SessionID string
	// Dir is the entry's directory.
	Dir string
	// ReportPath is where the collector writes the report artifact.
	ReportPath string
	// ScreenshotPath is where the collector writes the screenshot, or empty
	// if the session did not request one.
	ScreenshotPath string
	// CreatedAt is when the entry was created.
	CreatedAt time.Time
	// Retained reports whether the entry was kept for manual retrieval.
	Retained bool
}

// Spool manages the staging directory. It is safe for concurrent use as
// long as each entry is driven by a single session.
type Spool struct {
	dir       string
	retention time.Duration
	logger    *logging.Logger
}

// New creates a spool rooted at dir, creating the directory if needed.
// Retained entries older than retention are removed by Prune.
func New(dir string, retention time.Duration, logger *logging.Logger) (*Spool, error) {
	if dir == "" {
		return nil, errors.NewValidationError("spool directory is required").
			WithField("dir")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Spool{
		dir:       dir,
		retention: retention,
		logger:    logger.WithComponent("spool"),
	}, nil
}

// Dir returns the spool's root directory.
func (s *Spool) Dir() string {
	return s.dir
}

// Create allocates a staging entry for sessionID. The report file is created
// empty so growth watchers have something to watch from the start.
func (s *Spool) Create(sessionID string, wantScreenshot bool) (*Entry, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("session id is required").
			WithField("sessionID")
	}

	entryDir := filepath.Join(s.dir, sessionID)
	if err := os.Mkdir(entryDir, dirPerm); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("spool entry for session %s already exists: %w", sessionID, err)
		}
		return nil, fmt.Errorf("creating spool entry: %w", err)
	}

	entry := &Entry{
		SessionID:  sessionID,
		Dir:        entryDir,
		ReportPath: filepath.Join(entryDir, ReportFileName),
		CreatedAt:  time.Now(),
	}
	if wantScreenshot {
		entry.ScreenshotPath = filepath.Join(entryDir, ScreenshotFileName)
	}

	f, err := os.OpenFile(entry.ReportPath, os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		os.RemoveAll(entryDir)
		return nil, fmt.Errorf("creating report file: %w", err)
	}
	f.Close()

	s.logger.Debug("spool entry created", "session_id", sessionID, "dir", entryDir)
	return entry, nil
}

// Release copies the entry's artifacts into the caller's sinks and removes
// the entry. The screenshot is copied only when both the entry staged one
// and screenshotSink is non-nil; a missing screenshot file is not an error
// because collectors may legitimately skip it.
func (s *Spool) Release(entry *Entry, reportSink, screenshotSink io.Writer) error {
	if reportSink == nil {
		return errors.NewValidationError("report sink is required").
			WithField("reportSink")
	}

	if err := copyFile(entry.ReportPath, reportSink); err != nil {
		return fmt.Errorf("releasing report for session %s: %w", entry.SessionID, err)
	}

	if entry.ScreenshotPath != "" && screenshotSink != nil {
		if err := copyFile(entry.ScreenshotPath, screenshotSink); err != nil {
			if !os.IsNotExist(errors.Unwrap(err)) && !os.IsNotExist(err) {
				return fmt.Errorf("releasing screenshot for session %s: %w", entry.SessionID, err)
			}
			s.logger.Warn("screenshot missing at release", "session_id", entry.SessionID)
		}
	}

	s.logger.Info("spool entry released", "session_id", entry.SessionID)
	return s.Discard(entry)
}

// Discard removes the entry and its artifacts.
func (s *Spool) Discard(entry *Entry) error {
	if err := os.RemoveAll(entry.Dir); err != nil {
		return fmt.Errorf("discarding spool entry for session %s: %w", entry.SessionID, err)
	}
	s.logger.Debug("spool entry discarded", "session_id", entry.SessionID)
	return nil
}

// Keep marks the entry retained for manual retrieval. Retained entries
// survive until exported, removed, or pruned past the retention window.
func (s *Spool) Keep(entry *Entry) error {
	marker := filepath.Join(entry.Dir, retainedMarker)
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := os.WriteFile(marker, []byte(stamp+"\n"), filePerm); err != nil {
		return fmt.Errorf("retaining spool entry for session %s: %w", entry.SessionID, err)
	}
	entry.Retained = true
	s.logger.Info("spool entry retained for manual retrieval", "session_id", entry.SessionID)
	return nil
}

// List returns the retained entries, oldest first.
func (s *Spool) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing spool: %w", err)
	}

	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		entry, err := s.load(d.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable spool entry", "session_id", d.Name(), "error", err)
			continue
		}
		if entry.Retained {
			entries = append(entries, *entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Export copies a retained entry's report into w. The entry stays in the
// spool; use Remove to delete it afterwards.
func (s *Spool) Export(sessionID string, w io.Writer) error {
	entry, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if !entry.Retained {
		return errors.NewSessionError("entry is not retained", errors.ErrNotFound).
			WithSessionID(sessionID)
	}
	if err := copyFile(entry.ReportPath, w); err != nil {
		return fmt.Errorf("exporting session %s: %w", sessionID, err)
	}
	return nil
}

// Remove deletes an entry by session id.
func (s *Spool) Remove(sessionID string) error {
	entry, err := s.load(sessionID)
	if err != nil {
		return err
	}
	return s.Discard(entry)
}

// Prune removes retained entries older than the retention window and
// returns how many were removed. A zero retention disables pruning.
func (s *Spool) Prune(now time.Time) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	entries, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := now.Add(-s.retention)
	for i := range entries {
		if entries[i].CreatedAt.After(cutoff) {
			continue
		}
		if err := s.Discard(&entries[i]); err != nil {
			s.logger.Warn("pruning spool entry failed", "session_id", entries[i].SessionID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("pruned expired spool entries", "count", removed)
	}
	return removed, nil
}

// load reconstructs an Entry from its directory.
func (s *Spool) load(sessionID string) (*Entry, error) {
	entryDir := filepath.Join(s.dir, sessionID)
	info, err := os.Stat(entryDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewSessionError("no spool entry", errors.ErrNotFound).
				WithSessionID(sessionID)
		}
		return nil, fmt.Errorf("reading spool entry: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.NewSessionError("spool entry is not a directory", errors.ErrNotFound).
			WithSessionID(sessionID)
	}

	entry := &Entry{
		SessionID:  sessionID,
		Dir:        entryDir,
		ReportPath: filepath.Join(entryDir, ReportFileName),
		CreatedAt:  info.ModTime(),
	}
	if _, err := os.Stat(filepath.Join(entryDir, ScreenshotFileName)); err == nil {
		entry.ScreenshotPath = filepath.Join(entryDir, ScreenshotFileName)
	}
	if stamp, err := os.ReadFile(filepath.Join(entryDir, retainedMarker)); err == nil {
		entry.Retained = true
		if t, perr := time.Parse(time.RFC3339, trimNewline(string(stamp))); perr == nil {
			entry.CreatedAt = t
		}
	}
	return entry, nil
}

func copyFile(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
