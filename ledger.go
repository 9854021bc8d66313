package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Ledger owns the single-line marker file holding the id of the last item
// that completed a successful publish. The marker only ever moves forward on
// confirmed success and must survive a crash immediately after the commit.
type Ledger struct {
	path string
}

// NewLedger creates a ledger backed by the given file path.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Last returns the current marker, or "" when none has been recorded yet. A
// missing or unreadable file is not an error; it means nothing was published.
func (l *Ledger) Last() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Commit durably records id as the last successfully published item. The
// write goes through a temp file and rename so a crash can't leave a torn
// marker behind.
func (l *Ledger) Commit(id string) error {
	if id == "" {
		return fmt.Errorf("refusing to commit empty marker")
	}

	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("creating marker temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(id + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing marker temp file: %w", err)
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing marker file: %w", err)
	}
	return nil
}
