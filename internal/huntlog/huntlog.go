// Package huntlog keeps the append-only operation log of every hunt and a
// convenience symlink to it next to the hunt directories.
package huntlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	LogFile    = "logged_hunt"
	timeLayout = "2006-01-02 15:04:05"
)

// Logger writes into <root>/<hunt>/logged_hunt.
type Logger struct {
	root string
	now  func() time.Time
}

func New(root string) Logger {
	return Logger{root: root, now: time.Now}
}

// WithClock replaces the time source, used by tests.
func (l Logger) WithClock(now func() time.Time) Logger {
	l.now = now
	return l
}

func (l Logger) Path(hunt string) string {
	return filepath.Join(l.root, hunt, LogFile)
}

// LinkPath is the symlink placed in the root directory.
func (l Logger) LinkPath(hunt string) string {
	return filepath.Join(l.root, LogFile+"-"+hunt)
}

// Log appends one "[timestamp] operation" line and refreshes the symlink.
func (l Logger) Log(hunt, operation string) error {
	f, err := os.OpenFile(l.Path(hunt), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	_, err = fmt.Fprintf(f, "[%s] %s\n", l.now().Format(timeLayout), operation)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing log file: %w", err)
	}
	return l.link(hunt)
}

func (l Logger) link(hunt string) error {
	link := l.LinkPath(hunt)
	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing symlink: %w", err)
	}
	// relative, so the link survives moving the whole root
	if err := os.Symlink(filepath.Join(hunt, LogFile), link); err != nil {
		return fmt.Errorf("creating symlink: %w", err)
	}
	return nil
}

// Unlink removes the symlink of a deleted hunt.
func (l Logger) Unlink(hunt string) error {
	err := os.Remove(l.LinkPath(hunt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
