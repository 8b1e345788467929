// Package mailbox implements the single-slot request staging area shared by
// the supervisor and the monitor: two plain-text files holding the command
// name and its (possibly empty) argument.
//
// The mailbox carries no sequence number. A submission overwrites whatever
// request is still waiting, so callers must never overlap submissions.
package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
)

// maxField mirrors the fixed read buffer of the legacy monitor.
const maxField = 255

// Mailbox addresses the two files in dir.
type Mailbox struct {
	dir         string
	commandFile string
	argsFile    string
}

func New(dir, commandFile, argsFile string) Mailbox {
	return Mailbox{
		dir:         dir,
		commandFile: commandFile,
		argsFile:    argsFile,
	}
}

// FromConfig uses the file names and directory from cfg.
func FromConfig(cfg model.Config) Mailbox {
	return New(cfg.Service.WorkDir(), cfg.CommandFile(), cfg.ArgsFile())
}

func (m Mailbox) CommandPath() string {
	return filepath.Join(m.dir, m.commandFile)
}

func (m Mailbox) ArgsPath() string {
	return filepath.Join(m.dir, m.argsFile)
}

// Write truncates and rewrites both files. The argument file is truncated
// even for an empty argument, so a previous argument is never reused.
func (m Mailbox) Write(req model.Request) error {
	if req.Command == "" {
		return errors.New("empty command")
	}
	if err := os.WriteFile(m.CommandPath(), []byte(req.Command), 0644); err != nil {
		return fmt.Errorf("writing command file: %w", err)
	}
	if err := os.WriteFile(m.ArgsPath(), []byte(req.Argument), 0644); err != nil {
		return fmt.Errorf("writing arguments file: %w", err)
	}
	return nil
}

// Read returns the pending request. A missing argument file is an empty
// argument, a missing command file is an error.
func (m Mailbox) Read() (model.Request, error) {
	cmd, err := os.ReadFile(m.CommandPath())
	if err != nil {
		return model.Request{}, fmt.Errorf("reading command file: %w", err)
	}
	args, err := os.ReadFile(m.ArgsPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.Request{}, fmt.Errorf("reading arguments file: %w", err)
	}
	return model.Request{
		Command:  model.Command(field(cmd)),
		Argument: field(args),
	}, nil
}

// Clear removes both files. Missing files are not an error.
func (m Mailbox) Clear() error {
	var errs []error
	for _, p := range []string{m.CommandPath(), m.ArgsPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func field(b []byte) string {
	if len(b) > maxField {
		b = b[:maxField]
	}
	return strings.TrimRight(string(b), "\r\n")
}
