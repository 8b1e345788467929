package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrNotStarted = errors.New("command not started")
	ErrInProgress = errors.New("command in progress")
)

type StderrFunc func(ctx context.Context, line string)

// Runner executes one helper process at a time and streams its standard
// output to a writer.
type Runner struct {
	mx     sync.RWMutex
	cmd    *exec.Cmd
	result Result
}

func NewRunner() *Runner {
	return &Runner{
		result: Result{Err: ErrNotStarted},
	}
}

type Command struct {
	Path string
	Args []string
	Env  []string
}

// With returns a copy of c with args appended.
func (c Command) With(args ...string) Command {
	c.Args = append(append([]string(nil), c.Args...), args...)
	return c
}

type Result struct {
	Path    string
	Args    []string
	Env     []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Written int64
	Err     error
}

// ExitCode returns the exit code of a finished process or -1.
func (r Result) ExitCode() int {
	if r.State == nil {
		return -1
	}
	return r.State.ExitCode()
}

// Start runs the process with its standard output on a pipe. The pipe is
// copied to stdout until end of stream, only then the process is waited
// for. The returned channel receives exactly one Result and is closed.
// Returns ErrInProgress or an exec error.
func (r *Runner) Start(ctx context.Context, proto Command, stdout io.Writer, stderrFunc StderrFunc) (<-chan Result, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return nil, ErrInProgress
	}

	r.result = Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
		Env:  append([]string(nil), proto.Env...),
	}

	cmd := exec.CommandContext(ctx, r.result.Path, r.result.Args...)
	if len(r.result.Env) > 0 {
		cmd.Env = append(os.Environ(), r.result.Env...)
	}
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		r.result.Err = err
		return nil, err
	}
	var stderr io.ReadCloser
	if stderrFunc != nil {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			r.result.Err = err
			return nil, err
		}
	}

	r.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		r.result.Stopped = time.Now().UTC()
		r.result.Err = err
		return nil, err
	}
	r.cmd = cmd

	var wg sync.WaitGroup
	if stderr != nil {
		wg.Go(func() {
			processStderr(ctx, stderr, stderrFunc)
		})
	}
	ch := make(chan Result, 1)
	go r.wait(ctx, cmd, pipe, stdout, &wg, ch)
	return ch, nil
}

// Run is Start followed by waiting for the result.
func (r *Runner) Run(ctx context.Context, proto Command, stdout io.Writer, stderrFunc StderrFunc) Result {
	ch, err := r.Start(ctx, proto, stdout, stderrFunc)
	if err != nil {
		return r.Result()
	}
	return <-ch
}

func processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		stderrFunc(ctx, scanner.Text())
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
	}
}

func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, pipe io.Reader, stdout io.Writer, wg *sync.WaitGroup, ch chan<- Result) {
	written, copyErr := io.Copy(stdout, pipe)
	if copyErr != nil {
		slog.WarnContext(ctx, "relaying stdout", "path", cmd.Path, "error", copyErr)
	}
	wg.Wait()
	err := cmd.Wait()
	stopped := time.Now().UTC()

	r.mx.Lock()
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Written = written
	r.result.Err = errors.Join(err, copyErr)
	r.cmd = nil
	res := r.result
	r.mx.Unlock()

	ch <- res
	close(ch)
}

// Result returns the last command result, or a result with
// ErrNotStarted if nothing ran yet.
func (r *Runner) Result() Result {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.result
}
