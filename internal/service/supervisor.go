package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/CZERTAINLY/treasure-hub/internal/frame"
	"github.com/CZERTAINLY/treasure-hub/internal/log"
	"github.com/CZERTAINLY/treasure-hub/internal/mailbox"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
)

// channelFD is the descriptor number of the result channel in the monitor,
// the first entry of ExtraFiles.
const channelFD = 3

// WorkerHandle is the supervisor's view of the monitor process. Only the
// goroutine running the supervisor loop touches it.
type WorkerHandle struct {
	PID      int
	Running  bool
	Stopping bool

	cmd     *exec.Cmd
	results *os.File
	frames  *frame.Reader
}

// ExitEvent reports a finished monitor process.
type ExitEvent struct {
	PID   int
	State *os.ProcessState
	Err   error
}

type Supervisor struct {
	monitor Command
	score   Command
	store   treasure.Store
	mailbox mailbox.Mailbox
	delay   time.Duration
	out     io.Writer
	stderr  io.Writer

	worker WorkerHandle
	exits  chan ExitEvent
	runner *Runner
}

func NewSupervisor(cfg model.Config, helpers Config, out io.Writer) *Supervisor {
	return &Supervisor{
		monitor: helpers.Monitor.Cmd(),
		score:   helpers.Score.Cmd(),
		store:   treasure.Open(cfg.Service.WorkDir()),
		mailbox: mailbox.FromConfig(cfg),
		delay:   cfg.DrainDelay(),
		out:     out,
		stderr:  os.Stderr,
		exits:   make(chan ExitEvent, 4),
		runner:  NewRunner(),
	}
}

// WithStderr redirects the standard error of launched processes.
func (s *Supervisor) WithStderr(w io.Writer) *Supervisor {
	s.stderr = w
	return s
}

// Worker returns a copy of the current handle.
func (s *Supervisor) Worker() WorkerHandle {
	return s.worker
}

// Exits delivers one event per launched monitor once it is reaped.
func (s *Supervisor) Exits() <-chan ExitEvent {
	return s.exits
}

// LaunchWorker starts the monitor with the write end of a fresh pipe as
// descriptor 3 and waits for its startup frame. On failure the handle is
// left untouched.
func (s *Supervisor) LaunchWorker(ctx context.Context) error {
	if s.worker.Running {
		return model.ErrAlreadyRunning
	}

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating result channel: %w", err)
	}

	proto := s.monitor.With(strconv.Itoa(channelFD))
	cmd := exec.Command(proto.Path, proto.Args...)
	if len(s.monitor.Env) > 0 {
		cmd.Env = append(os.Environ(), s.monitor.Env...)
	}
	cmd.ExtraFiles = []*os.File{w}
	cmd.Stdout = s.stderr
	cmd.Stderr = s.stderr
	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return fmt.Errorf("starting monitor: %w", err)
	}
	_ = w.Close()

	pid := cmd.Process.Pid
	s.worker = WorkerHandle{
		PID:     pid,
		Running: true,
		cmd:     cmd,
		results: r,
		frames:  frame.NewReader(r),
	}
	go func() {
		err := cmd.Wait()
		s.exits <- ExitEvent{PID: pid, State: cmd.ProcessState, Err: err}
	}()
	slog.DebugContext(ctx, "monitor launched", "pid", pid, "path", s.monitor.Path)

	hello, err := s.next(ctx)
	if err != nil {
		s.release()
		return fmt.Errorf("%w: no startup frame: %w", model.ErrWorkerGone, err)
	}
	slog.DebugContext(ctx, "monitor ready", "pid", pid, "frame", hello)
	return nil
}

// Submit hands req to the monitor and, unless it is a stop request, copies
// the framed response to the output.
func (s *Supervisor) Submit(ctx context.Context, req model.Request) error {
	switch {
	case !s.worker.Running:
		return model.ErrNotRunning
	case s.worker.Stopping:
		return model.ErrStopping
	}

	ctx = log.ContextAttrs(ctx, slog.String("request_id", uuid.NewString()))
	if err := s.mailbox.Write(req); err != nil {
		return err
	}
	slog.DebugContext(ctx, "request submitted", "command", string(req.Command), "args", req.Argument)

	if err := s.signal(unix.SIGUSR1); err != nil {
		return err
	}
	if !req.Streaming() {
		s.worker.Stopping = true
		return nil
	}

	payload, err := s.next(ctx)
	if _, werr := io.WriteString(s.out, payload); werr != nil {
		slog.WarnContext(ctx, "printing response", "error", werr)
	}
	if errors.Is(err, frame.ErrUnterminated) {
		s.release()
		return fmt.Errorf("%w: result channel closed", model.ErrWorkerGone)
	}
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "response drained", "bytes", len(payload))
	return nil
}

// RequestStop sends the terminate notification and returns without
// waiting. The handle is cleared once the exit event is handled.
func (s *Supervisor) RequestStop(ctx context.Context) error {
	switch {
	case !s.worker.Running:
		return model.ErrNotRunning
	case s.worker.Stopping:
		return model.ErrStopping
	}
	if err := s.signal(unix.SIGTERM); err != nil {
		return err
	}
	s.worker.Stopping = true
	slog.DebugContext(ctx, "stop requested", "pid", s.worker.PID, "delay", s.delay.String())
	return nil
}

// HandleExit finalizes the worker reported by ev. Frames still buffered in
// the result channel are copied to the output first. Events of an earlier
// worker are ignored.
func (s *Supervisor) HandleExit(ctx context.Context, ev ExitEvent) {
	if ev.PID != s.worker.PID {
		slog.DebugContext(ctx, "ignoring exit of stale monitor", "pid", ev.PID)
		return
	}

	if s.worker.frames != nil {
		for _, payload := range s.worker.frames.Drain() {
			_, _ = io.WriteString(s.out, payload)
		}
	}

	var exitErr *exec.ExitError
	switch {
	case ev.State == nil:
		fmt.Fprintf(s.out, "\nMonitor exited: %v\n", ev.Err)
	case exitStatus(ev.State).Signaled():
		sig := exitStatus(ev.State).Signal()
		fmt.Fprintf(s.out, "\nMonitor terminated by signal: %d\n", int(sig))
	default:
		fmt.Fprintf(s.out, "\nMonitor terminated with exit code: %d\n", ev.State.ExitCode())
	}
	if ev.Err != nil && !errors.As(ev.Err, &exitErr) {
		slog.WarnContext(ctx, "waiting for monitor", "pid", ev.PID, "error", ev.Err)
	}
	slog.DebugContext(ctx, "monitor exited", "pid", ev.PID, "state", fmt.Sprint(ev.State))

	s.release()
	s.worker = WorkerHandle{}
}

// Close stops a running monitor and waits for it to exit. The monitor is
// killed when it outlives the drain delay by more than grace.
func (s *Supervisor) Close(ctx context.Context, grace time.Duration) {
	if s.worker.PID == 0 {
		return
	}
	if s.worker.Running && !s.worker.Stopping {
		if err := s.RequestStop(ctx); err != nil {
			slog.DebugContext(ctx, "stopping monitor on close", "error", err)
		}
	}

	timer := time.NewTimer(s.delay + grace)
	defer timer.Stop()
	for s.worker.PID != 0 {
		select {
		case ev := <-s.exits:
			s.HandleExit(ctx, ev)
		case <-timer.C:
			slog.WarnContext(ctx, "monitor did not exit in time: killing", "pid", s.worker.PID)
			if s.worker.cmd != nil {
				_ = s.worker.cmd.Process.Kill()
			}
			timer.Reset(grace)
		}
	}
}

// RunAggregation runs the score helper for every hunt, one at a time.
// Each helper's output is relayed in full before the next one starts.
func (s *Supervisor) RunAggregation(ctx context.Context) error {
	hunts, err := s.store.Hunts(ctx)
	if err != nil {
		return fmt.Errorf("listing hunts: %w", err)
	}
	if len(hunts) == 0 {
		fmt.Fprintln(s.out, "No hunts found.")
		return nil
	}

	stderr := func(ctx context.Context, line string) {
		slog.WarnContext(ctx, "score stderr", "line", line)
	}
	for _, hunt := range hunts {
		hctx := log.ContextAttrs(ctx, slog.String("hunt", hunt.Name))
		fmt.Fprintf(s.out, "\nScores for hunt '%s':\n", hunt.Name)
		res := s.runner.Run(hctx, s.score.With(hunt.Name), s.out, stderr)
		if res.State == nil {
			fmt.Fprintf(s.out, "Error: failed to run score calculator for hunt '%s': %v\n", hunt.Name, res.Err)
			continue
		}
		slog.DebugContext(hctx, "score finished", "exit_code", res.ExitCode(), "duration", res.Stopped.Sub(res.Started).String())
	}
	return nil
}

func (s *Supervisor) next(ctx context.Context) (string, error) {
	// a canceled context unblocks the pending read
	stop := context.AfterFunc(ctx, func() {
		_ = s.worker.results.SetReadDeadline(time.Now())
	})
	defer stop()
	payload, err := s.worker.frames.Next()
	if err != nil && ctx.Err() != nil {
		return payload, ctx.Err()
	}
	return payload, err
}

func (s *Supervisor) signal(sig os.Signal) error {
	err := s.worker.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, unix.ESRCH) {
		s.release()
		return fmt.Errorf("%w: %w", model.ErrWorkerGone, err)
	}
	if err != nil {
		return fmt.Errorf("signaling monitor: %w", err)
	}
	return nil
}

// release closes the read end and marks the worker as not running. The pid
// is kept so the pending exit event is still recognized.
func (s *Supervisor) release() {
	if s.worker.results != nil {
		_ = s.worker.results.Close()
		s.worker.results = nil
		s.worker.frames = nil
	}
	s.worker.Running = false
	s.worker.Stopping = false
}

func exitStatus(state *os.ProcessState) syscall.WaitStatus {
	ws, _ := state.Sys().(syscall.WaitStatus)
	return ws
}
