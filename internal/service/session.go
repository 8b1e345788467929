package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
)

const (
	closeGrace = 5 * time.Second
	usage      = "Available commands: start_monitor, list_hunts, list_treasures, view_treasure, calculate_score, stop_monitor, exit"
)

// Session is the interactive loop in front of a Supervisor. It reads one
// command per line and handles monitor exits between commands.
type Session struct {
	sup         *Supervisor
	in          io.Reader
	out         io.Writer
	interactive bool
}

// NewSession reads commands from in. When interactive is set, end of input
// is refused while the monitor runs, like exit. Otherwise it stops the
// monitor and quits.
func NewSession(sup *Supervisor, in io.Reader, interactive bool) *Session {
	return &Session{
		sup:         sup,
		in:          in,
		out:         sup.out,
		interactive: interactive,
	}
}

type input struct {
	line string
	eof  bool
	err  error
}

// Run serves commands until exit, end of input or ctx cancellation. A
// running monitor is stopped and the mailbox removed before it returns.
func (s *Session) Run(ctx context.Context) error {
	ictx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan input)
	go readLines(ictx, s.in, s.interactive, lines)

	defer func() {
		s.sup.Close(context.WithoutCancel(ctx), closeGrace)
		if err := s.sup.mailbox.Clear(); err != nil {
			slog.WarnContext(ctx, "removing mailbox", "error", err)
		}
	}()

	fmt.Fprintln(s.out, "Treasure Hub - Interactive Interface")
	fmt.Fprintln(s.out, usage)
	for {
		s.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nInterrupted. Exiting Treasure Hub.")
			return nil
		case ev := <-s.sup.Exits():
			s.sup.HandleExit(ctx, ev)
		case in := <-lines:
			if in.eof {
				if s.endOfInput(ctx, in.err) {
					return nil
				}
				continue
			}
			if s.execute(ctx, lines, strings.TrimSpace(in.line)) {
				return nil
			}
		}
	}
}

func (s *Session) execute(ctx context.Context, lines <-chan input, command string) (quit bool) {
	switch command {
	case "":
	case "start_monitor":
		if err := s.sup.LaunchWorker(ctx); err != nil {
			s.report(ctx, err)
			return false
		}
		fmt.Fprintf(s.out, "Monitor started with PID: %d\n", s.sup.Worker().PID)
	case "list_hunts":
		s.submit(ctx, model.Request{Command: model.CmdListHunts})
	case "list_treasures":
		hunt, ok := s.ask(ctx, lines, "Enter hunt ID: ")
		if !ok {
			return false
		}
		s.submit(ctx, model.Request{Command: model.CmdListTreasures, Argument: hunt})
	case "view_treasure":
		hunt, ok := s.ask(ctx, lines, "Enter hunt ID: ")
		if !ok {
			return false
		}
		id, ok := s.ask(ctx, lines, "Enter treasure ID: ")
		if !ok {
			return false
		}
		s.submit(ctx, model.Request{Command: model.CmdViewTreasure, Argument: hunt + " " + id})
	case "calculate_score":
		if err := s.sup.RunAggregation(ctx); err != nil {
			s.report(ctx, err)
		}
	case "stop_monitor":
		if err := s.sup.RequestStop(ctx); err != nil {
			s.report(ctx, err)
			return false
		}
		fmt.Fprintf(s.out, "Stop command sent to monitor, it exits in %s. Returning to prompt.\n", s.sup.delay)
	case "exit":
		if s.sup.Worker().Running {
			fmt.Fprintln(s.out, "Error: Monitor is still running. Please use 'stop_monitor' first.")
			return false
		}
		fmt.Fprintln(s.out, "Exiting Treasure Hub.")
		return true
	case "help":
		fmt.Fprintln(s.out, usage)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
	}
	return false
}

func (s *Session) submit(ctx context.Context, req model.Request) {
	if err := s.sup.Submit(ctx, req); err != nil {
		s.report(ctx, err)
	}
}

// ask prompts for one more line. Monitor exits arriving meanwhile are
// handled and the question repeated.
func (s *Session) ask(ctx context.Context, lines <-chan input, question string) (string, bool) {
	for {
		fmt.Fprint(s.out, question)
		select {
		case <-ctx.Done():
			return "", false
		case ev := <-s.sup.Exits():
			s.sup.HandleExit(ctx, ev)
		case in := <-lines:
			if in.eof {
				fmt.Fprintln(s.out)
				return "", false
			}
			return strings.TrimSpace(in.line), true
		}
	}
}

func (s *Session) endOfInput(ctx context.Context, err error) (quit bool) {
	if err != nil {
		slog.ErrorContext(ctx, "reading command", "error", err)
	}
	fmt.Fprint(s.out, "\nEOF detected. ")
	if !s.sup.Worker().Running {
		fmt.Fprintln(s.out, "Exiting Treasure Hub.")
		return true
	}
	if s.interactive {
		fmt.Fprintln(s.out, "Monitor is still running. Please use 'stop_monitor' first.")
		return false
	}
	fmt.Fprintln(s.out, "Stopping the monitor before exit.")
	s.sup.Close(ctx, closeGrace)
	fmt.Fprintln(s.out, "Exiting Treasure Hub.")
	return true
}

func (s *Session) report(ctx context.Context, err error) {
	slog.DebugContext(ctx, "command failed", "error", err)
	switch {
	case errors.Is(err, model.ErrNotRunning):
		fmt.Fprintln(s.out, "Error: Monitor is not running. Use 'start_monitor' first.")
	case errors.Is(err, model.ErrStopping):
		fmt.Fprintln(s.out, "Error: Monitor is stopping. Wait until it exits.")
	case errors.Is(err, model.ErrAlreadyRunning):
		fmt.Fprintln(s.out, "Monitor is already running!")
	case errors.Is(err, model.ErrWorkerGone):
		fmt.Fprintln(s.out, "Monitor process no longer exists. Resetting state.")
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Session) prompt() {
	fmt.Fprint(s.out, "> ")
}

// readLines forwards lines from r. End of input is forwarded as an eof
// marker. With again set reading resumes afterwards, as a terminal keeps
// delivering input after ^D.
func readLines(ctx context.Context, r io.Reader, again bool, out chan<- input) {
	for {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case out <- input{line: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		err := sc.Err()
		select {
		case out <- input{eof: true, err: err}:
		case <-ctx.Done():
			return
		}
		if !again || err != nil {
			return
		}
	}
}
