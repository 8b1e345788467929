// Package monitor implements the long-lived worker process. It sleeps until
// notified, reads one request from the mailbox, streams a framed response
// over the result channel and goes back to sleep. A terminate notification
// arrives on its own channel and always wins over a pending request.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/treasure-hub/internal/frame"
	"github.com/CZERTAINLY/treasure-hub/internal/mailbox"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
)

type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Monitor owns the write end of the result channel.
type Monitor struct {
	store   treasure.Store
	mailbox mailbox.Mailbox
	channel io.WriteCloser
	out     *frame.Writer
	delay   time.Duration
	state   atomic.Int32
}

func New(store treasure.Store, mb mailbox.Mailbox, channel io.WriteCloser, delay time.Duration) *Monitor {
	return &Monitor{
		store:   store,
		mailbox: mb,
		channel: channel,
		out:     frame.NewWriter(channel),
		delay:   delay,
	}
}

// FromConfig builds a monitor serving the hunts and mailbox of cfg.
func FromConfig(cfg model.Config, channel io.WriteCloser) *Monitor {
	return New(
		treasure.Open(cfg.Service.WorkDir()),
		mailbox.FromConfig(cfg),
		channel,
		cfg.DrainDelay(),
	)
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
}

// Run announces the monitor on the channel and serves requests until a
// terminate notification, a stop_monitor request or ctx cancellation. It
// closes the channel before returning.
func (m *Monitor) Run(ctx context.Context, requests, terminate <-chan os.Signal) error {
	slog.DebugContext(ctx, "monitor started", "delay", m.delay.String())
	m.out.Printf("Monitor started (PID: %d)\n", os.Getpid())
	if err := m.out.End(); err != nil {
		_ = m.channel.Close()
		return fmt.Errorf("writing startup frame: %w", err)
	}

	for {
		// a request which finished while terminate was pending must not
		// delay the shutdown any further
		select {
		case <-terminate:
			return m.shutdown(ctx, "terminate notification")
		default:
		}

		select {
		case <-ctx.Done():
			return m.shutdown(ctx, "context canceled")
		case <-terminate:
			return m.shutdown(ctx, "terminate notification")
		case <-requests:
			m.setState(StateExecuting)
			if stop := m.serve(ctx); stop {
				return m.shutdown(ctx, "stop request")
			}
		}
	}
}

// serve reads the mailbox and answers one request. It reports whether the
// request asked the monitor to stop.
func (m *Monitor) serve(ctx context.Context) bool {
	req, err := m.mailbox.Read()
	if err != nil {
		slog.ErrorContext(ctx, "reading mailbox", "error", err)
		m.out.Printf("Error: Failed to read request: %v\n", err)
		m.setState(StateIdle)
		m.end(ctx)
		return false
	}
	slog.DebugContext(ctx, "received command", "command", string(req.Command), "args", req.Argument)
	stop := m.Dispatch(ctx, m.out, req)
	// the supervisor may observe the state as soon as the sentinel is read
	if !stop {
		m.setState(StateIdle)
	}
	m.end(ctx)
	return stop
}

func (m *Monitor) end(ctx context.Context) {
	if err := m.out.End(); err != nil {
		slog.WarnContext(ctx, "writing response", "error", err)
	}
}

func (m *Monitor) shutdown(ctx context.Context, reason string) error {
	m.setState(StateDraining)
	slog.DebugContext(ctx, "monitor shutting down", "reason", reason)
	m.out.Printf("Monitor shutting down, exiting in %s.\n", m.delay)
	m.end(ctx)

	timer := time.NewTimer(m.delay)
	<-timer.C

	m.setState(StateTerminated)
	m.out.Println("Monitor terminated.")
	m.end(ctx)
	if err := m.channel.Close(); err != nil {
		return fmt.Errorf("closing result channel: %w", err)
	}
	slog.DebugContext(ctx, "monitor terminated")
	return nil
}
