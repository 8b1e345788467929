package monitor_test

import (
	"bytes"
	"io"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/CZERTAINLY/treasure-hub/internal/frame"
	"github.com/CZERTAINLY/treasure-hub/internal/mailbox"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/monitor"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure/treasuretest"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func newMonitor(t *testing.T, root string) (*monitor.Monitor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mb := mailbox.New(root, model.DefaultCommandFile, model.DefaultArgsFile)
	return monitor.New(treasure.Open(root), mb, nopCloser{&buf}, 0), &buf
}

func dispatch(t *testing.T, m *monitor.Monitor, req model.Request) (string, bool) {
	t.Helper()
	var buf bytes.Buffer
	stop := m.Dispatch(t.Context(), frame.NewWriter(&buf), req)
	return buf.String(), stop
}

func TestDispatch(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	treasuretest.Hunt(t, root, "pirate_cove", treasuretest.PirateCove, treasuretest.Garbage(42)...)
	treasuretest.Hunt(t, root, "atlantis", nil)
	m, _ := newMonitor(t, root)

	var testCases = []struct {
		name     string
		req      model.Request
		contains []string
		absent   []string
		stop     bool
	}{
		{
			name: "list hunts",
			req:  model.Request{Command: model.CmdListHunts},
			contains: []string{
				"Available Hunts:",
				"Hunt: atlantis (Treasures: 0)\n",
				"Hunt: pirate_cove (Treasures: 3)\n",
				"Total hunts: 2\n",
			},
		},
		{
			name: "list treasures ignores partial tail",
			req:  model.Request{Command: model.CmdListTreasures, Argument: "pirate_cove"},
			contains: []string{
				"Hunt: pirate_cove\n",
				"Total file size: 1170 bytes\n",
				"Last modified: ",
				"ID: T1\nUser: anne\nGPS: (18.466333, -66.105721)\nValue: 100\n",
				"ID: T3\n",
				"Warning: ignored 42 trailing bytes",
				"Total treasures: 3\n",
			},
			absent: []string{"Clue:"},
		},
		{
			name:     "list treasures of empty hunt",
			req:      model.Request{Command: model.CmdListTreasures, Argument: "atlantis"},
			contains: []string{"Total file size: 0 bytes\n", "No treasures found.\n"},
		},
		{
			name:     "list treasures missing hunt",
			req:      model.Request{Command: model.CmdListTreasures, Argument: "ghost"},
			contains: []string{"Hunt 'ghost' does not exist or has no treasures.\n"},
		},
		{
			name:     "list treasures without hunt",
			req:      model.Request{Command: model.CmdListTreasures},
			contains: []string{"Error: Missing hunt ID for list_treasures.\n"},
		},
		{
			name:     "list treasures invalid hunt",
			req:      model.Request{Command: model.CmdListTreasures, Argument: "../etc"},
			contains: []string{"Error: Invalid hunt ID '../etc'.\n"},
		},
		{
			name: "view treasure",
			req:  model.Request{Command: model.CmdViewTreasure, Argument: "pirate_cove T2"},
			contains: []string{
				"Treasure Details:\nID: T2\nUser: calico\nGPS Coordinates: (18.500000, -66.100000)\nClue: behind the waterfall\nValue: 50\n",
			},
		},
		{
			name:     "view treasure not found",
			req:      model.Request{Command: model.CmdViewTreasure, Argument: "pirate_cove X9"},
			contains: []string{"Treasure 'X9' not found in hunt 'pirate_cove'.\n"},
		},
		{
			name:     "view treasure missing hunt",
			req:      model.Request{Command: model.CmdViewTreasure, Argument: "ghost T1"},
			contains: []string{"Hunt 'ghost' does not exist.\n"},
		},
		{
			name:     "view treasure bad arguments",
			req:      model.Request{Command: model.CmdViewTreasure, Argument: "pirate_cove"},
			contains: []string{"Error: Invalid arguments for view_treasure.\n"},
		},
		{
			name:     "unknown",
			req:      model.Request{Command: "dig"},
			contains: []string{"Error: Unknown command 'dig' received by monitor.\n"},
		},
		{
			name:     "stop",
			req:      model.Request{Command: model.CmdStopMonitor},
			contains: []string{"Stop request received.\n"},
			stop:     true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, stop := dispatch(t, m, tc.req)
			require.Equal(t, tc.stop, stop)
			for _, s := range tc.contains {
				require.Contains(t, out, s)
			}
			for _, s := range tc.absent {
				require.NotContains(t, out, s)
			}
			require.NotContains(t, out, frame.Sentinel)
		})
	}
}

func TestListHuntsEmpty(t *testing.T) {
	t.Parallel()
	m, _ := newMonitor(t, t.TempDir())
	out, _ := dispatch(t, m, model.Request{Command: model.CmdListHunts})
	require.Equal(t, "No hunts found.\n", out)
}

func TestListHuntsIdempotent(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	treasuretest.Hunt(t, root, "b", treasuretest.PirateCove[:1])
	treasuretest.Hunt(t, root, "a", treasuretest.PirateCove)
	m, _ := newMonitor(t, root)

	first, _ := dispatch(t, m, model.Request{Command: model.CmdListHunts})
	second, _ := dispatch(t, m, model.Request{Command: model.CmdListHunts})
	require.Equal(t, first, second)
	require.Less(t, strings.Index(first, "Hunt: a "), strings.Index(first, "Hunt: b "))
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	treasuretest.Hunt(t, root, "pirate_cove", treasuretest.PirateCove)
	mb := mailbox.New(root, model.DefaultCommandFile, model.DefaultArgsFile)

	pr, pw := io.Pipe()
	m := monitor.New(treasure.Open(root), mb, pw, 20*time.Millisecond)
	requests := make(chan os.Signal, 1)
	terminate := make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() {
		done <- m.Run(t.Context(), requests, terminate)
	}()

	r := frame.NewReader(pr)
	hello, err := r.Next()
	require.NoError(t, err)
	require.Contains(t, hello, "Monitor started (PID: ")

	submit := func(req model.Request) string {
		require.NoError(t, mb.Write(req))
		requests <- syscall.SIGUSR1
		out, err := r.Next()
		require.NoError(t, err)
		return out
	}

	require.Contains(t, submit(model.Request{Command: model.CmdListHunts}), "Hunt: pirate_cove (Treasures: 3)")
	require.Equal(t, monitor.StateIdle, m.State())
	require.Contains(t, submit(model.Request{Command: model.CmdViewTreasure, Argument: "pirate_cove X9"}),
		"Treasure 'X9' not found in hunt 'pirate_cove'.")
	require.Contains(t, submit(model.Request{Command: "bogus"}), "Unknown command 'bogus'")
	require.Equal(t, monitor.StateIdle, m.State())

	terminate <- syscall.SIGTERM
	notice, err := r.Next()
	require.NoError(t, err)
	require.Contains(t, notice, "Monitor shutting down")
	final, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "Monitor terminated.\n", final)

	_, err = r.Next()
	require.ErrorIs(t, err, frame.ErrUnterminated)
	require.NoError(t, <-done)
	require.Equal(t, monitor.StateTerminated, m.State())
}

func TestRunTerminateWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	root := t.TempDir()
	mb := mailbox.New(root, model.DefaultCommandFile, model.DefaultArgsFile)
	require.NoError(t, mb.Write(model.Request{Command: model.CmdListHunts}))

	var buf bytes.Buffer
	m := monitor.New(treasure.Open(root), mb, nopCloser{&buf}, 0)
	requests := make(chan os.Signal, 1)
	terminate := make(chan os.Signal, 1)
	requests <- syscall.SIGUSR1
	terminate <- syscall.SIGTERM

	require.NoError(t, m.Run(t.Context(), requests, terminate))
	out := buf.String()
	require.Equal(t, 3, strings.Count(out, frame.Sentinel))
	require.Contains(t, out, "Monitor terminated.")
}

func TestRunStopRequest(t *testing.T) {
	root := t.TempDir()
	mb := mailbox.New(root, model.DefaultCommandFile, model.DefaultArgsFile)
	require.NoError(t, mb.Write(model.Request{Command: model.CmdStopMonitor}))

	var buf bytes.Buffer
	m := monitor.New(treasure.Open(root), mb, nopCloser{&buf}, 0)
	requests := make(chan os.Signal, 1)
	requests <- syscall.SIGUSR1

	require.NoError(t, m.Run(t.Context(), requests, make(chan os.Signal)))
	frames := frame.NewReader(&buf).Drain()
	require.Len(t, frames, 4)
	require.Equal(t, "Stop request received.\n", frames[1])
	require.Equal(t, "Monitor terminated.\n", frames[3])
}

func TestRunMissingMailbox(t *testing.T) {
	root := t.TempDir()
	mb := mailbox.New(root, model.DefaultCommandFile, model.DefaultArgsFile)

	pr, pw := io.Pipe()
	m := monitor.New(treasure.Open(root), mb, pw, 0)
	requests := make(chan os.Signal, 1)
	terminate := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(t.Context(), requests, terminate)
	}()

	r := frame.NewReader(pr)
	_, err := r.Next()
	require.NoError(t, err)

	requests <- syscall.SIGUSR1
	out, err := r.Next()
	require.NoError(t, err)
	require.Contains(t, out, "Error: Failed to read request")
	require.Equal(t, monitor.StateIdle, m.State())

	terminate <- syscall.SIGTERM
	require.Len(t, r.Drain(), 2)
	require.NoError(t, <-done)
}

func TestStateString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "idle", monitor.StateIdle.String())
	require.Equal(t, "executing", monitor.StateExecuting.String())
	require.Equal(t, "draining", monitor.StateDraining.String())
	require.Equal(t, "terminated", monitor.StateTerminated.String())
	require.Equal(t, "unknown(9)", monitor.State(9).String())
}

func TestServeInvalidDescriptor(t *testing.T) {
	t.Parallel()
	for _, fd := range []string{"", "stdout", "1", "-3"} {
		err := monitor.Serve(t.Context(), model.DefaultConfig(), fd)
		require.ErrorContains(t, err, "invalid result channel descriptor")
	}
}
