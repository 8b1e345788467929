package mailbox_test

import (
	"os"
	"strings"
	"testing"

	"github.com/CZERTAINLY/treasure-hub/internal/mailbox"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/stretchr/testify/require"
)

func TestMailbox(t *testing.T) {
	t.Parallel()
	mb := mailbox.New(t.TempDir(), model.DefaultCommandFile, model.DefaultArgsFile)

	t.Run("empty", func(t *testing.T) {
		_, err := mb.Read()
		require.Error(t, err)
	})

	t.Run("roundtrip", func(t *testing.T) {
		req := model.Request{Command: model.CmdViewTreasure, Argument: "pirate_cove X9"}
		require.NoError(t, mb.Write(req))
		got, err := mb.Read()
		require.NoError(t, err)
		require.Equal(t, req, got)
	})

	t.Run("argument truncated", func(t *testing.T) {
		require.NoError(t, mb.Write(model.Request{Command: model.CmdListHunts}))
		got, err := mb.Read()
		require.NoError(t, err)
		require.Equal(t, model.CmdListHunts, got.Command)
		require.Empty(t, got.Argument)

		raw, err := os.ReadFile(mb.ArgsPath())
		require.NoError(t, err)
		require.Empty(t, raw)
	})

	t.Run("empty command", func(t *testing.T) {
		require.Error(t, mb.Write(model.Request{}))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, mb.Clear())
		require.NoFileExists(t, mb.CommandPath())
		require.NoFileExists(t, mb.ArgsPath())
		require.NoError(t, mb.Clear())
	})
}

func TestMailboxMissingArgs(t *testing.T) {
	t.Parallel()
	mb := mailbox.New(t.TempDir(), "c", "a")
	require.NoError(t, os.WriteFile(mb.CommandPath(), []byte("list_hunts\n"), 0644))
	got, err := mb.Read()
	require.NoError(t, err)
	require.Equal(t, model.Request{Command: model.CmdListHunts}, got)
}

func TestMailboxLongField(t *testing.T) {
	t.Parallel()
	mb := mailbox.New(t.TempDir(), "c", "a")
	long := strings.Repeat("x", 1000)
	require.NoError(t, mb.Write(model.Request{Command: model.CmdListTreasures, Argument: long}))
	got, err := mb.Read()
	require.NoError(t, err)
	require.Len(t, got.Argument, 255)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	mb := mailbox.FromConfig(model.DefaultConfig())
	require.Equal(t, model.DefaultCommandFile, mb.CommandPath())
	require.Equal(t, model.DefaultArgsFile, mb.ArgsPath())
}
