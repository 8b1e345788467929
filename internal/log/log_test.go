package log_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/CZERTAINLY/treasure-hub/internal/log"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/stretchr/testify/require"
)

func TestContextAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := log.New(true, &buf)

	ctx := log.ContextAttrs(t.Context(), slog.String("cmd", "run"))
	child := log.ContextAttrs(ctx, slog.String("request_id", "42"))
	logger.DebugContext(child, "submitted")
	logger.InfoContext(ctx, "started")

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	require.Equal(t, "submitted", first["msg"])
	require.Equal(t, "run", first["cmd"])
	require.Equal(t, "42", first["request_id"])

	require.Equal(t, "started", second["msg"])
	require.Equal(t, "run", second["cmd"])
	require.NotContains(t, second, "request_id")
}

func TestLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log.New(false, &buf).Debug("hidden")
	require.Empty(t, buf.String())
}

func TestOutput(t *testing.T) {
	t.Parallel()

	w, closer, err := log.Output(model.LogDiscard)
	require.NoError(t, err)
	require.Equal(t, io.Discard, w)
	require.NoError(t, closer())

	w, _, err = log.Output(model.LogStderr)
	require.NoError(t, err)
	require.Equal(t, os.Stderr, w)

	path := filepath.Join(t.TempDir(), "hub.log")
	w, closer, err = log.Output(path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "line\n")
	require.NoError(t, err)
	require.NoError(t, closer())
	require.FileExists(t, path)

	_, _, err = log.Output(filepath.Join(t.TempDir(), "missing", "hub.log"))
	require.Error(t, err)
}
