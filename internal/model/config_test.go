package model_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
service:
  verbose: true
  log: discard
  dir: /srv/hunts
monitor:
  drain_delay: 500ms
  command_file: cmd.tmp
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.True(t, cfg.Service.IsVerbose())
	require.Equal(t, model.LogDiscard, cfg.Service.LogDest())
	require.Equal(t, "/srv/hunts", cfg.Service.WorkDir())
	require.Equal(t, 500*time.Millisecond, cfg.DrainDelay())
	require.Equal(t, "cmd.tmp", cfg.CommandFile())
	require.Equal(t, model.DefaultArgsFile, cfg.ArgsFile())
}

func TestLoadConfig_Minimal(t *testing.T) {
	cfg, err := model.LoadConfig(strings.NewReader("version: 0\n"))
	require.NoError(t, err)
	require.False(t, cfg.Service.IsVerbose())
	require.Equal(t, model.LogStderr, cfg.Service.LogDest())
	require.Equal(t, ".", cfg.Service.WorkDir())
	require.Equal(t, model.DefaultDrainDelay, cfg.DrainDelay())
	require.Equal(t, model.DefaultCommandFile, cfg.CommandFile())
}

func TestLoadConfig_Fail(t *testing.T) {
	var testCases = []struct {
		name string
		yml  string
		code string
	}{
		{
			name: "unknown field",
			yml:  "version: 0\nservice:\n  mode: manual\n",
			code: "unknown_field",
		},
		{
			name: "bad duration",
			yml:  "version: 0\nmonitor:\n  drain_delay: soon\n",
			code: "invalid_format",
		},
		{
			name: "wrong version",
			yml:  "version: 3\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := model.LoadConfig(strings.NewReader(tc.yml))
			require.Error(t, err)
			details := model.CueErrDetails(err)
			require.NotEmpty(t, details)
			if tc.code == "" {
				return
			}
			i := slices.IndexFunc(details, func(d model.CueErrorDetail) bool {
				return d.Code == tc.code
			})
			require.GreaterOrEqual(t, i, 0, "details: %+v", details)
			if tc.code == "invalid_format" {
				require.Equal(t, "monitor.drain_delay", details[i].Path)
				require.Contains(t, details[i].Message, "expected a duration")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	require.Equal(t, 0, cfg.Version)
	require.Equal(t, model.DefaultDrainDelay, cfg.DrainDelay())
	require.Equal(t, model.DefaultCommandFile, cfg.CommandFile())
	require.Equal(t, model.DefaultArgsFile, cfg.ArgsFile())
}

func TestRequestStreaming(t *testing.T) {
	require.True(t, model.Request{Command: model.CmdListHunts}.Streaming())
	require.True(t, model.Request{Command: "bogus"}.Streaming())
	require.False(t, model.Request{Command: model.CmdStopMonitor}.Streaming())
}
