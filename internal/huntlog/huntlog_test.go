package huntlog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/treasure-hub/internal/huntlog"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "pirate_cove"), 0755))

	at := time.Date(2025, 5, 17, 10, 30, 0, 0, time.Local)
	l := huntlog.New(root).WithClock(func() time.Time { return at })

	require.NoError(t, l.Log("pirate_cove", "Added treasure T1 by user anne"))
	require.NoError(t, l.Log("pirate_cove", "Listed all treasures in hunt pirate_cove"))

	b, err := os.ReadFile(l.Path("pirate_cove"))
	require.NoError(t, err)
	require.Equal(t,
		"[2025-05-17 10:30:00] Added treasure T1 by user anne\n"+
			"[2025-05-17 10:30:00] Listed all treasures in hunt pirate_cove\n",
		string(b))

	target, err := os.Readlink(l.LinkPath("pirate_cove"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("pirate_cove", huntlog.LogFile), target)

	viaLink, err := os.ReadFile(l.LinkPath("pirate_cove"))
	require.NoError(t, err)
	require.Equal(t, b, viaLink)

	require.NoError(t, l.Unlink("pirate_cove"))
	require.NoError(t, l.Unlink("pirate_cove"))
	_, err = os.Lstat(l.LinkPath("pirate_cove"))
	require.True(t, os.IsNotExist(err))
}

func TestLogMissingHunt(t *testing.T) {
	t.Parallel()
	l := huntlog.New(t.TempDir())
	require.Error(t, l.Log("ghost", "nothing"))
}
