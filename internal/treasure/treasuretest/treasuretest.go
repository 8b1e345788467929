package treasuretest

import (
	"os"
	"testing"

	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
	"github.com/stretchr/testify/require"
)

// PirateCove holds three valid records, two of them by the same user.
var PirateCove = []treasure.Record{
	{ID: "T1", User: "anne", Latitude: 18.466333, Longitude: -66.105721, Clue: "under the old cannon", Value: 100},
	{ID: "T2", User: "calico", Latitude: 18.5, Longitude: -66.1, Clue: "behind the waterfall", Value: 50},
	{ID: "T3", User: "anne", Latitude: 18.4, Longitude: -66.2, Clue: "in the captain's boot", Value: 25},
}

// Hunt writes recs into hunt under root and returns the store. Extra bytes
// are appended after the records to simulate a corrupt partial tail. With
// no records an empty store file is created.
func Hunt(t testing.TB, root, hunt string, recs []treasure.Record, extra ...byte) treasure.Store {
	t.Helper()
	s := treasure.Open(root)
	require.NoError(t, os.MkdirAll(s.Dir(hunt), 0755))
	for _, rec := range recs {
		require.NoError(t, s.Append(hunt, rec))
	}
	f, err := os.OpenFile(s.Path(hunt), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	require.NoError(t, err)
	if len(extra) > 0 {
		_, err = f.Write(extra)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	return s
}

// Garbage returns n bytes which do not form a full record.
func Garbage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('A' + i%26)
	}
	return b
}
