// Package score totals treasure values per user for a single hunt. It backs
// the short-lived aggregator process started once per hunt by the
// supervisor.
package score

import (
	"errors"
	"fmt"
	"io"

	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
)

// Total is the running sum of one user's treasure values.
type Total struct {
	User  string
	Score int64
}

// Totals returns per-user sums in the order users first appear in the
// store. A partial trailing record is ignored.
func Totals(store treasure.Store, hunt string) ([]Total, error) {
	var out []Total
	index := make(map[string]int)
	for rec, err := range store.Records(hunt) {
		if errors.Is(err, treasure.ErrPartialRecord) {
			break
		}
		if err != nil {
			return nil, err
		}
		i, ok := index[rec.User]
		if !ok {
			i = len(out)
			index[rec.User] = i
			out = append(out, Total{User: rec.User})
		}
		out[i].Score += int64(rec.Value)
	}
	return out, nil
}

// Write prints the totals of hunt to w, one line per user.
func Write(w io.Writer, store treasure.Store, hunt string) error {
	totals, err := Totals(store, hunt)
	if err != nil {
		return fmt.Errorf("could not open treasure file for hunt '%s': %w", hunt, err)
	}
	if len(totals) == 0 {
		_, err = fmt.Fprintf(w, "No treasures found or no users with treasures in hunt '%s'.\n", hunt)
		return err
	}
	for _, t := range totals {
		if _, err := fmt.Fprintf(w, "User: %s, Score: %d\n", t.User, t.Score); err != nil {
			return err
		}
	}
	return nil
}

// Main writes the totals of hunt to w and returns the process exit code.
// A failure is reported on w as a single line.
func Main(w io.Writer, store treasure.Store, hunt string) int {
	if err := Write(w, store, hunt); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	return 0
}
