package monitor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/CZERTAINLY/treasure-hub/internal/frame"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
)

const (
	separator  = "-----------------------------------------"
	timeLayout = "2006-01-02 15:04:05"
)

// Dispatch writes the response payload of req to w without the sentinel.
// Failures are part of the payload, never of the return value. It reports
// whether req asked the monitor to stop.
func (m *Monitor) Dispatch(ctx context.Context, w *frame.Writer, req model.Request) bool {
	switch req.Command {
	case model.CmdListHunts:
		m.listHunts(ctx, w)
	case model.CmdListTreasures:
		m.listTreasures(w, strings.TrimSpace(req.Argument))
	case model.CmdViewTreasure:
		fields := strings.Fields(req.Argument)
		if len(fields) < 2 {
			w.Println("Error: Invalid arguments for view_treasure.")
			return false
		}
		m.viewTreasure(w, fields[0], fields[1])
	case model.CmdStopMonitor:
		w.Println("Stop request received.")
		return true
	default:
		slog.WarnContext(ctx, "unknown command", "command", string(req.Command))
		w.Printf("Error: Unknown command '%s' received by monitor.\n", req.Command)
	}
	return false
}

func (m *Monitor) listHunts(ctx context.Context, w *frame.Writer) {
	hunts, err := m.store.Hunts(ctx)
	if err != nil {
		w.Printf("Error: Failed to open hunts directory: %v\n", err)
		return
	}
	if len(hunts) == 0 {
		w.Println("No hunts found.")
		return
	}

	w.Println()
	w.Println("Available Hunts:")
	w.Println("-------------------------------")
	for _, h := range hunts {
		w.Printf("Hunt: %s (Treasures: %d)\n", h.Name, h.Records())
	}
	w.Printf("\nTotal hunts: %d\n", len(hunts))
}

func (m *Monitor) listTreasures(w *frame.Writer, hunt string) {
	if hunt == "" {
		w.Println("Error: Missing hunt ID for list_treasures.")
		return
	}
	h, err := m.store.Stat(hunt)
	switch {
	case errors.Is(err, treasure.ErrHuntNotFound):
		w.Printf("Hunt '%s' does not exist or has no treasures.\n", hunt)
		return
	case errors.Is(err, treasure.ErrInvalidHunt):
		w.Printf("Error: Invalid hunt ID '%s'.\n", hunt)
		return
	case err != nil:
		w.Printf("Failed to get file information for hunt '%s': %v\n", hunt, err)
		return
	}

	w.Printf("\nHunt: %s\nTotal file size: %d bytes\n", hunt, h.Size)
	w.Printf("Last modified: %s\n\n", h.ModTime.Format(timeLayout))
	w.Printf("Treasures in hunt %s:\n%s\n", hunt, separator)

	count := 0
	for rec, err := range m.store.Records(hunt) {
		if errors.Is(err, treasure.ErrPartialRecord) {
			w.Printf("Warning: ignored %d trailing bytes of a partial record.\n", h.Partial())
			break
		}
		if err != nil {
			w.Printf("Error: Failed to read treasures of hunt '%s': %v\n", hunt, err)
			break
		}
		w.Printf("ID: %s\nUser: %s\nGPS: (%.6f, %.6f)\nValue: %d\n%s\n",
			rec.ID, rec.User, rec.Latitude, rec.Longitude, rec.Value, separator)
		count++
	}

	if count == 0 {
		w.Println("No treasures found.")
	} else {
		w.Printf("Total treasures: %d\n", count)
	}
}

func (m *Monitor) viewTreasure(w *frame.Writer, hunt, id string) {
	rec, err := m.store.Find(hunt, id)
	switch {
	case errors.Is(err, treasure.ErrHuntNotFound):
		w.Printf("Hunt '%s' does not exist.\n", hunt)
	case errors.Is(err, treasure.ErrInvalidHunt):
		w.Printf("Error: Invalid hunt ID '%s'.\n", hunt)
	case errors.Is(err, treasure.ErrRecordNotFound):
		w.Printf("Treasure '%s' not found in hunt '%s'.\n", id, hunt)
	case err != nil:
		w.Printf("Failed to open treasure file for hunt '%s': %v\n", hunt, err)
	default:
		w.Printf("\nTreasure Details:\nID: %s\nUser: %s\nGPS Coordinates: (%.6f, %.6f)\nClue: %s\nValue: %d\n",
			rec.ID, rec.User, rec.Latitude, rec.Longitude, rec.Clue, rec.Value)
	}
}
