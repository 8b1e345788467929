package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/CZERTAINLY/treasure-hub/internal/frame"
	"github.com/CZERTAINLY/treasure-hub/internal/huntlog"
	"github.com/CZERTAINLY/treasure-hub/internal/mailbox"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/monitor"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"

	"github.com/spf13/cobra"
)

var treasureCmd = &cobra.Command{
	Use:   "treasure",
	Short: "manage treasures of a hunt",
}

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "manage hunts",
}

var flagRecord treasure.Record // flags of treasure add

func init() {
	addCmd := &cobra.Command{
		Use:   "add <hunt>",
		Short: "append a treasure to the hunt, creating it when needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addTreasure(cmd.OutOrStdout(), manager(), args[0], flagRecord)
		},
	}
	flags := addCmd.Flags()
	flags.StringVar(&flagRecord.ID, "id", "", "treasure id")
	flags.StringVar(&flagRecord.User, "user", "", "user who hid the treasure")
	flags.Float64Var(&flagRecord.Latitude, "lat", 0, "latitude")
	flags.Float64Var(&flagRecord.Longitude, "lon", 0, "longitude")
	flags.StringVar(&flagRecord.Clue, "clue", "", "clue text")
	flags.Int32Var(&flagRecord.Value, "value", 0, "treasure value")
	_ = addCmd.MarkFlagRequired("id")
	_ = addCmd.MarkFlagRequired("user")

	listCmd := &cobra.Command{
		Use:   "list <hunt>",
		Short: "list treasures of the hunt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTreasures(cmd.Context(), cmd.OutOrStdout(), manager(), args[0])
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <hunt> <id>",
		Short: "show a single treasure",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return viewTreasure(cmd.Context(), cmd.OutOrStdout(), manager(), args[0], args[1])
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <hunt> <id>",
		Short: "remove a treasure from the hunt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeTreasure(cmd.OutOrStdout(), manager(), args[0], args[1])
		},
	}
	treasureCmd.AddCommand(addCmd, listCmd, viewCmd, removeCmd)

	huntCmd.AddCommand(&cobra.Command{
		Use:   "remove <hunt>",
		Short: "remove the hunt with all its treasures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeHunt(cmd.OutOrStdout(), manager(), args[0])
		},
	})
}

// manage bundles what the manager commands operate on.
type manage struct {
	store treasure.Store
	log   huntlog.Logger
}

func manager() manage {
	dir := config.Service.WorkDir()
	return manage{store: treasure.Open(dir), log: huntlog.New(dir)}
}

func (m manage) record(hunt, operation string) {
	if err := m.log.Log(hunt, operation); err != nil {
		slog.Warn("logging operation", "hunt", hunt, "error", err)
	}
}

func addTreasure(out io.Writer, m manage, hunt string, rec treasure.Record) error {
	if err := m.store.Append(hunt, rec); err != nil {
		return fmt.Errorf("adding treasure: %w", err)
	}
	m.record(hunt, fmt.Sprintf("Added treasure %s by user %s", rec.ID, rec.User))
	fmt.Fprintln(out, "Treasure added successfully.")
	return nil
}

// listTreasures and viewTreasure print exactly what the monitor streams
// for the same request.
func listTreasures(ctx context.Context, out io.Writer, m manage, hunt string) error {
	return query(ctx, out, m, hunt, model.Request{Command: model.CmdListTreasures, Argument: hunt},
		"Listed all treasures in hunt "+hunt)
}

func viewTreasure(ctx context.Context, out io.Writer, m manage, hunt, id string) error {
	return query(ctx, out, m, hunt, model.Request{Command: model.CmdViewTreasure, Argument: hunt + " " + id},
		fmt.Sprintf("Viewed treasure %s in hunt %s", id, hunt))
}

func query(ctx context.Context, out io.Writer, m manage, hunt string, req model.Request, operation string) error {
	if _, err := m.store.Stat(hunt); err != nil {
		return err
	}
	w := frame.NewWriter(out)
	mon := monitor.New(m.store, mailbox.Mailbox{}, nopCloser{out}, 0)
	mon.Dispatch(ctx, w, req)
	m.record(hunt, operation)
	return nil
}

func removeTreasure(out io.Writer, m manage, hunt, id string) error {
	if err := m.store.Remove(hunt, id); err != nil {
		return fmt.Errorf("removing treasure: %w", err)
	}
	m.record(hunt, fmt.Sprintf("Removed treasure %s from hunt %s", id, hunt))
	fmt.Fprintf(out, "Treasure %s removed from hunt %s.\n", id, hunt)
	return nil
}

func removeHunt(out io.Writer, m manage, hunt string) error {
	if err := m.store.RemoveHunt(hunt); err != nil {
		return fmt.Errorf("removing hunt: %w", err)
	}
	if err := m.log.Unlink(hunt); err != nil {
		slog.Warn("removing log symlink", "hunt", hunt, "error", err)
	}
	fmt.Fprintf(out, "Hunt %s removed.\n", hunt)
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
