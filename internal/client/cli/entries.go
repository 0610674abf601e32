package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

func parsePoint(s string) (models.Point, bool) {
	switch strings.ToUpper(s) {
	case "S", "START":
		return models.PointStart, true
	case "F", "FINISH":
		return models.PointFinish, true
	}
	return "", false
}

func parseRun(args []string, i int) (int, error) {
	if len(args) <= i {
		return 1, nil
	}
	run, err := strconv.Atoi(args[i])
	if err != nil || (run != 1 && run != 2) {
		return 0, fmt.Errorf("run must be 1 or 2, got %q", args[i])
	}
	return run, nil
}

// Add records a crossing: add <bib> <S|F> [run].
func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("add <bib> <S|F> [run]")
	}
	point, ok := parsePoint(args[1])
	if !ok {
		return usage("add <bib> <S|F> [run]")
	}
	run, err := parseRun(args, 2)
	if err != nil {
		return err
	}

	e := a.store.NewEntry(args[0], point, run)
	if !a.store.AddEntry(e) {
		return fmt.Errorf("entry rejected")
	}
	fmt.Fprintf(a.out, "%s  bib %s  %s run %d  %s\n", e.ID, e.Bib, e.Point, e.Run, e.Timestamp)
	return nil
}

// List prints every entry, oldest first.
func (a *App) List(ctx context.Context, args []string) error {
	list := a.store.Entries()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No entries")
		return nil
	}
	for _, e := range list {
		mark := " "
		if e.IsSynced() {
			mark = "✓"
		}
		fmt.Fprintf(a.out, "%s %s  bib %-4s %s run %d  %-3s %s  %s\n",
			mark, e.Timestamp, e.Bib, e.Point, e.Run, e.Status, e.DeviceName, e.ID)
	}
	return nil
}

// Delete removes entries by id or unique id prefix: delete <id>...
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usage("delete <id>...")
	}
	known := make([]string, 0, len(a.store.Entries()))
	for _, e := range a.store.Entries() {
		known = append(known, e.ID)
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := resolveID(known, arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	n := a.store.DeleteMultiple(ids)
	fmt.Fprintf(a.out, "Deleted %d entries\n", n)
	return nil
}
