package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

func parseFaultType(s string) (models.FaultType, bool) {
	switch ft := models.FaultType(strings.ToUpper(s)); ft {
	case models.FaultMissedGate, models.FaultStraddle, models.FaultBinding:
		return ft, true
	}
	return "", false
}

func (a *App) findFault(prefix string) (models.FaultEntry, error) {
	list := a.store.Faults()
	ids := make([]string, 0, len(list))
	for _, f := range list {
		ids = append(ids, f.ID)
	}
	id, err := resolveID(ids, prefix)
	if err != nil {
		return models.FaultEntry{}, err
	}
	for _, f := range list {
		if f.ID == id {
			return f, nil
		}
	}
	return models.FaultEntry{}, fmt.Errorf("%w: %s", errNotFound, prefix)
}

func (a *App) printFault(f models.FaultEntry) {
	state := ""
	if f.MarkedForDeletion {
		state = "  (deletion requested by " + f.MarkedForDeletionBy + ")"
	}
	fmt.Fprintf(a.out, "%s  bib %s run %d gate %d %s  v%d%s\n",
		f.ID, f.Bib, f.Run, f.GateNumber, f.FaultType, f.CurrentVersion, state)
}

// Fault reports a gate fault: fault <bib> <gate> <MG|STR|BR> [run].
func (a *App) Fault(ctx context.Context, args []string) error {
	const format = "fault <bib> <gate> <MG|STR|BR> [run]"
	if len(args) < 3 {
		return usage(format)
	}
	gate, err := strconv.Atoi(args[1])
	if err != nil || gate < 0 {
		return usage(format)
	}
	ft, ok := parseFaultType(args[2])
	if !ok {
		return usage(format)
	}
	run, err := parseRun(args, 3)
	if err != nil {
		return err
	}

	f, ok := a.store.AddFaultEntry(models.FaultSnapshot{
		Bib:        args[0],
		Run:        run,
		GateNumber: gate,
		FaultType:  ft,
		GateRange:  [2]int{gate, gate},
	})
	if !ok {
		return fmt.Errorf("fault rejected")
	}
	a.printFault(f)
	return nil
}

// parseFaultUpdate reads key=value pairs; words after "--" form the description.
func parseFaultUpdate(args []string) (models.FaultUpdate, string, error) {
	var u models.FaultUpdate
	for i, arg := range args {
		if arg == "--" {
			return u, strings.Join(args[i+1:], " "), nil
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return u, "", fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "bib":
			u.Bib = &value
		case "run":
			run, err := strconv.Atoi(value)
			if err != nil || (run != 1 && run != 2) {
				return u, "", fmt.Errorf("run must be 1 or 2, got %q", value)
			}
			u.Run = &run
		case "gate":
			gate, err := strconv.Atoi(value)
			if err != nil || gate < 0 {
				return u, "", fmt.Errorf("invalid gate %q", value)
			}
			u.GateNumber = &gate
		case "type":
			ft, ok := parseFaultType(value)
			if !ok {
				return u, "", fmt.Errorf("invalid fault type %q", value)
			}
			u.FaultType = &ft
		default:
			return u, "", fmt.Errorf("unknown field %q", key)
		}
	}
	return u, "", nil
}

// Edit changes a live fault: edit <faultId> key=value... [-- description].
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("edit <faultId> key=value... [-- description]")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	u, desc, err := parseFaultUpdate(args[1:])
	if err != nil {
		return err
	}
	if !a.store.UpdateFaultEntryWithHistory(f.ID, u, desc) {
		return fmt.Errorf("fault %s cannot be edited", f.ID)
	}
	f, _ = a.findFault(f.ID)
	a.printFault(f)
	return nil
}

// Restore brings back an earlier version: restore <faultId> <version>.
func (a *App) Restore(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("restore <faultId> <version>")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return usage("restore <faultId> <version>")
	}
	if !a.store.RestoreFaultVersion(f.ID, v) {
		return fmt.Errorf("version %d of %s cannot be restored", v, f.ID)
	}
	f, _ = a.findFault(f.ID)
	a.printFault(f)
	return nil
}

// Mark requests deletion of a fault: mark <faultId>.
func (a *App) Mark(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("mark <faultId>")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	if !a.store.MarkFaultForDeletion(f.ID) {
		return fmt.Errorf("fault %s is already pending deletion", f.ID)
	}
	fmt.Fprintf(a.out, "Deletion of %s requested\n", f.ID)
	return nil
}

// Reject withdraws a deletion request: reject <faultId>.
func (a *App) Reject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reject <faultId>")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	if !a.store.RejectFaultDeletion(f.ID) {
		return fmt.Errorf("fault %s is not pending deletion", f.ID)
	}
	fmt.Fprintf(a.out, "Fault %s kept\n", f.ID)
	return nil
}

// Approve confirms a pending deletion: approve <faultId>.
func (a *App) Approve(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("approve <faultId>")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	if !a.store.ApproveFaultDeletion(f.ID, a.store.Device().Name) {
		return fmt.Errorf("fault %s is not pending deletion", f.ID)
	}
	fmt.Fprintf(a.out, "Fault %s deleted\n", f.ID)
	return nil
}

// History prints every version of a fault: history <faultId>.
func (a *App) History(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("history <faultId>")
	}
	f, err := a.findFault(args[0])
	if err != nil {
		return err
	}
	a.printFault(f)
	for _, v := range f.VersionHistory {
		current := " "
		if v.Version == f.CurrentVersion {
			current = "*"
		}
		fmt.Fprintf(a.out, "%s v%d %-7s %s by %s: bib %s run %d gate %d %s",
			current, v.Version, v.ChangeType, v.Timestamp, v.EditedBy,
			v.Data.Bib, v.Data.Run, v.Data.GateNumber, v.Data.FaultType)
		if v.ChangeDescription != "" {
			fmt.Fprintf(a.out, " (%s)", v.ChangeDescription)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}
