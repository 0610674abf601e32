package cli

import (
	"context"
	"fmt"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/models"
)

// Race shows the current race or joins another: race [id].
func (a *App) Race(ctx context.Context, args []string) error {
	if len(args) == 0 {
		race := a.store.RaceID()
		if race == "" {
			race = "(none)"
		}
		fmt.Fprintln(a.out, "Race:", race)
		return nil
	}
	if len(args) != 1 {
		return usage("race [id]")
	}
	a.store.SetRaceID(args[0])
	fmt.Fprintln(a.out, "Joined race", a.store.RaceID())
	return nil
}

// Login prompts for the race PIN and exchanges it for a credential.
func (a *App) Login(ctx context.Context, args []string) error {
	pin, err := getPIN(a.out)
	if err != nil {
		return err
	}
	if err := a.station.Login(ctx, pin); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged in")
	return nil
}

// Status prints the device, race and sync indicators.
func (a *App) Status(ctx context.Context, args []string) error {
	d := a.store.Device()
	st := a.store.State()
	network := "offline"
	if a.online != nil && a.online() {
		network = "online"
	}

	fmt.Fprintf(a.out, "Device:   %s (%s)\n", d.Name, d.ID)
	fmt.Fprintf(a.out, "Race:     %s\n", st.RaceID)
	fmt.Fprintf(a.out, "Sync:     %s (enabled=%t, credential=%t, %s)\n", st.SyncStatus, st.Settings.Sync, st.HasAuthToken, network)
	fmt.Fprintf(a.out, "Pending:  %d queued\n", len(st.SyncQueue))
	fmt.Fprintf(a.out, "Entries:  %d  Faults: %d\n", len(st.Entries), len(st.Faults))
	fmt.Fprintf(a.out, "Devices:  %d  Highest bib: %d\n", st.Cloud.DeviceCount, st.Cloud.HighestBib)
	return nil
}

// Sync runs a cycle now, or turns syncing on or off: sync [on|off].
func (a *App) Sync(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if err := a.station.SyncNow(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Sync requested")
		return nil
	}
	var on bool
	switch args[0] {
	case "on":
		on = true
	case "off":
	default:
		return usage("sync [on|off]")
	}
	a.store.UpdateSettings(func(s *models.Settings) { s.Sync = on })
	fmt.Fprintf(a.out, "Sync %s\n", args[0])
	return nil
}
