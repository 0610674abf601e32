package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/station"
	"github.com/jmeckel/ski-race-timer-sub004/internal/client/store"
)

var (
	errUsage    = errors.New("usage")
	errNotFound = errors.New("no such id")
	errAmbigous = errors.New("ambiguous id prefix")
)

// getPIN is an indirection over GetPIN so tests can skip the terminal.
var getPIN = GetPIN

// stationAPI is what the console needs from a running station beyond its Store.
type stationAPI interface {
	Login(ctx context.Context, pin string) error
	SyncNow() error
}

type App struct {
	store   *store.Store
	station stationAPI
	online  func() bool
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp builds a console for st reading from stdin.
func NewApp(st *station.App) *App {
	return &App{
		store:   st.Store,
		station: st,
		online:  st.Monitor.IsOnline,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// Run blocks in the REPL until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Ski race timer (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) getStatus() string {
	parts := []string{}
	if race := a.store.RaceID(); race != "" {
		parts = append(parts, race)
	}
	parts = append(parts, string(a.store.SyncStatus()))
	return fmt.Sprintf("(%s)", strings.Join(parts, " "))
}

func usage(format string) error {
	return fmt.Errorf("%w: %s", errUsage, format)
}

// resolveID returns the id in ids equal to prefix, or the only one starting with it.
func resolveID(ids []string, prefix string) (string, error) {
	var match string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbigous, prefix)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", errNotFound, prefix)
	}
	return match, nil
}
