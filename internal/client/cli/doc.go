// Package cli provides the interactive timing station console.
//
// It drives a running station.App through a small REPL: record start and
// finish crossings, report and review gate faults, join a race, log in with
// the race PIN and watch the sync status.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list.
package cli
