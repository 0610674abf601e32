package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Fault(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Mark(ctx context.Context, args []string) error
	Approve(ctx context.Context, args []string) error
	Reject(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Race(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  add <bib> <S|F> [run]              record a crossing
  list                               list entries
  delete <id>...                     delete entries
  fault <bib> <gate> <MG|STR|BR> [run]  report a gate fault
  edit <faultId> key=value...        edit a fault (bib, run, gate, type)
  restore <faultId> <version>        restore an earlier fault version
  mark <faultId>                     request fault deletion
  approve <faultId>                  approve a pending fault deletion
  reject <faultId>                   keep a fault pending deletion
  history <faultId>                  show a fault's versions
  race [id]                          show or join a race
  login                              exchange the race PIN for a credential
  status                             show device, race and sync status
  sync [on|off]                      sync now, or toggle sync
  exit | quit                        leave the program`

// runREPL starts a read–eval–print loop for the station console.
//
// It reads a line from the provided scanner, parses the first token as the
// command and hands the remaining tokens to the matching method on a.
// Errors returned by handlers are printed and the loop continues. The loop
// exits on scanner EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("timer %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "a", "add":
			err = a.Add(ctx, args)
		case "l", "list":
			err = a.List(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "fault":
			err = a.Fault(ctx, args)
		case "edit":
			err = a.Edit(ctx, args)
		case "restore":
			err = a.Restore(ctx, args)
		case "mark":
			err = a.Mark(ctx, args)
		case "approve":
			err = a.Approve(ctx, args)
		case "reject":
			err = a.Reject(ctx, args)
		case "history":
			err = a.History(ctx, args)
		case "race":
			err = a.Race(ctx, args)
		case "login":
			err = a.Login(ctx, args)
		case "status":
			err = a.Status(ctx, args)
		case "sync":
			err = a.Sync(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
