// Package services contains the station's sync services.
//
// EntrySync and FaultSync poll the coordination service, merge what comes
// back into the Store and push what the station recorded. Both share a
// Connection, which owns the status indicator and the reaction to failures:
// a 401 with expired=true clears the credential and stops syncing, anything
// else is classified as error or offline and retried on the next cycle.
//
// Engine runs the poll loop. Each cycle polls entries, pushes unsynced
// entries, polls faults and pushes unsynced faults; the Scheduler picks the
// delay to the next cycle from what changed and whether the cycle failed.
//
// AuthService exchanges the race PIN for a bearer credential.
package services
