// Package slices is the SQLite backend of the persisted slice store.
//
// Every logical slice of station state (entries, faults, settings, language,
// device identity, race identity, sync queue, credential) is one JSON document
// stored under its own key in the slices table. SetMany writes a batch of
// dirty slices in a single transaction so a flush either lands completely or
// leaves the previous documents in place.
package slices
