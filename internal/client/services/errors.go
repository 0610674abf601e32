package services

import "errors"

var (
	ErrSyncDisabled  = errors.New("sync disabled")
	ErrNoRace        = errors.New("no race selected")
	ErrNoCredential  = errors.New("no credential")
	ErrOffline       = errors.New("offline")
	ErrAlreadyActive = errors.New("sync already running")
)
