// Package common defines shared constants and sentinel errors used across
// the station client and the reference coordination service. Callers should
// use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Validation errors for payloads read from storage, the wire or another tab.
	ErrInvalidPayload = errors.New("invalid payload")

	// Auth errors (invalid or malformed token, wrong PIN).
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidPIN   = errors.New("invalid pin")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Race lifecycle errors.
	ErrRaceDeleted = errors.New("race deleted")
)
