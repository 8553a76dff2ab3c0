// Package common defines shared sentinel errors used across the service
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrClaimConflict is returned when a conditional status transition
	// finds the record in a different state than expected.
	ErrClaimConflict = errors.New("claim conflict")

	// Discovery errors. ErrNoNewerMatch is the resolution API's
	// exhaustion sentinel, not a failure.
	ErrNoNewerMatch = errors.New("no newer match")

	// Coordinator session errors.
	ErrSessionNotReady = errors.New("coordinator session not ready")
	ErrSessionClosed   = errors.New("coordinator session closed")

	// Pipeline errors.
	ErrNoArtifact = errors.New("no artifact location")
)
