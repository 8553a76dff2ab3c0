// Package coordinator models the shared game-coordinator session the
// resolver issues share-code resolutions against. The session is a stateful
// singleton: it is either disconnected, connecting, or ready, and only a
// ready session accepts resolution requests. Requests are fire-and-forget;
// answers come back asynchronously, out of request order, on the event
// channel.
package coordinator

import "context"

// MatchEvent is one asynchronous answer from the coordinator: the resolved
// external match id and artifact location, correlated by share code.
type MatchEvent struct {
	ShareCode   string `json:"share_code"`
	MatchID     string `json:"match_id"`
	ArtifactURL string `json:"artifact_url"`
}

// State is the session's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is the capability the resolver depends on.
type Session interface {
	// Run maintains the session until ctx is cancelled, reconnecting as
	// needed. It returns ctx.Err() on shutdown.
	Run(ctx context.Context) error

	// State returns the current connection state.
	State() State

	// Ready reports whether resolution requests will be accepted.
	Ready() bool

	// RequestResolution asks the coordinator to resolve the share code.
	// It returns common.ErrSessionNotReady before the session signals
	// readiness; such requests are dropped, never queued.
	RequestResolution(ctx context.Context, shareCode string) error

	// Events is the bounded channel the coordinator's answers arrive on.
	Events() <-chan MatchEvent
}
