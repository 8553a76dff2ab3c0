// Package models defines server-side data models persisted in the database.
package models

import "time"

// MatchStatus is the closed set of lifecycle states a match moves through.
// Transitions only go forward along the graph in CanTransition, with FAILED
// reachable from any non-terminal state.
type MatchStatus string

const (
	StatusNone        MatchStatus = "NONE"
	StatusQueued      MatchStatus = "QUEUED"
	StatusResolved    MatchStatus = "RESOLVED"
	StatusDownloading MatchStatus = "DOWNLOADING"
	StatusDownloaded  MatchStatus = "DOWNLOADED"
	StatusUploading   MatchStatus = "UPLOADING"
	StatusUploaded    MatchStatus = "UPLOADED"
	StatusFailed      MatchStatus = "FAILED"
)

// statusRanks orders statuses for the no-downgrade upsert rule: an upsert may
// only move a row to a strictly higher rank. FAILED ranks below QUEUED so an
// explicit re-request of a failed match re-queues it; UPLOADED outranks
// everything and is never overwritten.
var statusRanks = map[MatchStatus]int{
	StatusNone:        0,
	StatusFailed:      1,
	StatusQueued:      2,
	StatusResolved:    3,
	StatusDownloading: 4,
	StatusDownloaded:  5,
	StatusUploading:   6,
	StatusUploaded:    7,
}

// Rank returns the ordering value used by the store's conditional upsert.
// Unknown statuses rank lowest.
func (s MatchStatus) Rank() int {
	return statusRanks[s]
}

// Valid reports whether s is a member of the status enum.
func (s MatchStatus) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Terminal reports whether no component will move the match further.
func (s MatchStatus) Terminal() bool {
	return s == StatusUploaded || s == StatusFailed
}

// forwardEdges is the happy-path transition graph driven by the resolver
// (QUEUED→RESOLVED) and the pipeline (RESOLVED→…→UPLOADED).
var forwardEdges = map[MatchStatus]MatchStatus{
	StatusNone:        StatusQueued,
	StatusQueued:      StatusResolved,
	StatusResolved:    StatusDownloading,
	StatusDownloading: StatusDownloaded,
	StatusDownloaded:  StatusUploading,
	StatusUploading:   StatusUploaded,
}

// CanTransition reports whether moving from s to the target status is legal:
// either the single forward edge, or the reset into FAILED from any
// non-terminal state.
func (s MatchStatus) CanTransition(to MatchStatus) bool {
	if to == StatusFailed {
		return !s.Terminal()
	}
	return forwardEdges[s] == to
}

// Match is the central pipeline entity, keyed by its share code.
//
// MatchID and ArtifactURL are write-once: they are populated by the resolver
// when the coordinator answers, and never cleared afterwards. UploadRef is
// set only on successful upload.
type Match struct {
	MatchCode   string      `db:"match_code"`
	MatchID     string      `db:"match_id"`
	OwnerID     string      `db:"owner_id"`
	ArtifactURL string      `db:"artifact_url"`
	UploadRef   string      `db:"upload_ref"`
	Status      MatchStatus `db:"status"`
	ObservedAt  time.Time   `db:"observed_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}
