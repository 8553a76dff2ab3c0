package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from MatchStatus
		to   MatchStatus
		want bool
	}{
		{StatusQueued, StatusResolved, true},
		{StatusResolved, StatusDownloading, true},
		{StatusDownloading, StatusDownloaded, true},
		{StatusDownloaded, StatusUploading, true},
		{StatusUploading, StatusUploaded, true},

		// no skipping stages
		{StatusQueued, StatusDownloading, false},
		{StatusResolved, StatusUploaded, false},

		// no going backwards
		{StatusUploaded, StatusQueued, false},
		{StatusDownloaded, StatusResolved, false},

		// FAILED reachable from any non-terminal state, and terminal
		{StatusQueued, StatusFailed, true},
		{StatusDownloading, StatusFailed, true},
		{StatusUploading, StatusFailed, true},
		{StatusUploaded, StatusFailed, false},
		{StatusFailed, StatusFailed, false},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestMatchStatus_RankOrdering(t *testing.T) {
	// Upsert rule: FAILED may be re-queued, UPLOADED never downgrades.
	require.Less(t, StatusFailed.Rank(), StatusQueued.Rank())
	require.Greater(t, StatusUploaded.Rank(), StatusUploading.Rank())
	require.Less(t, StatusQueued.Rank(), StatusResolved.Rank())

	// unknown status ranks lowest
	require.Equal(t, 0, MatchStatus("BOGUS").Rank())
	require.False(t, MatchStatus("BOGUS").Valid())
}

func TestMatchStatus_Terminal(t *testing.T) {
	require.True(t, StatusUploaded.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.False(t, StatusQueued.Terminal())
	require.False(t, StatusDownloading.Terminal())
}
