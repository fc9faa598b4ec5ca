package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition_LegalMoves(t *testing.T) {
	legal := []struct{ from, to UploadStatus }{
		{StatusPending, StatusUploading},
		{StatusPending, StatusScheduled},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusFailed},
		{StatusScheduled, StatusPending},
		{StatusUploading, StatusProcessing},
		{StatusUploading, StatusFailed},
		{StatusUploading, StatusCancelled},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
		{StatusFailed, StatusPending},
	}
	for _, tc := range legal {
		require.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}
}

func TestCanTransition_IllegalMoves(t *testing.T) {
	illegal := []struct{ from, to UploadStatus }{
		{StatusProcessing, StatusCancelled},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusFailed},
		{StatusCancelled, StatusPending},
		{StatusScheduled, StatusUploading},
		{StatusScheduled, StatusCancelled},
		{StatusUploading, StatusPending},
		{StatusFailed, StatusUploading},
	}
	for _, tc := range illegal {
		require.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestUploadStatus_Terminal(t *testing.T) {
	require.True(t, StatusCompleted.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.True(t, StatusCancelled.Terminal())

	require.False(t, StatusPending.Terminal())
	require.False(t, StatusScheduled.Terminal())
	require.False(t, StatusUploading.Terminal())
	require.False(t, StatusProcessing.Terminal())
}

func TestFileReference_Expired(t *testing.T) {
	now := time.Now()
	ref := FileReference{ExpiresAt: now.Add(time.Hour)}

	require.False(t, ref.Expired(now))
	require.True(t, ref.Expired(now.Add(2*time.Hour)))
}

func TestFileReference_PinnedNeverExpires(t *testing.T) {
	now := time.Now()
	ref := FileReference{ExpiresAt: now.Add(-time.Hour), Pinned: true}

	require.False(t, ref.Expired(now))

	ref.Pinned = false
	require.True(t, ref.Expired(now))
}

func TestUploadSession_ProgressPercent(t *testing.T) {
	s := UploadSession{BytesUploaded: 50, TotalBytes: 200}
	require.InDelta(t, 25.0, s.ProgressPercent(), 0.001)

	s.TotalBytes = 0
	require.Zero(t, s.ProgressPercent())
}
