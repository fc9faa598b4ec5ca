package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

func TestStartSession_ReturnsLocationHeader(t *testing.T) {
	var gotLength, gotType, gotAuth string
	var gotBody videoResource

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
		gotLength = r.Header.Get("X-Upload-Content-Length")
		gotType = r.Header.Get("X-Upload-Content-Type")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Location", "https://upload.example.com/session/abc")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(srv.URL, 5*time.Second)
	meta := models.VideoMetadata{Title: "My Video", CategoryID: "22", PrivacyStatus: "public"}

	sessionURL, err := c.StartSession(context.Background(), "tok123", meta, 4096, "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "https://upload.example.com/session/abc", sessionURL)
	require.Equal(t, "4096", gotLength)
	require.Equal(t, "video/mp4", gotType)
	require.Equal(t, "Bearer tok123", gotAuth)
	require.Equal(t, "My Video", gotBody.Snippet.Title)
	require.Equal(t, "public", gotBody.Status.PrivacyStatus)
}

func TestStartSession_ScheduledVideoIsPrivateWithPublishAt(t *testing.T) {
	var gotBody videoResource
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Location", "https://upload.example.com/s/1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	publishAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c := NewClientWithEndpoint(srv.URL, 5*time.Second)

	_, err := c.StartSession(context.Background(), "tok",
		models.VideoMetadata{Title: "t", PrivacyStatus: "public", PublishAt: &publishAt}, 1, "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "private", gotBody.Status.PrivacyStatus)
	require.Equal(t, "2026-09-01T12:00:00Z", gotBody.Status.PublishAt)
}

func TestStartSession_MissingLocationIsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(srv.URL, 5*time.Second)
	_, err := c.StartSession(context.Background(), "tok", models.VideoMetadata{Title: "t"}, 1, "video/mp4")
	require.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestSendChunk_IncompleteReportsConfirmedRange(t *testing.T) {
	var gotRange string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Content-Range")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Range", "bytes=0-1023")
		w.WriteHeader(308)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.SendChunk(context.Background(), srv.URL, "tok",
		strings.NewReader(strings.Repeat("x", 512)), 512, 512, 4096)
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Equal(t, int64(1024), res.ConfirmedOffset)
	require.Equal(t, "bytes 512-1023/4096", gotRange)
	require.Len(t, gotBody, 512)
}

func TestSendChunk_FinalResponseCarriesVideoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "vid-42"})
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.SendChunk(context.Background(), srv.URL, "tok",
		strings.NewReader("data"), 0, 4, 4)
	require.NoError(t, err)
	require.True(t, res.Done)
	require.Equal(t, "vid-42", res.VideoID)
}

func TestQueryOffset_SendsWildcardRange(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Content-Range")
		w.Header().Set("Range", "bytes=0-2047")
		w.WriteHeader(308)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.QueryOffset(context.Background(), srv.URL, "tok", 4096)
	require.NoError(t, err)
	require.Equal(t, "bytes */4096", gotRange)
	require.Equal(t, int64(2048), res.ConfirmedOffset)
}

func TestQueryOffset_NothingConfirmedYet(t *testing.T) {
	// No Range header means the remote has confirmed zero bytes.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(308)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	res, err := c.QueryOffset(context.Background(), srv.URL, "tok", 4096)
	require.NoError(t, err)
	require.Zero(t, res.ConfirmedOffset)
}

func TestStatusError_Mapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, "", apperrors.ErrAuthRejected},
		{"quota", http.StatusForbidden,
			`{"error":{"errors":[{"reason":"quotaExceeded"}],"message":"quota"}}`,
			apperrors.ErrQuotaExceeded},
		{"upload limit", http.StatusForbidden,
			`{"error":{"errors":[{"reason":"uploadLimitExceeded"}],"message":"limit"}}`,
			apperrors.ErrQuotaExceeded},
		{"other 403", http.StatusForbidden,
			`{"error":{"errors":[{"reason":"forbidden"}],"message":"no"}}`,
			apperrors.ErrAuthRejected},
		{"bad metadata", http.StatusBadRequest, `{"error":{"message":"invalidTitle"}}`,
			apperrors.ErrInvalidMetadata},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := NewClientWithEndpoint(srv.URL, 5*time.Second)
			_, err := c.StartSession(context.Background(), "tok", models.VideoMetadata{Title: "t"}, 1, "video/mp4")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStatusError_ServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		c := NewClient(5 * time.Second)
		_, err := c.SendChunk(context.Background(), srv.URL, "tok", strings.NewReader("d"), 0, 1, 10)
		require.True(t, apperrors.IsTransient(err), "status %d should be transient", status)
		srv.Close()
	}
}

func TestSendChunk_SessionGoneIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.SendChunk(context.Background(), srv.URL, "tok", strings.NewReader("d"), 0, 1, 10)
	require.ErrorIs(t, err, apperrors.ErrInternal)
	require.False(t, apperrors.IsTransient(err))
}

func TestParseRangeEnd(t *testing.T) {
	n, err := parseRangeEnd("bytes=0-12345")
	require.NoError(t, err)
	require.Equal(t, int64(12346), n)

	_, err = parseRangeEnd("garbage")
	require.Error(t, err)
}
