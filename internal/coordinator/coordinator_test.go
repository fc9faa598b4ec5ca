package coordinator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/engine"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/filestore"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = data
	return nil
}

type nopSeekCloser struct{ *bytes.Reader }

func (nopSeekCloser) Close() error { return nil }

func (f *fakeObjects) GetObject(_ context.Context, name string) (io.ReadSeekCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[name]
	if !ok {
		return nil, errors.New("no such object")
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, name)
	return nil
}

// fakeEngine finishes transfers instantly unless block is set, in which case
// it waits for the channel or cancellation.
type fakeEngine struct {
	mu          sync.Mutex
	startErr    error
	startBlock  chan struct{}
	transferErr error
	block       chan struct{}
	starts      int
	transfers   int
	resumes     int
	sessions    int
	lastOffset  int64
}

func (f *fakeEngine) StartRemoteSession(ctx context.Context, _ string, _ models.FileReference, _ models.VideoMetadata) (string, error) {
	f.mu.Lock()
	f.starts++
	startBlock := f.startBlock
	startErr := f.startErr
	f.mu.Unlock()

	if startBlock != nil {
		select {
		case <-startBlock:
		case <-ctx.Done():
			return "", apperrors.Transientf("session start interrupted: %v", ctx.Err())
		}
	}
	if startErr != nil {
		return "", startErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return "fake://session", nil
}

func (f *fakeEngine) run(ctx context.Context, total int64, onProgress func(engine.Progress)) (engine.Result, error) {
	f.mu.Lock()
	block := f.block
	err := f.transferErr
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return engine.Result{}, apperrors.ErrCancelled
		}
	}
	if err != nil {
		return engine.Result{}, err
	}
	if onProgress != nil {
		onProgress(engine.Progress{BytesUploaded: total, TotalBytes: total, Percent: 100, SpeedBps: 1024})
	}
	return engine.Result{VideoID: "vid-1"}, nil
}

func (f *fakeEngine) Transfer(ctx context.Context, _, _ string, _ io.ReadSeeker, total int64, onProgress func(engine.Progress)) (engine.Result, error) {
	f.mu.Lock()
	f.transfers++
	f.mu.Unlock()
	return f.run(ctx, total, onProgress)
}

func (f *fakeEngine) Resume(ctx context.Context, _, _ string, _ io.ReadSeeker, total int64, onProgress func(engine.Progress)) (engine.Result, error) {
	f.mu.Lock()
	f.resumes++
	f.mu.Unlock()
	return f.run(ctx, total, onProgress)
}

type fixture struct {
	coord  *Coordinator
	eng    *fakeEngine
	store  storage.Store
	files  *filestore.FileStore
	refID  string
	cancel context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	files := filestore.New(store, newFakeObjects(), nil, nil, 1<<20, time.Hour)
	eng := &fakeEngine{}

	coord := New(store, files, eng, nil, Config{
		MaxConcurrent:     2,
		SchedulerInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord.Run(ctx)

	ref, err := files.Register(context.Background(), "alice", "clip.mp4", "video/mp4",
		models.FileTypeVideo, strings.NewReader("fake video bytes"), 16)
	require.NoError(t, err)

	require.NoError(t, store.SaveCredential(models.ChannelCredential{
		ChannelID: "ch1", OwnerID: "alice", RefreshToken: "rt",
	}))

	return &fixture{coord: coord, eng: eng, store: store, files: files, refID: ref.ID, cancel: cancel}
}

func (f *fixture) waitForStatus(t *testing.T, sessionID string, want models.UploadStatus) models.UploadSession {
	t.Helper()
	var session models.UploadSession
	require.Eventually(t, func() bool {
		s, ok := f.store.GetUploadSession(sessionID)
		if ok && s.Status == want {
			session = s
			return true
		}
		return false
	}, 3*time.Second, 5*time.Millisecond, "session never reached %s", want)
	return session
}

func validMeta() models.VideoMetadata {
	return models.VideoMetadata{Title: "My Video"}
}

func TestCreate_RunsToCompletion(t *testing.T) {
	f := newFixture(t)

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, session.Status)
	require.Equal(t, "22", session.Metadata.CategoryID, "category defaults")
	require.Equal(t, "private", session.Metadata.PrivacyStatus, "privacy defaults")

	done := f.waitForStatus(t, session.ID, models.StatusCompleted)
	require.Equal(t, "vid-1", done.VideoID)
	require.Equal(t, done.TotalBytes, done.BytesUploaded)
	require.NotNil(t, done.CompletedAt)
	require.Empty(t, done.Error)

	// Completion consumes the file reference.
	ref, ok := f.store.GetFileReference(f.refID)
	require.True(t, ok)
	require.False(t, ref.IsTemporary)
	require.False(t, ref.Pinned)

	snap, err := f.coord.Status(session.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, snap.Status)
	require.InDelta(t, 100.0, snap.Percent, 0.001)
}

func TestCreate_ValidationFailures(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Create("alice", "missing", "ch1", validMeta())
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.coord.Create("mallory", f.refID, "ch1", validMeta())
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.coord.Create("alice", f.refID, "unknown-channel", validMeta())
	require.ErrorIs(t, err, apperrors.ErrNoSuchAccount)

	_, err = f.coord.Create("alice", f.refID, "ch1", models.VideoMetadata{})
	require.ErrorIs(t, err, apperrors.ErrInvalidMetadata)

	meta := validMeta()
	meta.PrivacyStatus = "secret"
	_, err = f.coord.Create("alice", f.refID, "ch1", meta)
	require.ErrorIs(t, err, apperrors.ErrInvalidMetadata)

	past := time.Now().Add(-time.Hour)
	meta = validMeta()
	meta.PublishAt = &past
	_, err = f.coord.Create("alice", f.refID, "ch1", meta)
	require.ErrorIs(t, err, apperrors.ErrInvalidMetadata)
}

func TestCreate_ChannelOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveCredential(models.ChannelCredential{
		ChannelID: "bobs-channel", OwnerID: "bob", RefreshToken: "rt",
	}))

	_, err := f.coord.Create("alice", f.refID, "bobs-channel", validMeta())
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCreate_ChannelNeedsReauth(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveCredential(models.ChannelCredential{
		ChannelID: "stale", OwnerID: "alice", NeedsReauth: true,
	}))

	_, err := f.coord.Create("alice", f.refID, "stale", validMeta())
	require.ErrorIs(t, err, apperrors.ErrReauthRequired)
}

func TestCreate_RejectsThumbnailReference(t *testing.T) {
	f := newFixture(t)
	thumb, err := f.files.Register(context.Background(), "alice", "cover.png", "image/png",
		models.FileTypeThumbnail, strings.NewReader("png"), 3)
	require.NoError(t, err)

	_, err = f.coord.Create("alice", thumb.ID, "ch1", validMeta())
	require.ErrorIs(t, err, apperrors.ErrUnsupportedType)
}

func TestCreate_OneLiveSessionPerReference(t *testing.T) {
	f := newFixture(t)
	f.eng.block = make(chan struct{})

	first, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)

	_, err = f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.ErrorIs(t, err, apperrors.ErrAlreadyInProgress)

	close(f.eng.block)
	f.waitForStatus(t, first.ID, models.StatusCompleted)

	// A terminal session releases the reference for a new one... but
	// completion consumed it, so the next create sees it expired.
	_, err = f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.ErrorIs(t, err, apperrors.ErrExpired)
}

func TestCancel_StopsRunningTransfer(t *testing.T) {
	f := newFixture(t)
	f.eng.block = make(chan struct{})

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, models.StatusUploading)

	require.NoError(t, f.coord.Cancel(session.ID, "alice"))
	f.waitForStatus(t, session.ID, models.StatusCancelled)

	// Cancellation releases the pin so the reference expires normally.
	ref, ok := f.store.GetFileReference(f.refID)
	require.True(t, ok)
	require.False(t, ref.Pinned)
	require.True(t, ref.IsTemporary, "cancel must not consume the reference")
}

func TestCancel_DuringRemoteSessionStart(t *testing.T) {
	f := newFixture(t)
	f.eng.startBlock = make(chan struct{})

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)

	// Wait until the transfer goroutine is inside the session-start call.
	require.Eventually(t, func() bool {
		f.eng.mu.Lock()
		defer f.eng.mu.Unlock()
		return f.eng.starts == 1
	}, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, f.coord.Cancel(session.ID, "alice"))
	done := f.waitForStatus(t, session.ID, models.StatusCancelled)
	require.NotEqual(t, models.StatusFailed, done.Status)

	ref, ok := f.store.GetFileReference(f.refID)
	require.True(t, ok)
	require.False(t, ref.Pinned)
	require.True(t, ref.IsTemporary)
}

func TestCancel_RejectedWhileProcessing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveUploadSession(models.UploadSession{
		ID: "p1", OwnerID: "alice", FileReferenceID: f.refID, ChannelID: "ch1",
		Metadata: validMeta(), Status: models.StatusProcessing,
		BytesUploaded: 16, TotalBytes: 16,
	}))

	err := f.coord.Cancel("p1", "alice")
	require.ErrorIs(t, err, apperrors.ErrAlreadyInProgress)
	require.Contains(t, apperrors.UserMessage(err), "finalizing")

	current, ok := f.store.GetUploadSession("p1")
	require.True(t, ok)
	require.Equal(t, models.StatusProcessing, current.Status, "rejected cancel must not change state")
}

func TestCancel_OwnershipAndTerminalStates(t *testing.T) {
	f := newFixture(t)

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, models.StatusCompleted)

	require.ErrorIs(t, f.coord.Cancel(session.ID, "mallory"), apperrors.ErrForbidden)
	require.ErrorIs(t, f.coord.Cancel(session.ID, "alice"), apperrors.ErrAlreadyInProgress)
	require.ErrorIs(t, f.coord.Cancel("missing", "alice"), apperrors.ErrNotFound)
}

func TestRetry_RequeuesFailedSession(t *testing.T) {
	f := newFixture(t)
	f.eng.transferErr = apperrors.Transientf("network gone")

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)

	failed := f.waitForStatus(t, session.ID, models.StatusFailed)
	require.NotEmpty(t, failed.Error)
	require.NotContains(t, failed.Error, "network gone", "raw errors never reach the user")

	f.eng.mu.Lock()
	f.eng.transferErr = nil
	f.eng.mu.Unlock()

	retried, err := f.coord.Retry(session.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, retried.Status)
	require.Empty(t, retried.Error)
	require.Zero(t, retried.BytesUploaded)

	done := f.waitForStatus(t, session.ID, models.StatusCompleted)
	require.Equal(t, "vid-1", done.VideoID)

	f.eng.mu.Lock()
	sessions := f.eng.sessions
	f.eng.mu.Unlock()
	require.Equal(t, 2, sessions, "retry establishes a fresh remote session")
}

func TestRetry_RefusedWhileReferenceClaimed(t *testing.T) {
	f := newFixture(t)
	f.eng.transferErr = apperrors.Transientf("network gone")

	first, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, first.ID, models.StatusFailed)

	f.eng.mu.Lock()
	f.eng.transferErr = nil
	f.eng.block = make(chan struct{})
	f.eng.mu.Unlock()

	// A second session claims the reference and holds it mid-transfer.
	second, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, second.ID, models.StatusUploading)

	_, err = f.coord.Retry(first.ID, "alice")
	require.ErrorIs(t, err, apperrors.ErrAlreadyInProgress)

	current, ok := f.store.GetUploadSession(first.ID)
	require.True(t, ok)
	require.Equal(t, models.StatusFailed, current.Status, "refused retry must not re-queue the session")

	close(f.eng.block)
	f.waitForStatus(t, second.ID, models.StatusCompleted)
}

func TestRetry_OnlyFailedSessions(t *testing.T) {
	f := newFixture(t)

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, models.StatusCompleted)

	_, err = f.coord.Retry(session.ID, "alice")
	require.ErrorIs(t, err, apperrors.ErrAlreadyInProgress)
}

func TestScheduledSession_StartsWhenDue(t *testing.T) {
	f := newFixture(t)

	publishAt := time.Now().Add(80 * time.Millisecond)
	meta := validMeta()
	meta.PublishAt = &publishAt

	session, err := f.coord.Create("alice", f.refID, "ch1", meta)
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, session.Status)

	// Not promoted before the publish time.
	time.Sleep(30 * time.Millisecond)
	current, _ := f.store.GetUploadSession(session.ID)
	require.Equal(t, models.StatusScheduled, current.Status)

	f.waitForStatus(t, session.ID, models.StatusCompleted)
}

func TestRecovery_ResumesInterruptedSession(t *testing.T) {
	store := storage.NewMemoryStore()
	files := filestore.New(store, newFakeObjects(), nil, nil, 1<<20, time.Hour)
	eng := &fakeEngine{}

	ref, err := files.Register(context.Background(), "alice", "clip.mp4", "video/mp4",
		models.FileTypeVideo, strings.NewReader("fake video bytes"), 16)
	require.NoError(t, err)
	require.NoError(t, files.Pin(ref.ID))
	require.NoError(t, store.SaveCredential(models.ChannelCredential{
		ChannelID: "ch1", OwnerID: "alice", RefreshToken: "rt",
	}))

	// What a previous process would have left behind mid-transfer.
	require.NoError(t, store.SaveUploadSession(models.UploadSession{
		ID: "s1", OwnerID: "alice", FileReferenceID: ref.ID, ChannelID: "ch1",
		Metadata: validMeta(), Status: models.StatusUploading,
		BytesUploaded: 8, TotalBytes: 16, RemoteSessionURL: "fake://old",
	}))

	coord := New(store, files, eng, nil, Config{MaxConcurrent: 2, SchedulerInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	coord.Run(ctx)

	require.Eventually(t, func() bool {
		s, ok := store.GetUploadSession("s1")
		return ok && s.Status == models.StatusCompleted
	}, 3*time.Second, 5*time.Millisecond)

	eng.mu.Lock()
	defer eng.mu.Unlock()
	require.Equal(t, 1, eng.resumes, "recovery must resume, not restart")
	require.Zero(t, eng.transfers)
	require.Zero(t, eng.sessions, "the existing remote session must be reused")
}

func TestSubscribe_DeliversTerminalSnapshot(t *testing.T) {
	f := newFixture(t)
	f.eng.block = make(chan struct{})

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)

	updates, unsubscribe, err := f.coord.Subscribe(session.ID, "alice")
	require.NoError(t, err)
	defer unsubscribe()

	_, _, err = f.coord.Subscribe(session.ID, "mallory")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	close(f.eng.block)

	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Status == models.StatusCompleted {
				require.Equal(t, "vid-1", snap.VideoID)
				return
			}
		case <-deadline:
			t.Fatal("never saw the completed snapshot")
		}
	}
}

func TestStatus_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)

	_, err = f.coord.Status(session.ID, "mallory")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.coord.Status("missing", "alice")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t)

	session, err := f.coord.Create("alice", f.refID, "ch1", validMeta())
	require.NoError(t, err)
	f.waitForStatus(t, session.ID, models.StatusCompleted)

	completed, err := f.coord.List("alice", models.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	failed, err := f.coord.List("alice", models.StatusFailed)
	require.NoError(t, err)
	require.Empty(t, failed)
}
