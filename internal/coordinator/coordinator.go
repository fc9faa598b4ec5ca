package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/engine"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/filestore"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/services"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
)

const (
	defaultMaxConcurrent     = 3
	defaultSchedulerInterval = time.Second
	defaultCategoryID        = "22"
	maxTitleLength           = 100
	maxDescriptionLength     = 5000
)

// Engine is the transfer backend. *engine.Engine implements it; tests swap
// in a fake so no bytes move.
type Engine interface {
	StartRemoteSession(ctx context.Context, channelID string, ref models.FileReference, meta models.VideoMetadata) (string, error)
	Transfer(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, total int64, onProgress func(engine.Progress)) (engine.Result, error)
	Resume(ctx context.Context, sessionURL, channelID string, src io.ReadSeeker, total int64, onProgress func(engine.Progress)) (engine.Result, error)
}

// Snapshot is the cached view of a session that status reads return. It is
// maintained in memory so polling never touches the remote API.
type Snapshot struct {
	ID            string              `json:"id"`
	Status        models.UploadStatus `json:"status"`
	BytesUploaded int64               `json:"bytes_uploaded"`
	TotalBytes    int64               `json:"total_bytes"`
	Percent       float64             `json:"percent"`
	SpeedBps      float64             `json:"speed_bps,omitempty"`
	VideoID       string              `json:"video_id,omitempty"`
	Error         string              `json:"error,omitempty"`
	RetryCount    int                 `json:"retry_count"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Config carries the coordinator tunables.
type Config struct {
	MaxConcurrent     int
	SchedulerInterval time.Duration
}

// Coordinator owns the upload session lifecycle: it enforces the state
// machine, caps concurrent transfers, runs the scheduler for deferred
// sessions and fans progress out to subscribers.
type Coordinator struct {
	store  storage.Store
	files  *filestore.FileStore
	engine Engine
	events *services.EventPublisher

	sem               *semaphore.Weighted
	schedulerInterval time.Duration

	mu        sync.RWMutex
	baseCtx   context.Context
	running   map[string]context.CancelFunc
	cancelled map[string]bool
	snapshots map[string]Snapshot
	subs      map[string]map[int]chan Snapshot
	nextSubID int

	// createMu serializes session creation so the one-live-session-per-
	// reference check cannot race with itself.
	createMu sync.Mutex

	now func() time.Time
}

func New(store storage.Store, files *filestore.FileStore, eng Engine, events *services.EventPublisher, cfg Config) *Coordinator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = defaultSchedulerInterval
	}
	return &Coordinator{
		store:             store,
		files:             files,
		engine:            eng,
		events:            events,
		sem:               semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		schedulerInterval: cfg.SchedulerInterval,
		running:           make(map[string]context.CancelFunc),
		cancelled:         make(map[string]bool),
		snapshots:         make(map[string]Snapshot),
		subs:              make(map[string]map[int]chan Snapshot),
		now:               time.Now,
	}
}

// Run recovers sessions interrupted by a previous shutdown and starts the
// scheduler. All transfers launched afterwards stop when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.recoverInterrupted()
	go c.schedulerLoop(ctx)
}

// Create validates inputs, claims the file reference and registers a new
// session. Sessions with a future publish time wait in scheduled; everything
// else starts immediately.
func (c *Coordinator) Create(ownerID, referenceID, channelID string, meta models.VideoMetadata) (models.UploadSession, error) {
	ref, err := c.files.Resolve(referenceID, ownerID)
	if err != nil {
		return models.UploadSession{}, err
	}
	if ref.FileType != models.FileTypeVideo {
		return models.UploadSession{}, fmt.Errorf("%w: reference holds a %s, not a video", apperrors.ErrUnsupportedType, ref.FileType)
	}

	cred, ok := c.store.GetCredential(channelID)
	if !ok {
		return models.UploadSession{}, apperrors.ErrNoSuchAccount
	}
	if cred.OwnerID != ownerID {
		return models.UploadSession{}, apperrors.ErrForbidden
	}
	if cred.NeedsReauth {
		return models.UploadSession{}, apperrors.ErrReauthRequired
	}

	now := c.now()
	if err := validateMetadata(&meta, now); err != nil {
		return models.UploadSession{}, err
	}

	c.createMu.Lock()
	defer c.createMu.Unlock()

	if live, exists := c.store.LiveSessionForReference(referenceID); exists {
		return models.UploadSession{}, fmt.Errorf("%w: reference is already claimed by session %s", apperrors.ErrAlreadyInProgress, live.ID)
	}

	session := models.UploadSession{
		ID:              uuid.New().String(),
		OwnerID:         ownerID,
		FileReferenceID: referenceID,
		ChannelID:       channelID,
		Metadata:        meta,
		Status:          models.StatusPending,
		TotalBytes:      ref.SizeBytes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if meta.PublishAt != nil {
		session.Status = models.StatusScheduled
	}

	if err := c.files.Pin(referenceID); err != nil {
		return models.UploadSession{}, fmt.Errorf("failed to claim file reference: %w", err)
	}
	if err := c.store.SaveUploadSession(session); err != nil {
		if unpinErr := c.files.Unpin(referenceID); unpinErr != nil {
			log.Printf("[Coordinator] failed to release reference %s after save failure: %v", referenceID, unpinErr)
		}
		return models.UploadSession{}, fmt.Errorf("failed to save upload session: %w", err)
	}

	c.publishSnapshot(session, 0)

	if session.Status == models.StatusPending {
		c.launch(session.ID)
	}
	return session, nil
}

// Cancel stops a pending or uploading session. Running transfers stop at the
// next chunk boundary; already-confirmed bytes stay confirmed remotely.
func (c *Coordinator) Cancel(sessionID, ownerID string) error {
	session, ok := c.store.GetUploadSession(sessionID)
	if !ok {
		return apperrors.ErrNotFound
	}
	if session.OwnerID != ownerID {
		return apperrors.ErrForbidden
	}

	switch session.Status {
	case models.StatusPending, models.StatusUploading:
	case models.StatusProcessing:
		return fmt.Errorf("%w: upload is finalizing and can no longer be cancelled", apperrors.ErrAlreadyInProgress)
	default:
		return fmt.Errorf("%w: session is %s", apperrors.ErrAlreadyInProgress, session.Status)
	}

	c.mu.Lock()
	c.cancelled[sessionID] = true
	cancel, active := c.running[sessionID]
	c.mu.Unlock()

	if active {
		// The session goroutine observes the cancellation at the next chunk
		// boundary and records the terminal state itself.
		cancel()
		return nil
	}
	c.finishCancelled(session)
	return nil
}

// Retry re-queues a failed session. The old remote session is abandoned and
// a fresh one is established when the transfer starts.
func (c *Coordinator) Retry(sessionID, ownerID string) (models.UploadSession, error) {
	session, ok := c.store.GetUploadSession(sessionID)
	if !ok {
		return models.UploadSession{}, apperrors.ErrNotFound
	}
	if session.OwnerID != ownerID {
		return models.UploadSession{}, apperrors.ErrForbidden
	}
	if session.Status != models.StatusFailed {
		return models.UploadSession{}, fmt.Errorf("%w: only failed sessions can be retried", apperrors.ErrAlreadyInProgress)
	}

	if _, err := c.files.Resolve(session.FileReferenceID, ownerID); err != nil {
		return models.UploadSession{}, err
	}

	// Re-queuing reclaims the reference, so it is subject to the same
	// single-claim rule as a fresh create.
	c.createMu.Lock()
	defer c.createMu.Unlock()

	if live, exists := c.store.LiveSessionForReference(session.FileReferenceID); exists {
		return models.UploadSession{}, fmt.Errorf("%w: reference is already claimed by session %s", apperrors.ErrAlreadyInProgress, live.ID)
	}

	if err := c.files.Pin(session.FileReferenceID); err != nil {
		return models.UploadSession{}, fmt.Errorf("failed to claim file reference: %w", err)
	}

	session.Status = models.StatusPending
	session.BytesUploaded = 0
	session.RemoteSessionURL = ""
	session.VideoID = ""
	session.Error = ""
	session.RetryCount = 0
	session.UpdatedAt = c.now()
	if err := c.store.SaveUploadSession(session); err != nil {
		return models.UploadSession{}, fmt.Errorf("failed to save upload session: %w", err)
	}

	c.mu.Lock()
	delete(c.cancelled, session.ID)
	c.mu.Unlock()

	c.publishSnapshot(session, 0)
	c.launch(session.ID)
	return session, nil
}

// Status returns the cached session view. It reads local state only, never
// the remote API, so it is safe to poll aggressively.
func (c *Coordinator) Status(sessionID, ownerID string) (Snapshot, error) {
	session, ok := c.store.GetUploadSession(sessionID)
	if !ok {
		return Snapshot{}, apperrors.ErrNotFound
	}
	if session.OwnerID != ownerID {
		return Snapshot{}, apperrors.ErrForbidden
	}

	snap := snapshotFromSession(session)
	c.mu.RLock()
	if cached, exists := c.snapshots[sessionID]; exists {
		snap.SpeedBps = cached.SpeedBps
	}
	c.mu.RUnlock()
	return snap, nil
}

// List returns the caller's sessions, optionally filtered by status.
func (c *Coordinator) List(ownerID string, status models.UploadStatus) ([]models.UploadSession, error) {
	return c.store.ListUploadSessionsByOwner(ownerID, status)
}

// Subscribe returns a channel of snapshot updates for one session plus an
// unsubscribe function. Slow consumers miss updates rather than stalling the
// transfer.
func (c *Coordinator) Subscribe(sessionID, ownerID string) (<-chan Snapshot, func(), error) {
	session, ok := c.store.GetUploadSession(sessionID)
	if !ok {
		return nil, nil, apperrors.ErrNotFound
	}
	if session.OwnerID != ownerID {
		return nil, nil, apperrors.ErrForbidden
	}

	ch := make(chan Snapshot, 16)
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	if c.subs[sessionID] == nil {
		c.subs[sessionID] = make(map[int]chan Snapshot)
	}
	c.subs[sessionID][id] = ch
	c.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs[sessionID], id)
			if len(c.subs[sessionID]) == 0 {
				delete(c.subs, sessionID)
			}
			c.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe, nil
}

// launch starts the session goroutine with a per-session cancel handle.
func (c *Coordinator) launch(sessionID string) {
	c.mu.Lock()
	if _, exists := c.running[sessionID]; exists {
		c.mu.Unlock()
		return
	}
	base := c.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	c.running[sessionID] = cancel
	c.mu.Unlock()

	go func() {
		defer cancel()
		defer func() {
			c.mu.Lock()
			delete(c.running, sessionID)
			c.mu.Unlock()
		}()
		c.runSession(ctx, sessionID)
	}()
}

// runSession drives one session from pending to a terminal state. A bounded
// semaphore caps how many transfers move bytes at once; sessions wait in
// pending until a slot frees up.
func (c *Coordinator) runSession(ctx context.Context, sessionID string) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		if session, ok := c.store.GetUploadSession(sessionID); ok && c.cancelRequested(sessionID) {
			c.finishCancelled(session)
		}
		return
	}
	defer c.sem.Release(1)

	session, ok := c.store.GetUploadSession(sessionID)
	if !ok {
		log.Printf("[Coordinator] session %s vanished before start", sessionID)
		return
	}

	resuming := session.Status == models.StatusUploading && session.RemoteSessionURL != ""
	if !resuming && session.Status != models.StatusPending {
		log.Printf("[Coordinator] session %s is %s, refusing to start", sessionID, session.Status)
		return
	}

	ref, ok := c.store.GetFileReference(session.FileReferenceID)
	if !ok {
		c.finishFailed(session, fmt.Errorf("%w: file reference was reclaimed", apperrors.ErrExpired))
		return
	}

	if session.RemoteSessionURL == "" {
		meta := session.Metadata
		if meta.PublishAt != nil && !meta.PublishAt.After(c.now()) {
			// The scheduled publish time arrived while the session waited;
			// publish as soon as the remote finishes processing.
			meta.PublishAt = nil
		}
		sessionURL, err := c.engine.StartRemoteSession(ctx, session.ChannelID, ref, meta)
		if err != nil {
			if c.cancelRequested(sessionID) {
				c.finishCancelled(session)
				return
			}
			if ctx.Err() != nil {
				// Shutdown mid-start; the session stays pending and recovery
				// picks it up on the next run.
				return
			}
			c.finishFailed(session, err)
			return
		}
		session.RemoteSessionURL = sessionURL
	}

	session.Status = models.StatusUploading
	session.TotalBytes = ref.SizeBytes
	session.UpdatedAt = c.now()
	if err := c.store.SaveUploadSession(session); err != nil {
		log.Printf("[Coordinator] failed to save session %s: %v", sessionID, err)
	}
	c.publishSnapshot(session, 0)
	c.events.Publish(services.SubjectUploadStarted, map[string]interface{}{
		"session_id":   session.ID,
		"owner_id":     session.OwnerID,
		"channel_id":   session.ChannelID,
		"reference_id": session.FileReferenceID,
		"total_bytes":  session.TotalBytes,
	})

	src, err := c.files.Open(ctx, ref)
	if err != nil {
		c.finishFailed(session, apperrors.Transientf("failed to open stored file: %v", err))
		return
	}
	defer src.Close()

	onProgress := func(p engine.Progress) {
		c.recordProgress(sessionID, p)
	}

	var result engine.Result
	if resuming {
		result, err = c.engine.Resume(ctx, session.RemoteSessionURL, session.ChannelID, src, ref.SizeBytes, onProgress)
	} else {
		result, err = c.engine.Transfer(ctx, session.RemoteSessionURL, session.ChannelID, src, ref.SizeBytes, onProgress)
	}

	// Re-read to pick up progress persisted during the transfer.
	if latest, ok := c.store.GetUploadSession(sessionID); ok {
		latest.RemoteSessionURL = session.RemoteSessionURL
		session = latest
	}
	session.RetryCount += result.RetryCount

	if err != nil {
		if errors.Is(err, apperrors.ErrCancelled) {
			if c.cancelRequested(sessionID) {
				c.finishCancelled(session)
			} else {
				// Shutdown, not a user cancel. Leave the session uploading so
				// recovery resumes it from the confirmed offset.
				if saveErr := c.store.SaveUploadSession(session); saveErr != nil {
					log.Printf("[Coordinator] failed to save session %s during shutdown: %v", sessionID, saveErr)
				}
				log.Printf("[Coordinator] session %s interrupted at %d/%d bytes, will resume on restart",
					sessionID, session.BytesUploaded, session.TotalBytes)
			}
			return
		}
		c.finishFailed(session, err)
		return
	}

	// All bytes are confirmed; the remote finalizes and issues the video id.
	session.Status = models.StatusProcessing
	session.BytesUploaded = session.TotalBytes
	session.UpdatedAt = c.now()
	if err := c.store.SaveUploadSession(session); err != nil {
		log.Printf("[Coordinator] failed to save session %s: %v", sessionID, err)
	}
	c.publishSnapshot(session, 0)

	// Consume the reference before the terminal save so a completed session
	// is never observed alongside a still-claimable reference.
	if err := c.files.MarkConsumed(session.FileReferenceID); err != nil {
		log.Printf("[Coordinator] failed to mark reference %s consumed: %v", session.FileReferenceID, err)
	}

	completedAt := c.now()
	session.Status = models.StatusCompleted
	session.VideoID = result.VideoID
	session.Error = ""
	session.CompletedAt = &completedAt
	session.UpdatedAt = completedAt
	if err := c.store.SaveUploadSession(session); err != nil {
		log.Printf("[Coordinator] failed to save session %s: %v", sessionID, err)
	}

	c.publishSnapshot(session, 0)
	c.events.Publish(services.SubjectUploadCompleted, map[string]interface{}{
		"session_id": session.ID,
		"owner_id":   session.OwnerID,
		"channel_id": session.ChannelID,
		"video_id":   session.VideoID,
	})
	log.Printf("[Coordinator] session %s completed, video %s", session.ID, session.VideoID)
}

// recoverInterrupted relaunches sessions a previous process left mid-flight.
func (c *Coordinator) recoverInterrupted() {
	sessions, err := c.store.ListUploadSessionsByStatus(models.StatusPending, models.StatusUploading)
	if err != nil {
		log.Printf("[Coordinator] recovery scan failed: %v", err)
		return
	}
	for _, session := range sessions {
		if session.Status == models.StatusUploading && session.RemoteSessionURL == "" {
			// Interrupted before the remote session existed; nothing to
			// resume from, so surface it as a retryable failure.
			c.finishFailed(session, apperrors.Transientf("upload interrupted before the remote session was established"))
			continue
		}
		log.Printf("[Coordinator] recovering session %s (%s, %d/%d bytes)",
			session.ID, session.Status, session.BytesUploaded, session.TotalBytes)
		c.publishSnapshot(session, 0)
		c.launch(session.ID)
	}
}

// schedulerLoop promotes scheduled sessions to pending once their publish
// time arrives.
func (c *Coordinator) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.schedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.promoteDue()
		}
	}
}

func (c *Coordinator) promoteDue() {
	scheduled, err := c.store.ListUploadSessionsByStatus(models.StatusScheduled)
	if err != nil {
		log.Printf("[Scheduler] failed to list scheduled sessions: %v", err)
		return
	}

	now := c.now()
	for _, session := range scheduled {
		due := session.Metadata.PublishAt
		if due != nil && due.After(now) {
			continue
		}
		if !models.CanTransition(session.Status, models.StatusPending) {
			continue
		}
		session.Status = models.StatusPending
		session.UpdatedAt = now
		if err := c.store.SaveUploadSession(session); err != nil {
			log.Printf("[Scheduler] failed to promote session %s: %v", session.ID, err)
			continue
		}
		log.Printf("[Scheduler] session %s is due, starting upload", session.ID)
		c.publishSnapshot(session, 0)
		c.launch(session.ID)
	}
}

func (c *Coordinator) recordProgress(sessionID string, p engine.Progress) {
	now := c.now()

	c.mu.Lock()
	snap := c.snapshots[sessionID]
	snap.ID = sessionID
	snap.Status = models.StatusUploading
	snap.BytesUploaded = p.BytesUploaded
	snap.TotalBytes = p.TotalBytes
	snap.Percent = p.Percent
	snap.SpeedBps = p.SpeedBps
	snap.UpdatedAt = now
	c.snapshots[sessionID] = snap
	c.mu.Unlock()

	c.notify(snap)

	// Persist the confirmed offset so a crash resumes close to where the
	// remote actually is.
	if session, ok := c.store.GetUploadSession(sessionID); ok {
		session.BytesUploaded = p.BytesUploaded
		session.TotalBytes = p.TotalBytes
		session.UpdatedAt = now
		if err := c.store.SaveUploadSession(session); err != nil {
			log.Printf("[Coordinator] failed to persist progress for session %s: %v", sessionID, err)
		}
	}
}

func (c *Coordinator) finishFailed(session models.UploadSession, cause error) {
	if !models.CanTransition(session.Status, models.StatusFailed) {
		log.Printf("[Coordinator] session %s cannot fail from %s: %v", session.ID, session.Status, cause)
		return
	}
	log.Printf("[Coordinator] session %s failed: %v", session.ID, cause)

	session.Status = models.StatusFailed
	session.Error = apperrors.UserMessage(cause)
	session.UpdatedAt = c.now()
	if err := c.store.SaveUploadSession(session); err != nil {
		log.Printf("[Coordinator] failed to save session %s: %v", session.ID, err)
	}
	if err := c.files.Unpin(session.FileReferenceID); err != nil {
		log.Printf("[Coordinator] failed to release reference %s: %v", session.FileReferenceID, err)
	}

	c.publishSnapshot(session, 0)
	c.events.Publish(services.SubjectUploadFailed, map[string]interface{}{
		"session_id": session.ID,
		"owner_id":   session.OwnerID,
		"channel_id": session.ChannelID,
		"error":      session.Error,
	})
}

func (c *Coordinator) finishCancelled(session models.UploadSession) {
	if !models.CanTransition(session.Status, models.StatusCancelled) {
		return
	}
	session.Status = models.StatusCancelled
	session.UpdatedAt = c.now()
	if err := c.store.SaveUploadSession(session); err != nil {
		log.Printf("[Coordinator] failed to save session %s: %v", session.ID, err)
	}
	if err := c.files.Unpin(session.FileReferenceID); err != nil {
		log.Printf("[Coordinator] failed to release reference %s: %v", session.FileReferenceID, err)
	}

	c.publishSnapshot(session, 0)
	c.events.Publish(services.SubjectUploadCancelled, map[string]interface{}{
		"session_id": session.ID,
		"owner_id":   session.OwnerID,
	})
	log.Printf("[Coordinator] session %s cancelled", session.ID)
}

func (c *Coordinator) cancelRequested(sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cancelled[sessionID]
}

// publishSnapshot refreshes the cached view from the session record and fans
// it out to subscribers. speedBps of 0 keeps the previously observed speed.
func (c *Coordinator) publishSnapshot(session models.UploadSession, speedBps float64) {
	snap := snapshotFromSession(session)

	c.mu.Lock()
	if prev, exists := c.snapshots[session.ID]; exists && speedBps == 0 && !session.Status.Terminal() {
		snap.SpeedBps = prev.SpeedBps
	} else {
		snap.SpeedBps = speedBps
	}
	c.snapshots[session.ID] = snap
	c.mu.Unlock()

	c.notify(snap)
}

// notify delivers a snapshot to subscribers without ever blocking: a full
// subscriber channel drops the update.
func (c *Coordinator) notify(snap Snapshot) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.subs[snap.ID] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func snapshotFromSession(session models.UploadSession) Snapshot {
	return Snapshot{
		ID:            session.ID,
		Status:        session.Status,
		BytesUploaded: session.BytesUploaded,
		TotalBytes:    session.TotalBytes,
		Percent:       session.ProgressPercent(),
		VideoID:       session.VideoID,
		Error:         session.Error,
		RetryCount:    session.RetryCount,
		UpdatedAt:     session.UpdatedAt,
	}
}

func validateMetadata(meta *models.VideoMetadata, now time.Time) error {
	if strings.TrimSpace(meta.Title) == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrInvalidMetadata)
	}
	if len(meta.Title) > maxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", apperrors.ErrInvalidMetadata, maxTitleLength)
	}
	if len(meta.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", apperrors.ErrInvalidMetadata, maxDescriptionLength)
	}

	if meta.CategoryID == "" {
		meta.CategoryID = defaultCategoryID
	}
	if meta.PrivacyStatus == "" {
		meta.PrivacyStatus = "private"
	}
	switch meta.PrivacyStatus {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("%w: privacy status %q is not one of public, private, unlisted", apperrors.ErrInvalidMetadata, meta.PrivacyStatus)
	}

	if meta.PublishAt != nil && !meta.PublishAt.After(now) {
		return fmt.Errorf("%w: publish time must be in the future", apperrors.ErrInvalidMetadata)
	}
	return nil
}
