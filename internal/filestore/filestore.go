package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/services"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
)

// ObjectStore is the byte-storage backend for file references.
// *services.MinioService implements it; tests use an in-memory fake.
type ObjectStore interface {
	PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, objectName string) (io.ReadSeekCloser, error)
	RemoveObject(ctx context.Context, objectName string) error
}

// Scanner checks freshly registered files for malware.
type Scanner interface {
	ScanReference(ctx context.Context, ref models.FileReference)
}

// FileStore registers, resolves and reaps temporarily held upload payloads.
type FileStore struct {
	store   storage.Store
	objects ObjectStore
	events  *services.EventPublisher
	scanner Scanner
	maxSize int64
	ttl     time.Duration
	now     func() time.Time
}

func New(store storage.Store, objects ObjectStore, events *services.EventPublisher, scanner Scanner, maxSize int64, ttl time.Duration) *FileStore {
	return &FileStore{
		store:   store,
		objects: objects,
		events:  events,
		scanner: scanner,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Register streams the payload into object storage, hashing as the bytes
// pass through so memory stays bounded regardless of file size.
func (fs *FileStore) Register(ctx context.Context, ownerID, fileName, mimeType, fileType string, r io.Reader, size int64) (models.FileReference, error) {
	switch fileType {
	case models.FileTypeVideo:
		if !strings.HasPrefix(mimeType, "video/") {
			return models.FileReference{}, fmt.Errorf("%w: expected a video, got %q", apperrors.ErrUnsupportedType, mimeType)
		}
	case models.FileTypeThumbnail:
		if !strings.HasPrefix(mimeType, "image/") {
			return models.FileReference{}, fmt.Errorf("%w: expected an image, got %q", apperrors.ErrUnsupportedType, mimeType)
		}
	default:
		return models.FileReference{}, fmt.Errorf("%w: unknown file type %q", apperrors.ErrUnsupportedType, fileType)
	}

	if size > fs.maxSize {
		return models.FileReference{}, fmt.Errorf("%w: %d bytes (max %d)", apperrors.ErrSizeLimitExceeded, size, fs.maxSize)
	}

	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(fileName))
	objectName := "refs/" + id + ext

	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)

	if err := fs.objects.PutObject(ctx, objectName, tee, size, mimeType); err != nil {
		return models.FileReference{}, fmt.Errorf("failed to store file bytes: %w", err)
	}

	now := fs.now()
	ref := models.FileReference{
		ID:          id,
		OwnerID:     ownerID,
		FileName:    fileName,
		SizeBytes:   size,
		MimeType:    mimeType,
		FileType:    fileType,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		ObjectName:  objectName,
		CreatedAt:   now,
		ExpiresAt:   now.Add(fs.ttl),
		IsTemporary: true,
		ScanStatus:  models.ScanPending,
	}
	if fs.scanner == nil {
		ref.ScanStatus = models.ScanClean
	}

	if err := fs.store.SaveFileReference(ref); err != nil {
		if delErr := fs.objects.RemoveObject(ctx, objectName); delErr != nil {
			log.Printf("warning: failed to clean up object after metadata save failure: %v", delErr)
		}
		return models.FileReference{}, fmt.Errorf("failed to save file reference: %w", err)
	}

	if fs.scanner != nil {
		go fs.scanner.ScanReference(context.Background(), ref)
	}

	fs.events.Publish(services.SubjectUploadPrepared, map[string]interface{}{
		"reference_id": ref.ID,
		"owner_id":     ref.OwnerID,
		"file_name":    ref.FileName,
		"size_bytes":   ref.SizeBytes,
		"expires_at":   ref.ExpiresAt.UTC().Format(time.RFC3339),
	})

	return ref, nil
}

// Resolve returns the reference if the caller owns it and it is still
// usable. Ownership is checked before expiry so strangers learn nothing.
func (fs *FileStore) Resolve(id, ownerID string) (models.FileReference, error) {
	ref, ok := fs.store.GetFileReference(id)
	if !ok {
		return models.FileReference{}, apperrors.ErrNotFound
	}
	if ref.OwnerID != ownerID {
		return models.FileReference{}, apperrors.ErrForbidden
	}
	if ref.Expired(fs.now()) {
		return models.FileReference{}, apperrors.ErrExpired
	}
	if ref.ScanStatus == models.ScanInfected {
		return models.FileReference{}, fmt.Errorf("%w: file failed virus scan", apperrors.ErrUnsupportedType)
	}
	return ref, nil
}

// ListActive returns the caller's unexpired, unconsumed references.
func (fs *FileStore) ListActive(ownerID string) ([]models.FileReference, error) {
	refs, err := fs.store.ListFileReferencesByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	now := fs.now()
	active := refs[:0]
	for _, ref := range refs {
		if ref.IsTemporary && !ref.Expired(now) {
			active = append(active, ref)
		}
	}
	return active, nil
}

// Open returns a seekable reader over the reference's bytes.
func (fs *FileStore) Open(ctx context.Context, ref models.FileReference) (io.ReadSeekCloser, error) {
	return fs.objects.GetObject(ctx, ref.ObjectName)
}

// Pin blocks the reaper while a live session consumes the reference, so it
// cannot expire mid-transfer.
func (fs *FileStore) Pin(id string) error {
	ref, ok := fs.store.GetFileReference(id)
	if !ok {
		return apperrors.ErrNotFound
	}
	ref.Pinned = true
	return fs.store.SaveFileReference(ref)
}

// Unpin restores normal expiry after a session stops consuming the
// reference without finishing (failure, cancellation).
func (fs *FileStore) Unpin(id string) error {
	ref, ok := fs.store.GetFileReference(id)
	if !ok {
		return apperrors.ErrNotFound
	}
	ref.Pinned = false
	return fs.store.SaveFileReference(ref)
}

// MarkConsumed flags the reference as used up so the reaper reclaims it on
// the next sweep. Idempotent.
func (fs *FileStore) MarkConsumed(id string) error {
	ref, ok := fs.store.GetFileReference(id)
	if !ok {
		return apperrors.ErrNotFound
	}
	if !ref.IsTemporary && !ref.Pinned {
		return nil
	}
	ref.IsTemporary = false
	ref.Pinned = false
	ref.ExpiresAt = fs.now()
	return fs.store.SaveFileReference(ref)
}

// StartReaper sweeps expired references until ctx is cancelled.
func (fs *FileStore) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fs.Sweep(ctx)
			}
		}
	}()
}

// Sweep deletes expired references and their backing bytes. Deletion
// failures are logged and skipped, never fatal to the sweep.
func (fs *FileStore) Sweep(ctx context.Context) {
	expired, err := fs.store.ListExpiredFileReferences(fs.now())
	if err != nil {
		log.Printf("[Reaper] failed to list expired references: %v", err)
		return
	}

	for _, ref := range expired {
		if err := fs.objects.RemoveObject(ctx, ref.ObjectName); err != nil {
			log.Printf("[Reaper] failed to delete object %s: %v", ref.ObjectName, err)
			continue
		}
		fs.store.DeleteFileReference(ref.ID)
	}

	if len(expired) > 0 {
		log.Printf("[Reaper] reclaimed %d expired references", len(expired))
	}
}
