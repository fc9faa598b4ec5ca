package storage

import (
	"time"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

// Store is the contract every persistence backend implements. The pipeline
// keeps three kinds of records: file references, channel credentials and
// upload sessions.
type Store interface {
	SaveFileReference(ref models.FileReference) error
	GetFileReference(id string) (models.FileReference, bool)
	ListFileReferencesByOwner(ownerID string) ([]models.FileReference, error)
	// ListExpiredFileReferences returns references past their TTL that are
	// not pinned by a live session.
	ListExpiredFileReferences(now time.Time) ([]models.FileReference, error)
	DeleteFileReference(id string) bool

	SaveCredential(cred models.ChannelCredential) error
	GetCredential(channelID string) (models.ChannelCredential, bool)
	DeleteCredential(channelID string) bool

	SaveUploadSession(session models.UploadSession) error
	GetUploadSession(id string) (models.UploadSession, bool)
	// ListUploadSessionsByOwner filters by status when status is non-empty.
	ListUploadSessionsByOwner(ownerID string, status models.UploadStatus) ([]models.UploadSession, error)
	ListUploadSessionsByStatus(statuses ...models.UploadStatus) ([]models.UploadSession, error)
	// LiveSessionForReference returns the non-terminal session holding the
	// given file reference, if any. At most one may exist at a time.
	LiveSessionForReference(referenceID string) (models.UploadSession, bool)
}
