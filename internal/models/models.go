package models

import (
	"time"
)

// FileType values accepted by the prepare-upload endpoint.
const (
	FileTypeVideo     = "video"
	FileTypeThumbnail = "thumbnail"
)

// Scan status values for a file reference.
const (
	ScanPending  = "pending"
	ScanClean    = "clean"
	ScanInfected = "infected"
)

// FileReference is a temporarily held upload payload. The bytes live in
// object storage under ObjectName; this row carries the integrity metadata.
type FileReference struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	FileName   string    `json:"file_name"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	FileType   string    `json:"file_type"`
	Checksum   string    `json:"checksum"`
	ObjectName string    `json:"object_name"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	// IsTemporary is true until an upload session consumes the reference.
	IsTemporary bool `json:"is_temporary"`
	// Pinned blocks the reaper while a live session is reading the bytes.
	Pinned     bool   `json:"pinned"`
	ScanStatus string `json:"scan_status"`
}

// Expired reports whether the reference is past its TTL. A pinned reference
// never counts as expired: a live session is consuming it.
func (r *FileReference) Expired(now time.Time) bool {
	if r.Pinned {
		return false
	}
	return now.After(r.ExpiresAt)
}

// ChannelCredential is one linked external channel's OAuth token pair.
// Owned by the token manager; only refresh operations mutate the tokens.
type ChannelCredential struct {
	ChannelID            string    `json:"channel_id"`
	OwnerID              string    `json:"owner_id"`
	ChannelTitle         string    `json:"channel_title"`
	Scopes               []string  `json:"scopes"`
	AccessToken          string    `json:"-"`
	RefreshToken         string    `json:"-"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	// NeedsReauth is set when the refresh token itself is rejected; the only
	// way out is a fresh authorization flow.
	NeedsReauth bool      `json:"needs_reauth"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// VideoMetadata is the caller-supplied description of the video to publish.
// PublishAt must already be an absolute timestamp; natural-language schedule
// parsing happens upstream.
type VideoMetadata struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Tags              []string   `json:"tags"`
	CategoryID        string     `json:"category_id"`
	PrivacyStatus     string     `json:"privacy_status"`
	MadeForKids       bool       `json:"made_for_kids"`
	NotifySubscribers bool       `json:"notify_subscribers"`
	PublishAt         *time.Time `json:"publish_at,omitempty"`
}

// UploadStatus is the session state machine's state.
type UploadStatus string

const (
	StatusPending    UploadStatus = "pending"
	StatusScheduled  UploadStatus = "scheduled"
	StatusUploading  UploadStatus = "uploading"
	StatusProcessing UploadStatus = "processing"
	StatusCompleted  UploadStatus = "completed"
	StatusFailed     UploadStatus = "failed"
	StatusCancelled  UploadStatus = "cancelled"
)

// Terminal reports whether no further automatic transition can occur.
func (s UploadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Live reports whether the session still holds its file reference.
func (s UploadStatus) Live() bool {
	return !s.Terminal()
}

// validTransitions is the session state machine. Keys are current states,
// values the states reachable from them.
var validTransitions = map[UploadStatus][]UploadStatus{
	StatusPending:    {StatusUploading, StatusScheduled, StatusCancelled, StatusFailed},
	StatusScheduled:  {StatusPending},
	StatusUploading:  {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending}, // explicit retry only
}

// CanTransition reports whether from -> to is a legal state machine move.
func CanTransition(from, to UploadStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UploadSession is the user-visible unit of work tying a file reference,
// a channel credential and one remote resumable transfer together.
type UploadSession struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	FileReferenceID string        `json:"file_reference_id"`
	ChannelID       string        `json:"channel_id"`
	Metadata        VideoMetadata `json:"metadata"`
	Status          UploadStatus  `json:"status"`
	BytesUploaded   int64         `json:"bytes_uploaded"`
	TotalBytes      int64         `json:"total_bytes"`
	// RemoteSessionURL is the resumable session handle issued by the remote
	// API. Set at most once; losing it forces a fresh session.
	RemoteSessionURL string     `json:"-"`
	VideoID          string     `json:"video_id,omitempty"`
	Error            string     `json:"error,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ProgressPercent derives the 0-100 progress figure clients poll for.
func (s *UploadSession) ProgressPercent() float64 {
	if s.TotalBytes == 0 {
		return 0
	}
	return float64(s.BytesUploaded) / float64(s.TotalBytes) * 100
}
