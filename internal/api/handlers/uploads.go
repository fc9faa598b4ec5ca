package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

type startUploadRequest struct {
	ReferenceID string               `json:"reference_id" binding:"required"`
	ChannelID   string               `json:"channel_id" binding:"required"`
	Metadata    models.VideoMetadata `json:"metadata"`
}

// StartUpload creates an upload session for a previously prepared file
// reference. The transfer runs in the background; the response carries the
// session id to poll.
func (h *Handler) StartUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req startUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	session, err := h.Sessions.Create(userID, req.ReferenceID, req.ChannelID, req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session": session})
}

// UploadStatus returns the cached progress snapshot for one session. Reads
// local state only, so clients may poll freely.
func (h *Handler) UploadStatus(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	snap, err := h.Sessions.Status(c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": snap})
}

// ListUploads returns the caller's sessions, optionally filtered with
// ?status=completed etc.
func (h *Handler) ListUploads(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	status := models.UploadStatus(c.Query("status"))
	sessions, err := h.Sessions.List(userID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": sessions,
		"count":   len(sessions),
	})
}

// CancelUpload stops a pending or uploading session at the next chunk
// boundary.
func (h *Handler) CancelUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if err := h.Sessions.Cancel(c.Param("id"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// RetryUpload re-queues a failed session with a fresh remote session.
func (h *Handler) RetryUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	session, err := h.Sessions.Retry(c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session": session})
}

// StreamUploadEvents pushes progress snapshots over server-sent events until
// the session reaches a terminal state or the client goes away.
func (h *Handler) StreamUploadEvents(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	sessionID := c.Param("id")
	updates, unsubscribe, err := h.Sessions.Subscribe(sessionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Current state first so the client never starts blind.
	if snap, statusErr := h.Sessions.Status(sessionID, userID); statusErr == nil {
		c.SSEvent("progress", snap)
		c.Writer.Flush()
		if snap.Status.Terminal() {
			return
		}
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case snap, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("progress", snap)
			return !snap.Status.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}
