package handlers

import (
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
)

// PrepareUpload accepts the raw file as multipart form data and registers it
// as a temporary file reference. The returned reference id is what a later
// upload request points at.
func (h *Handler) PrepareUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	fileType := c.DefaultPostForm("file_type", models.FileTypeVideo)

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
		return
	}
	defer f.Close()

	ref, err := h.Files.Register(c.Request.Context(), userID, fileHeader.Filename, mimeType, fileType, f, fileHeader.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reference": ref})
}

// ListReferences returns the caller's active (unexpired, unconsumed)
// file references.
func (h *Handler) ListReferences(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	refs, err := h.Files.ListActive(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"references": refs,
		"count":      len(refs),
	})
}
