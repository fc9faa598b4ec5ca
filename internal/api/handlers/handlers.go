package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/coordinator"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/filestore"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/oauth"
)

// Handler bundles the services the REST endpoints delegate to.
type Handler struct {
	Files    *filestore.FileStore
	Sessions *coordinator.Coordinator
	Auth     *oauth.Manager
}

func New(files *filestore.FileStore, sessions *coordinator.Coordinator, auth *oauth.Manager) *Handler {
	return &Handler{Files: files, Sessions: sessions, Auth: auth}
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}

// respondError translates pipeline errors into HTTP responses. Raw transport
// and provider errors never reach the client; only the mapped message does.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": apperrors.UserMessage(err)})
}
