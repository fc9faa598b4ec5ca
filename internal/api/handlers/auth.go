package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/apperrors"
)

type channelRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

// InitiateAuth starts the authorization flow for a channel and returns the
// consent URL the user must visit.
func (h *Handler) InitiateAuth(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	authURL, state := h.Auth.BeginAuth(userID, req.ChannelID)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
	})
}

// AuthCallback is the OAuth redirect target. It is unauthenticated: the
// state token carries the identity of whoever initiated the flow.
func (h *Handler) AuthCallback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization was denied: " + denied})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code parameter"})
		return
	}

	cred, err := h.Auth.CompleteAuth(c.Request.Context(), state, code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": cred})
}

// RefreshToken forces a token refresh for a channel the caller owns.
func (h *Handler) RefreshToken(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req channelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	cred, found := h.Auth.Credential(req.ChannelID)
	if !found {
		respondError(c, apperrors.ErrNoSuchAccount)
		return
	}
	if cred.OwnerID != userID {
		respondError(c, apperrors.ErrForbidden)
		return
	}

	if _, err := h.Auth.ForceRefresh(c.Request.Context(), req.ChannelID); err != nil {
		respondError(c, err)
		return
	}

	cred, _ = h.Auth.Credential(req.ChannelID)
	c.JSON(http.StatusOK, gin.H{"channel": cred})
}

// Disconnect revokes a channel's credential and removes it. In-flight
// uploads against the channel fail with an auth error rather than crashing.
func (h *Handler) Disconnect(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	channelID := c.Param("channel_id")
	cred, found := h.Auth.Credential(channelID)
	if !found {
		respondError(c, apperrors.ErrNoSuchAccount)
		return
	}
	if cred.OwnerID != userID {
		respondError(c, apperrors.ErrForbidden)
		return
	}

	if err := h.Auth.Disconnect(c.Request.Context(), channelID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}
