package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/CampusPulseLab/pulse/backend/internal/auth"
	"github.com/CampusPulseLab/pulse/backend/internal/remote"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/CampusPulseLab/pulse/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sessionRequestPayload struct {
	AccessToken string `json:"access_token"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
}

// handleCreateSession exchanges a remote access token for a Pulse session
// token and mirrors the signed-in user into the local auth cache.
func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.AccessToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if h.remote == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remote_disabled"})
		return
	}

	remoteUser, err := h.remote.FetchUser(c.Request.Context(), request.AccessToken)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Warn("remote user lookup failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_unavailable"})
		return
	}

	userID, err := h.identities.ResolveCanonicalUserID(users.Login{
		Subject:   remoteUser.ID,
		Email:     remoteUser.Email,
		FullName:  remoteUser.FullName,
		AvatarURL: remoteUser.AvatarURL,
	})
	if err != nil {
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), auth.SessionProfile{
		UserID:   userID,
		Email:    remoteUser.Email,
		FullName: remoteUser.FullName,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	if err := h.store.SetCurrentUser(c.Request.Context(), store.AuthRecord{
		ID:        userID,
		Email:     remoteUser.Email,
		FullName:  remoteUser.FullName,
		AvatarURL: remoteUser.AvatarURL,
	}); err != nil {
		h.logger.Warn("auth record cache write failed", zap.Error(err))
	}
	if err := h.store.SetSessionToken(c.Request.Context(), token); err != nil {
		h.logger.Warn("session token cache write failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		UserID:      userID,
	})
}
