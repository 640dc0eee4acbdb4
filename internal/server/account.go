package server

import (
	"net/http"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	profile, err := h.store.ProfileByUserID(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type putProfilePayload struct {
	Bio         string            `json:"bio"`
	Major       string            `json:"major"`
	Year        string            `json:"year"`
	Interests   []string          `json:"interests"`
	SocialLinks map[string]string `json:"socialLinks"`
}

func (h *httpHandler) handlePutProfile(c *gin.Context) {
	var payload putProfilePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	profile, err := h.store.SaveProfile(c.Request.Context(), store.UserProfile{
		UserID:      h.currentUserID(c),
		Bio:         payload.Bio,
		Major:       payload.Major,
		Year:        payload.Year,
		Interests:   payload.Interests,
		SocialLinks: payload.SocialLinks,
	})
	if err != nil {
		h.logger.Error("profile save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *httpHandler) handleRecommendations(c *gin.Context) {
	events, err := h.recommender.Recommend(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("recommendation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recommendation_failed"})
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type putPushTokenPayload struct {
	PushToken  string `json:"pushToken" binding:"required"`
	DeviceType string `json:"deviceType"`
}

func (h *httpHandler) handlePutPushToken(c *gin.Context) {
	var payload putPushTokenPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	token, err := h.store.SetPushToken(c.Request.Context(), store.PushToken{
		UserID:     h.currentUserID(c),
		PushToken:  payload.PushToken,
		DeviceType: payload.DeviceType,
	})
	if err != nil {
		h.logger.Error("push token save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, token)
}
