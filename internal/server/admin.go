package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleCatalogRefresh mirrors the canonical remote catalog into the local
// store, preserving the remote record ids.
func (h *httpHandler) handleCatalogRefresh(c *gin.Context) {
	if h.remote == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remote_disabled"})
		return
	}

	ctx := c.Request.Context()
	token, err := h.store.SessionToken(ctx)
	if err != nil {
		h.logger.Error("session token read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	events, err := h.remote.FetchEvents(ctx, token)
	if err != nil {
		h.logger.Warn("remote catalog pull failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_unavailable"})
		return
	}

	imported := 0
	for _, event := range events {
		if event.ID == "" {
			continue
		}
		if _, err := h.store.ImportEvent(ctx, event); err != nil {
			h.logger.Error("catalog import failed", zap.Error(err), zap.String("event_id", event.ID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
			return
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

func (h *httpHandler) handleResetData(c *gin.Context) {
	if err := h.store.ClearAllData(c.Request.Context()); err != nil {
		h.logger.Error("data reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleResetPushTokens(c *gin.Context) {
	if err := h.store.ClearAllPushTokens(c.Request.Context()); err != nil {
		h.logger.Error("push token reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleResetEverything(c *gin.Context) {
	if err := h.store.ClearEverything(c.Request.Context()); err != nil {
		h.logger.Error("full reset failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
