package server

import (
	"net/http"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/feed"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const feedHeartbeatInterval = 15 * time.Second

func (h *httpHandler) handleListComments(c *gin.Context) {
	threads, err := h.store.CommentThreadsForEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("comment list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

type createCommentPayload struct {
	Content  string `json:"content" binding:"required"`
	ParentID string `json:"parentId"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	userID := h.currentUserID(c)
	eventID := c.Param("id")

	var payload createCommentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	event, err := h.store.EventByID(ctx, eventID)
	if err != nil {
		h.logger.Error("event lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
		return
	}

	var parent *store.Comment
	if payload.ParentID != "" {
		parent, err = h.store.CommentByID(ctx, payload.ParentID)
		if err != nil {
			h.logger.Error("parent comment lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
			return
		}
		// Threads are one level deep: replying to a reply is rejected.
		if parent == nil || parent.EventID != eventID || parent.IsReply() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_parent"})
			return
		}
	}

	comment, err := h.store.SaveComment(ctx, store.Comment{
		EventID:  eventID,
		UserID:   userID,
		Content:  payload.Content,
		ParentID: payload.ParentID,
	})
	if err != nil {
		h.logger.Error("comment save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	target := event.CreatorID
	if parent != nil {
		target = parent.UserID
	}
	if target != "" && target != userID {
		h.feed.Publish(feed.Message{
			UserID:    target,
			Activity:  feed.ActivityComment,
			ActorID:   userID,
			EventID:   eventID,
			SubjectID: comment.ID,
			Timestamp: h.clock().UTC(),
		})
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	comment, err := h.store.CommentByID(ctx, c.Param("id"))
	if err != nil {
		h.logger.Error("comment lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if comment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
		return
	}
	if comment.UserID != h.currentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_comment_author"})
		return
	}

	deleted, err := h.store.DeleteComment(ctx, comment.ID)
	if err != nil {
		h.logger.Error("comment delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleLikeComment(c *gin.Context) {
	ctx := c.Request.Context()
	userID := h.currentUserID(c)
	commentID := c.Param("id")

	comment, err := h.store.CommentByID(ctx, commentID)
	if err != nil {
		h.logger.Error("comment lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if comment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
		return
	}

	existing, err := h.store.LikeFor(ctx, commentID, userID)
	if err != nil {
		h.logger.Error("like lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already_liked"})
		return
	}

	like, err := h.store.SaveCommentLike(ctx, store.CommentLike{
		CommentID: commentID,
		UserID:    userID,
	})
	if err != nil {
		h.logger.Error("like save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	if comment.UserID != "" && comment.UserID != userID {
		h.feed.Publish(feed.Message{
			UserID:    comment.UserID,
			Activity:  feed.ActivityLike,
			ActorID:   userID,
			EventID:   comment.EventID,
			SubjectID: commentID,
			Timestamp: h.clock().UTC(),
		})
	}

	c.JSON(http.StatusCreated, like)
}

func (h *httpHandler) handleUnlikeComment(c *gin.Context) {
	ctx := c.Request.Context()
	like, err := h.store.LikeFor(ctx, c.Param("id"), h.currentUserID(c))
	if err != nil {
		h.logger.Error("like lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if like == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "like_not_found"})
		return
	}
	if _, err := h.store.DeleteCommentLike(ctx, like.ID); err != nil {
		h.logger.Error("like delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleFeedStream serves the user's activity feed over server-sent events.
func (h *httpHandler) handleFeedStream(c *gin.Context) {
	userID := h.currentUserID(c)
	stream, cleanup := h.feed.Subscribe(c.Request.Context(), userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTicker(feedHeartbeatInterval)
	defer heartbeat.Stop()

	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent(message.Activity, message)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent("heartbeat", feed.Heartbeat(h.clock().UTC()))
			c.Writer.Flush()
		}
	}
}
