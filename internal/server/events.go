package server

import (
	"net/http"

	"github.com/CampusPulseLab/pulse/backend/internal/feed"
	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createEventPayload struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"`
	Time        string `json:"time"`
	Venue       string `json:"venue"`
	Capacity    int    `json:"capacity"`
	Category    string `json:"category"`
	ImageURL    string `json:"imageUrl"`
	Organizer   string `json:"organizer"`
}

func (h *httpHandler) handleListEvents(c *gin.Context) {
	events, err := h.store.Events(c.Request.Context())
	if err != nil {
		h.logger.Error("event list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *httpHandler) handleGetEvent(c *gin.Context) {
	event, err := h.store.EventByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("event lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *httpHandler) handleCreateEvent(c *gin.Context) {
	var payload createEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	event, err := h.store.SaveEvent(c.Request.Context(), store.Event{
		Title:       payload.Title,
		Description: payload.Description,
		Date:        payload.Date,
		Time:        payload.Time,
		Venue:       payload.Venue,
		Capacity:    payload.Capacity,
		Category:    payload.Category,
		ImageURL:    payload.ImageURL,
		Organizer:   payload.Organizer,
		CreatorID:   h.currentUserID(c),
	})
	if err != nil {
		h.logger.Error("event create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *httpHandler) handlePatchEvent(c *gin.Context) {
	var patch store.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	event, err := h.store.PatchEvent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.logger.Error("event patch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *httpHandler) handleDeleteEvent(c *gin.Context) {
	deleted, err := h.store.DeleteEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("event delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "event_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRegister runs the check-then-insert the store leaves to callers:
// duplicate signups and full events are rejected before the append.
func (h *httpHandler) handleRegister(c *gin.Context) {
	ctx := c.Request.Context()
	userID := h.currentUserID(c)
	eventID := c.Param("id")

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

	existing, err := h.store.RegistrationFor(ctx, eventID, userID)
	if err != nil {
		h.logger.Error("registration lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if existing != nil && existing.Status != store.StatusCancelled {
		c.JSON(http.StatusConflict, gin.H{"error": "already_registered"})
		return
	}

	if event.Capacity > 0 {
		registrations, err := h.store.RegistrationsForEvent(ctx, eventID)
		if err != nil {
			h.logger.Error("registration count failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
			return
		}
		active := 0
		for _, registration := range registrations {
			if registration.Status != store.StatusCancelled {
				active++
			}
		}
		if active >= event.Capacity {
			c.JSON(http.StatusConflict, gin.H{"error": "event_full"})
			return
		}
	}

	registration := store.Registration{
		EventID: eventID,
		UserID:  userID,
		Status:  store.StatusRegistered,
	}
	if existing != nil {
		registration.ID = existing.ID
	}
	saved, err := h.store.SaveRegistration(ctx, registration)
	if err != nil {
		h.logger.Error("registration save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}

	if event.CreatorID != "" && event.CreatorID != userID {
		h.feed.Publish(feed.Message{
			UserID:    event.CreatorID,
			Activity:  feed.ActivityRegistration,
			ActorID:   userID,
			EventID:   eventID,
			SubjectID: saved.ID,
			Timestamp: h.clock().UTC(),
		})
	}

	c.JSON(http.StatusCreated, saved)
}

type patchRegistrationPayload struct {
	Status string `json:"status" binding:"required"`
}

func (h *httpHandler) handlePatchRegistration(c *gin.Context) {
	ctx := c.Request.Context()
	var payload patchRegistrationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	status, err := store.ParseRegistrationStatus(payload.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}

	registration, err := h.store.RegistrationByID(ctx, c.Param("id"))
	if err != nil {
		h.logger.Error("registration lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if registration == nil || registration.UserID != h.currentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "registration_not_found"})
		return
	}

	updated, err := h.store.PatchRegistration(ctx, registration.ID, store.RegistrationPatch{Status: &status})
	if err != nil {
		h.logger.Error("registration patch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *httpHandler) handleMyRegistrations(c *gin.Context) {
	registrations, err := h.store.RegistrationsForUser(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("registration list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_failed"})
		return
	}
	if registrations == nil {
		registrations = []store.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": registrations})
}
