package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/api/middleware"
	"github.com/tandemhq/tandem/internal/models"
)

// ListNotifications handles listing the authenticated user's inbox.
// Supports ?unread=true, ?limit=N and ?before=<RFC3339> for paging.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUserID(w, r)
	if !ok {
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	var before time.Time
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		t, err := time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "before must be RFC 3339")
			return
		}
		before = t
	}

	notifications, err := h.db.ListNotifications(r.Context(), userID, unreadOnly, limit, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// MarkNotificationRead handles marking one notification as read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID")
		return
	}

	if err := h.db.MarkNotificationRead(r.Context(), id, userID); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAllNotificationsRead handles marking the whole inbox as read.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUserID(w, r)
	if !ok {
		return
	}

	if err := h.db.MarkAllNotificationsRead(r.Context(), userID); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ClearNotification handles removing a notification from the inbox view.
func (h *Handler) ClearNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requestUserID(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid notification ID")
		return
	}

	if err := h.db.ClearNotification(r.Context(), id, userID); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requestUserID resolves the authenticated user's ID. Writes the error
// response itself on failure.
func (h *Handler) requestUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(identity.UserID)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid user ID in token")
		return uuid.Nil, false
	}
	return userID, true
}
