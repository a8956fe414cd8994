package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PresenceResponse lists the users currently online in a tenant.
type PresenceResponse struct {
	TenantID    string   `json:"tenantId"`
	OnlineUsers []string `json:"onlineUsers"`
	Total       int      `json:"total"`
}

// Presence handles the presence snapshot endpoint. The same list the
// presence:update event carries, for clients that want to poll.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if tenantID == "" {
		h.Error(w, http.StatusBadRequest, "tenant ID is required")
		return
	}

	online := h.presence.OnlineUsers(tenantID)
	h.JSON(w, http.StatusOK, PresenceResponse{
		TenantID:    tenantID,
		OnlineUsers: online,
		Total:       len(online),
	})
}
