package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// HistoryResponse carries cached room events, newest first.
type HistoryResponse struct {
	Room   string            `json:"room"`
	Events []json.RawMessage `json:"events"`
	Total  int               `json:"total"`
}

// History handles the reconnect catch-up endpoint. Returns recent cached
// envelopes for a room; ?before=<unix ms> pages backward, ?limit=N caps
// the page size. The cache expires, so an empty list is normal.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if room == "" {
		h.Error(w, http.StatusBadRequest, "room is required")
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	var before int64
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		b, err := strconv.ParseInt(beforeStr, 10, 64)
		if err != nil || b < 0 {
			h.Error(w, http.StatusBadRequest, "before must be a Unix millisecond timestamp")
			return
		}
		before = b
	}

	events, err := h.redis.RoomEvents(r.Context(), room, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("history lookup failed")
		h.Error(w, http.StatusInternalServerError, "cache error")
		return
	}
	if events == nil {
		events = []json.RawMessage{}
	}

	h.JSON(w, http.StatusOK, HistoryResponse{
		Room:   room,
		Events: events,
		Total:  len(events),
	})
}
