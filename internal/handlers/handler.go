package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/automation"
	"github.com/tandemhq/tandem/internal/notify"
	"github.com/tandemhq/tandem/internal/realtime"
	"github.com/tandemhq/tandem/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db         store.DataStore
	redis      *store.RedisStore
	presence   *realtime.PresenceRegistry
	events     *realtime.Broadcaster
	evaluator  *automation.Evaluator
	dispatcher *notify.Dispatcher
	log        zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(db store.DataStore, redis *store.RedisStore, presence *realtime.PresenceRegistry, events *realtime.Broadcaster, evaluator *automation.Evaluator, dispatcher *notify.Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{
		db:         db,
		redis:      redis,
		presence:   presence,
		events:     events,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		log:        log,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
