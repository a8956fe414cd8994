package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tandemhq/tandem/internal/models"
)

// RuleRequest is the create/update payload for an automation rule.
type RuleRequest struct {
	Name       string             `json:"name"`
	ListID     *uuid.UUID         `json:"list_id,omitempty"`
	Active     *bool              `json:"active,omitempty"`
	Trigger    models.TriggerSpec `json:"trigger"`
	Conditions []models.Condition `json:"conditions,omitempty"`
	Actions    []models.Action    `json:"actions"`
}

// validTriggerTypes are the event types a rule may subscribe to.
var validTriggerTypes = map[string]bool{
	models.TaskEventCreated:        true,
	models.TaskEventUpdated:        true,
	models.TaskEventStatusChange:   true,
	models.TaskEventAssigneeChange: true,
	models.TaskEventDeleted:        true,
}

// validateRule checks a rule payload. Returns an empty string when valid.
func validateRule(req *RuleRequest) string {
	if req.Name == "" {
		return "name is required"
	}
	if len(req.Name) > 200 {
		return "name too long (max 200 characters)"
	}
	if !validTriggerTypes[req.Trigger.Type] {
		return "unknown trigger type"
	}
	if len(req.Actions) == 0 {
		return "at least one action is required"
	}
	for _, a := range req.Actions {
		if !models.ValidActionType(a.Type) {
			return "unknown action type: " + string(a.Type)
		}
	}
	for _, c := range req.Conditions {
		if c.Field == "" {
			return "condition field is required"
		}
	}
	return ""
}

// CreateRule handles creating an automation rule for a tenant.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid tenant ID")
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := validateRule(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule := &models.AutomationRule{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ListID:     req.ListID,
		Name:       req.Name,
		Active:     active,
		Trigger:    req.Trigger,
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}

	if err := h.db.CreateRule(r.Context(), rule); err != nil {
		h.log.Error().Err(err).Str("tenant", tenantID.String()).Msg("create rule failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusCreated, rule)
}

// ListRules handles listing a tenant's automation rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid tenant ID")
		return
	}

	rules, err := h.db.ListRules(r.Context(), tenantID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if rules == nil {
		rules = []models.AutomationRule{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"total": len(rules),
	})
}

// GetRule handles fetching a single automation rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ruleForRequest(w, r)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, rule)
}

// UpdateRule handles replacing an automation rule's definition.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ruleForRequest(w, r)
	if !ok {
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := validateRule(&req); msg != "" {
		h.Error(w, http.StatusBadRequest, msg)
		return
	}

	rule.Name = req.Name
	rule.ListID = req.ListID
	rule.Trigger = req.Trigger
	rule.Conditions = req.Conditions
	rule.Actions = req.Actions
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := h.db.UpdateRule(r.Context(), rule); err != nil {
		h.log.Error().Err(err).Str("rule", rule.ID.String()).Msg("update rule failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	h.JSON(w, http.StatusOK, rule)
}

// DeleteRule handles deleting an automation rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ruleForRequest(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteRule(r.Context(), rule.ID); err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ruleForRequest loads the rule named by the URL and verifies it belongs
// to the tenant named by the URL. Writes the error response itself when
// the lookup fails.
func (h *Handler) ruleForRequest(w http.ResponseWriter, r *http.Request) (*models.AutomationRule, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid tenant ID")
		return nil, false
	}
	ruleID, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid rule ID")
		return nil, false
	}

	rule, err := h.db.GetRule(r.Context(), ruleID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if rule == nil || rule.TenantID != tenantID {
		h.Error(w, http.StatusNotFound, "rule not found")
		return nil, false
	}
	return rule, true
}
