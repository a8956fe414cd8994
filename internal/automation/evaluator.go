package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/metrics"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/store"
)

// TaskEvent is one task lifecycle occurrence handed to the evaluator.
// Task is the post-mutation snapshot; PreviousStatus is set for
// STATUS_CHANGE events.
type TaskEvent struct {
	Type           string
	TenantID       uuid.UUID
	ActorID        uuid.UUID
	Task           *models.Task
	PreviousStatus models.TaskStatus
}

// ActionHandler executes one action type. Handlers must be safe to call
// concurrently and should honor the context deadline.
type ActionHandler interface {
	Execute(ctx context.Context, action models.Action, evt TaskEvent) error
}

// ActionResult records the outcome of one executed action. Failures are
// captured here rather than aborting the evaluation.
type ActionResult struct {
	RuleID uuid.UUID
	Action models.ActionType
	Err    error
}

// Evaluator matches stored automation rules against task lifecycle events
// and executes their actions. Each call is independent: no state survives
// between evaluations, and the caller invokes it exactly once per event,
// before broadcasting the event itself.
type Evaluator struct {
	rules    store.RuleStore
	handlers map[models.ActionType]ActionHandler
	log      zerolog.Logger
}

// NewEvaluator creates an evaluator with no handlers registered.
func NewEvaluator(rules store.RuleStore, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		rules:    rules,
		handlers: make(map[models.ActionType]ActionHandler),
		log:      log,
	}
}

// Register installs the handler for an action type, replacing any
// previous one.
func (e *Evaluator) Register(t models.ActionType, h ActionHandler) {
	e.handlers[t] = h
}

// Evaluate loads the candidate rules for the event's tenant and list,
// fires the ones whose trigger and conditions match, and executes their
// actions in stored order. Action failures are logged and collected but
// never short-circuit later actions or rules; only a rule-store read
// failure returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, evt TaskEvent) ([]ActionResult, error) {
	if evt.Task == nil {
		return nil, fmt.Errorf("automation: event %q carries no task snapshot", evt.Type)
	}

	rules, err := e.rules.ActiveRules(ctx, evt.TenantID, evt.Task.ListID)
	if err != nil {
		return nil, fmt.Errorf("automation: load rules: %w", err)
	}

	var results []ActionResult
	for _, rule := range rules {
		if !matchTrigger(rule.Trigger, evt) || !matchConditions(rule.Conditions, evt.Task) {
			metrics.RulesEvaluated.WithLabelValues("skipped").Inc()
			continue
		}
		metrics.RulesEvaluated.WithLabelValues("fired").Inc()

		for _, action := range rule.Actions {
			result := ActionResult{RuleID: rule.ID, Action: action.Type}

			handler, ok := e.handlers[action.Type]
			if !ok {
				result.Err = fmt.Errorf("automation: no handler for action %q", action.Type)
			} else {
				result.Err = handler.Execute(ctx, action, evt)
			}

			outcome := "ok"
			if result.Err != nil {
				outcome = "error"
				e.log.Error().
					Err(result.Err).
					Stringer("rule", rule.ID).
					Str("action", string(action.Type)).
					Str("event", evt.Type).
					Msg("automation action failed")
			}
			metrics.RuleActions.WithLabelValues(string(action.Type), outcome).Inc()
			results = append(results, result)
		}
	}
	return results, nil
}

// matchTrigger checks the rule's trigger descriptor against the event.
// From/to constraints are wildcards when empty.
func matchTrigger(t models.TriggerSpec, evt TaskEvent) bool {
	if t.Type != evt.Type {
		return false
	}
	if t.ToStatus != "" && string(evt.Task.Status) != t.ToStatus {
		return false
	}
	if t.FromStatus != "" && string(evt.PreviousStatus) != t.FromStatus {
		return false
	}
	return true
}

// matchConditions checks every declared field equality against the current
// task snapshot. No conditions means unconditional pass.
func matchConditions(conditions []models.Condition, task *models.Task) bool {
	for _, c := range conditions {
		value, ok := task.Field(c.Field)
		if !ok || value != c.Value {
			return false
		}
	}
	return true
}
