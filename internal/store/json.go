package store

import (
	"encoding/json"
	"fmt"

	"github.com/tandemhq/tandem/internal/models"
)

// Rule descriptors and notification metadata are stored as JSON columns.
// These helpers keep the Postgres and SQLite implementations in sync.

func encodeRuleFields(r *models.AutomationRule) (trigger, conditions, actions []byte, err error) {
	if trigger, err = json.Marshal(r.Trigger); err != nil {
		return nil, nil, nil, fmt.Errorf("encode trigger: %w", err)
	}
	if conditions, err = json.Marshal(r.Conditions); err != nil {
		return nil, nil, nil, fmt.Errorf("encode conditions: %w", err)
	}
	if actions, err = json.Marshal(r.Actions); err != nil {
		return nil, nil, nil, fmt.Errorf("encode actions: %w", err)
	}
	return trigger, conditions, actions, nil
}

func decodeRuleFields(r *models.AutomationRule, trigger, conditions, actions []byte) error {
	if err := json.Unmarshal(trigger, &r.Trigger); err != nil {
		return fmt.Errorf("decode trigger: %w", err)
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return fmt.Errorf("decode conditions: %w", err)
		}
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return fmt.Errorf("decode actions: %w", err)
	}
	return nil
}

func encodeMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decodeMetadata(b []byte) (map[string]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
