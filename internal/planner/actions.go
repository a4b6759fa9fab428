package planner

import (
	"encoding/json"
	"fmt"
)

// ActionType is one atomic UI operation kind.
type ActionType string

const (
	ActionFill    ActionType = "fill"
	ActionClick   ActionType = "click"
	ActionUpload  ActionType = "upload"
	ActionAskUser ActionType = "ask_user"
)

// Action is one planned UI operation. Produced by the planner, consumed
// once, never persisted.
type Action struct {
	Selector string     `json:"selector"`
	Value    string     `json:"value,omitempty"`
	Type     ActionType `json:"type"`
}

// MissingField is one unfilled field reported by the validation pass.
type MissingField struct {
	Label    string `json:"label"`
	Selector string `json:"selector"`
	Type     string `json:"type"` // "file" or "text"
}

// rawAction tolerates the alternate key names the model sometimes emits.
type rawAction struct {
	Selector       string     `json:"selector"`
	TargetSelector string     `json:"target_selector"`
	Value          string     `json:"value"`
	QuestionLabel  string     `json:"question_label"`
	Type           ActionType `json:"type"`
}

func (r rawAction) normalize() Action {
	a := Action{Selector: r.Selector, Value: r.Value, Type: r.Type}
	if a.Selector == "" {
		a.Selector = r.TargetSelector
	}
	if a.Value == "" {
		a.Value = r.QuestionLabel
	}
	return a
}

// normalizeActions accepts a bare array, an {"actions": [...]} object, or
// any object with a single list-valued field, and coerces alternate key
// names to the canonical selector/value.
func normalizeActions(data []byte) ([]Action, error) {
	var raw []rawAction

	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("plan is neither array nor object: %w", err)
		}
		if inner, ok := wrapped["actions"]; ok {
			if err := json.Unmarshal(inner, &raw); err != nil {
				return nil, fmt.Errorf("decode actions field: %w", err)
			}
		} else {
			// Fall back to the first non-empty list-valued field. A null
			// value also unmarshals into a nil slice without error, so it
			// must not end the search.
			for _, v := range wrapped {
				if err := json.Unmarshal(v, &raw); err == nil && len(raw) > 0 {
					break
				}
				raw = nil
			}
		}
	}

	actions := make([]Action, 0, len(raw))
	for _, r := range raw {
		a := r.normalize()
		if a.Type == "" {
			continue
		}
		actions = append(actions, a)
	}
	return actions, nil
}
