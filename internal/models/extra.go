package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Reserved keys inside the custom_data column. They carry the pending
// input request while a job is suspended; everything else is user payload.
const (
	missingTypeKey  = "_missing_type"
	missingLabelKey = "_missing_label"

	// UserResponseKey is the generic fallback key an external actor may use
	// to hand back a text answer without knowing the exact label asked.
	UserResponseKey = "user_response"
)

// InputType is what kind of input a suspended job is waiting for.
type InputType string

const (
	InputFile InputType = "file"
	InputText InputType = "text"
)

// PendingRequest describes the outstanding human-input request of a job
// in WAITING_INPUT.
type PendingRequest struct {
	Type  InputType `json:"type"`
	Label string    `json:"label"`
}

// JobExtra is the custom_data column: free-form user key/values plus the
// optional pending input request. It serializes to a single flat JSON
// object, with the request stored under the reserved keys, so the column
// stays readable by the dashboard.
type JobExtra struct {
	UserData map[string]string
	Pending  *PendingRequest
}

// Get returns the user value for key, or "" if absent.
func (e JobExtra) Get(key string) string {
	if e.UserData == nil {
		return ""
	}
	return e.UserData[key]
}

// Set stores a user value, allocating the map if needed.
func (e *JobExtra) Set(key, value string) {
	if e.UserData == nil {
		e.UserData = make(map[string]string)
	}
	e.UserData[key] = value
}

func (e JobExtra) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(e.UserData)+2)
	for k, v := range e.UserData {
		flat[k] = v
	}
	if e.Pending != nil {
		flat[missingTypeKey] = string(e.Pending.Type)
		flat[missingLabelKey] = e.Pending.Label
	}
	return json.Marshal(flat)
}

func (e *JobExtra) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	e.UserData = make(map[string]string, len(flat))
	e.Pending = nil

	for k, raw := range flat {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// Non-string values (numbers, bools) are kept as their JSON text.
			s = string(raw)
		}
		e.UserData[k] = s
	}

	if t, ok := e.UserData[missingTypeKey]; ok {
		e.Pending = &PendingRequest{Type: InputType(t), Label: e.UserData[missingLabelKey]}
		delete(e.UserData, missingTypeKey)
		delete(e.UserData, missingLabelKey)
	}
	return nil
}

// Value implements driver.Valuer for the JSONB column.
func (e JobExtra) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner for the JSONB column.
func (e *JobExtra) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*e = JobExtra{UserData: map[string]string{}}
		return nil
	case []byte:
		return e.UnmarshalJSON(v)
	case string:
		return e.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into JobExtra", src)
	}
}
