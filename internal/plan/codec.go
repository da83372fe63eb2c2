package plan

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned when a serialized plan cannot be parsed.
var ErrInvalidDocument = errors.New("invalid plan document")

// Marshal encodes the plan as indented canonical JSON:
// {id, title, description, tasks[...], created, updated, status}.
func Marshal(p *Plan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling plan %s: %w", p.ID, err)
	}
	return data, nil
}

// MarshalYAML encodes the plan as YAML with the same field names as Marshal.
func MarshalYAML(p *Plan) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling plan %s as yaml: %w", p.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a JSON plan document. It performs no defaulting; callers
// that accept documents from disk should pass the result through the planner's
// import path.
func Unmarshal(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &p, nil
}
