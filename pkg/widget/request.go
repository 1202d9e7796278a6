// Package widget defines the inbound widget request message, its validation
// rules and the normalized views derived from it for storage.
package widget

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// RequestType identifies the operation a Request asks for.
type RequestType string

const (
	TypeCreate RequestType = "WidgetCreateRequest"
	TypeDelete RequestType = "WidgetDeleteRequest"
	TypeUpdate RequestType = "WidgetUpdateRequest"
)

// Valid reports whether t is one of the known request types.
func (t RequestType) Valid() bool {
	switch t {
	case TypeCreate, TypeDelete, TypeUpdate:
		return true
	}
	return false
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z ]+$`)

// OtherAttribute is a free-form name/value pair carried by a request.
type OtherAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request is a validated widget request. Values returned by Parse satisfy every
// invariant of the message format and are not modified afterwards.
type Request struct {
	Type            RequestType      `json:"type"`
	RequestID       string           `json:"requestId"`
	WidgetID        string           `json:"widgetId"`
	Owner           string           `json:"owner"`
	Label           *string          `json:"label,omitempty"`
	Description     *string          `json:"description,omitempty"`
	OtherAttributes []OtherAttribute `json:"otherAttributes"`
}

// ValidationError describes the first invariant a payload violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid widget request: " + e.Reason
	}
	return fmt.Sprintf("invalid widget request: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

var knownFields = map[string]struct{}{
	"type":            {},
	"requestId":       {},
	"widgetId":        {},
	"owner":           {},
	"label":           {},
	"description":     {},
	"otherAttributes": {},
}

// ParseJSON decodes a raw message body and validates it with Parse.
// A body that is not a JSON object yields a decode error, not a ValidationError.
func ParseJSON(body []byte) (*Request, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode widget request: %w", err)
	}
	if payload == nil {
		return nil, invalid("", "payload must be a JSON object")
	}
	return Parse(payload)
}

// Parse builds a Request from an already decoded JSON object. It returns either
// a fully valid Request or a *ValidationError, never a partial value.
func Parse(payload map[string]interface{}) (*Request, error) {
	for key := range payload {
		if _, ok := knownFields[key]; !ok {
			return nil, invalid(key, "is not a recognised field")
		}
	}

	rawType, _ := payload["type"].(string)
	reqType := RequestType(rawType)
	if !reqType.Valid() {
		return nil, invalid("type", "must be one of the schema values")
	}

	req := &Request{Type: reqType, OtherAttributes: []OtherAttribute{}}
	required := []struct {
		name string
		dst  *string
	}{
		{"requestId", &req.RequestID},
		{"widgetId", &req.WidgetID},
		{"owner", &req.Owner},
	}
	for _, f := range required {
		v, ok := payload[f.name].(string)
		if !ok || v == "" {
			return nil, invalid(f.name, "must be a non-empty string")
		}
		*f.dst = v
	}

	if !ownerPattern.MatchString(req.Owner) {
		return nil, invalid("owner", "must contain only letters and spaces")
	}

	var err error
	if req.Label, err = optionalString(payload, "label"); err != nil {
		return nil, err
	}
	if req.Description, err = optionalString(payload, "description"); err != nil {
		return nil, err
	}
	if req.OtherAttributes, err = otherAttributes(payload["otherAttributes"]); err != nil {
		return nil, err
	}
	return req, nil
}

func optionalString(payload map[string]interface{}, field string) (*string, error) {
	raw, ok := payload[field]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, invalid(field, "must be a string when present")
	}
	return &s, nil
}

func otherAttributes(raw interface{}) ([]OtherAttribute, error) {
	attrs := []OtherAttribute{}
	if raw == nil {
		return attrs, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, invalid("otherAttributes", "must be an array")
	}
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, invalid(fmt.Sprintf("otherAttributes[%d]", i), "must be an object")
		}
		name, nameOK := obj["name"].(string)
		value, valueOK := obj["value"].(string)
		if !nameOK || !valueOK {
			return nil, invalid(fmt.Sprintf("otherAttributes[%d]", i), "must have string name and value")
		}
		attrs = append(attrs, OtherAttribute{Name: name, Value: value})
	}
	return attrs, nil
}
