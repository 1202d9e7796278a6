package widget_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"type":        "WidgetCreateRequest",
		"requestId":   "req-1",
		"widgetId":    "w1",
		"owner":       "Alice Smith",
		"label":       "Widget A",
		"description": "A red widget",
		"otherAttributes": []interface{}{
			map[string]interface{}{"name": "color", "value": "red"},
		},
	}
}

func TestParse_Valid(t *testing.T) {
	req, err := widget.Parse(validPayload())
	require.NoError(t, err)

	assert.Equal(t, widget.TypeCreate, req.Type)
	assert.Equal(t, "req-1", req.RequestID)
	assert.Equal(t, "w1", req.WidgetID)
	assert.Equal(t, "Alice Smith", req.Owner)
	require.NotNil(t, req.Label)
	assert.Equal(t, "Widget A", *req.Label)
	require.NotNil(t, req.Description)
	assert.Equal(t, "A red widget", *req.Description)
	assert.Equal(t, []widget.OtherAttribute{{Name: "color", Value: "red"}}, req.OtherAttributes)
}

func TestParse_OptionalFieldsAbsent(t *testing.T) {
	payload := validPayload()
	delete(payload, "label")
	payload["description"] = nil
	delete(payload, "otherAttributes")

	req, err := widget.Parse(payload)
	require.NoError(t, err)
	assert.Nil(t, req.Label)
	assert.Nil(t, req.Description)
	assert.NotNil(t, req.OtherAttributes)
	assert.Empty(t, req.OtherAttributes)
}

func TestParse_AllTypes(t *testing.T) {
	for _, typ := range []string{"WidgetCreateRequest", "WidgetDeleteRequest", "WidgetUpdateRequest"} {
		payload := validPayload()
		payload["type"] = typ
		req, err := widget.Parse(payload)
		require.NoError(t, err, typ)
		assert.Equal(t, widget.RequestType(typ), req.Type)
	}
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(p map[string]interface{})
		field  string
	}{
		{"unknown type", func(p map[string]interface{}) { p["type"] = "WidgetRenameRequest" }, "type"},
		{"missing type", func(p map[string]interface{}) { delete(p, "type") }, "type"},
		{"empty requestId", func(p map[string]interface{}) { p["requestId"] = "" }, "requestId"},
		{"missing widgetId", func(p map[string]interface{}) { delete(p, "widgetId") }, "widgetId"},
		{"numeric widgetId", func(p map[string]interface{}) { p["widgetId"] = 42.0 }, "widgetId"},
		{"empty owner", func(p map[string]interface{}) { p["owner"] = "" }, "owner"},
		{"owner with digits", func(p map[string]interface{}) { p["owner"] = "Alice1" }, "owner"},
		{"owner with punctuation", func(p map[string]interface{}) { p["owner"] = "O'Brien" }, "owner"},
		{"label not a string", func(p map[string]interface{}) { p["label"] = 7.0 }, "label"},
		{"otherAttributes not an array", func(p map[string]interface{}) { p["otherAttributes"] = "color=red" }, "otherAttributes"},
		{"attribute not an object", func(p map[string]interface{}) {
			p["otherAttributes"] = []interface{}{"color"}
		}, "otherAttributes[0]"},
		{"attribute missing value", func(p map[string]interface{}) {
			p["otherAttributes"] = []interface{}{
				map[string]interface{}{"name": "color", "value": "red"},
				map[string]interface{}{"name": "size"},
			}
		}, "otherAttributes[1]"},
		{"attribute numeric value", func(p map[string]interface{}) {
			p["otherAttributes"] = []interface{}{map[string]interface{}{"name": "size", "value": 3.0}}
		}, "otherAttributes[0]"},
		{"unknown field", func(p map[string]interface{}) { p["colour"] = "red" }, "colour"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload()
			tc.mutate(payload)

			req, err := widget.Parse(payload)
			require.Error(t, err)
			assert.Nil(t, req, "no partial request should be returned")

			var vErr *widget.ValidationError
			require.True(t, errors.As(err, &vErr), "expected a ValidationError, got %T", err)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestParseJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		body, err := json.Marshal(validPayload())
		require.NoError(t, err)
		req, err := widget.ParseJSON(body)
		require.NoError(t, err)
		assert.Equal(t, "w1", req.WidgetID)
	})

	t.Run("malformed body is a decode error", func(t *testing.T) {
		_, err := widget.ParseJSON([]byte(`{"type":`))
		require.Error(t, err)
		var vErr *widget.ValidationError
		assert.False(t, errors.As(err, &vErr))
	})

	t.Run("null body is a validation error", func(t *testing.T) {
		_, err := widget.ParseJSON([]byte(`null`))
		var vErr *widget.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("invalid owner", func(t *testing.T) {
		_, err := widget.ParseJSON([]byte(`{"type":"WidgetCreateRequest","requestId":"r","widgetId":"w","owner":"Alice1"}`))
		var vErr *widget.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "owner", vErr.Field)
		assert.True(t, strings.Contains(err.Error(), "letters and spaces"))
	})
}
