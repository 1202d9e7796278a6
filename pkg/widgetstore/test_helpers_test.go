package widgetstore_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
)

func strPtr(s string) *string { return &s }

// newCreateRequest builds the request used throughout the store tests.
func newCreateRequest() *widget.Request {
	return &widget.Request{
		Type:            widget.TypeCreate,
		RequestID:       "req-1",
		WidgetID:        "w1",
		Owner:           "Alice Smith",
		Label:           strPtr("Widget A"),
		Description:     strPtr("A red widget"),
		OtherAttributes: []widget.OtherAttribute{{Name: "color", Value: "red"}},
	}
}

// mockRecordPutter is a test double for widgetstore.RecordPutter.
type mockRecordPutter struct {
	mu      sync.Mutex
	records map[string]map[string]interface{}
	calls   int
	err     error
}

func newMockRecordPutter() *mockRecordPutter {
	return &mockRecordPutter{records: make(map[string]map[string]interface{})}
}

func (m *mockRecordPutter) PutRecord(_ context.Context, collection, id string, record map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.records[collection+"/"+id] = record
	return nil
}

// mockPublisher is a test double for widgetstore.Publisher.
type mockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
	attrs    []map[string]string
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, data []byte, attributes map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.messages = append(m.messages, data)
	m.attrs = append(m.attrs, attributes)
	return "msg-id", nil
}
