package widgetstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/rs/zerolog"
)

// InMemoryWidgetStore is a thread-safe WidgetStore holding records in a map
// keyed by widgetId. It backs local dry runs and tests.
type InMemoryWidgetStore struct {
	mu     sync.RWMutex
	data   map[string]widget.FlatRecord
	puts   int
	fails  error
	logger zerolog.Logger
}

// NewInMemoryWidgetStore creates an empty store.
func NewInMemoryWidgetStore(logger zerolog.Logger) *InMemoryWidgetStore {
	return &InMemoryWidgetStore{data: make(map[string]widget.FlatRecord), logger: logger}
}

// FailWith makes every subsequent PutWidget fail with err. A nil err restores normal behaviour.
func (s *InMemoryWidgetStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = err
}

// PutWidget satisfies WidgetStore.
func (s *InMemoryWidgetStore) PutWidget(_ context.Context, req *widget.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.fails != nil {
		s.logger.Error().Err(s.fails).Str("widget_id", req.WidgetID).Msg("Failed to store widget.")
		return "", &StorageWriteError{Backend: "memory", WidgetID: req.WidgetID, Err: s.fails}
	}
	s.data[req.WidgetID] = widget.Flatten(req)
	return req.WidgetID, nil
}

// Get returns the stored record for widgetID.
func (s *InMemoryWidgetStore) Get(widgetID string) (widget.FlatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[widgetID]
	if !ok {
		return nil, fmt.Errorf("widget '%s' not found", widgetID)
	}
	return rec, nil
}

// Len returns the number of stored widgets.
func (s *InMemoryWidgetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// PutCount returns how many times PutWidget was called, including failures.
func (s *InMemoryWidgetStore) PutCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
