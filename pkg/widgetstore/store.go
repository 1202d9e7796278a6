// Package widgetstore persists validated widget requests as widget records.
// Every backend satisfies WidgetStore; the router depends on nothing else.
package widgetstore

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
)

// WidgetStore persists a widget built from a create request and returns the
// identifier it was stored under. Storing an identical request twice leaves one
// record with the same content.
type WidgetStore interface {
	PutWidget(ctx context.Context, req *widget.Request) (string, error)
}

// StorageWriteError reports a failed backend write. It aborts processing of
// the request that caused it.
type StorageWriteError struct {
	Backend  string
	WidgetID string
	Err      error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("%s: failed to store widget %s: %v", e.Backend, e.WidgetID, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}
