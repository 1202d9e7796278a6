// Package router dispatches a validated widget request to a storage backend.
package router

import (
	"context"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
)

// Route performs the operation req asks for against store. Only creates are
// stored; deletes and updates are acknowledged with a warning. A storage
// failure is returned so the caller can abort. The caller binds request_id
// onto logger.
func Route(ctx context.Context, req *widget.Request, store widgetstore.WidgetStore, logger zerolog.Logger) error {
	switch req.Type {
	case widget.TypeCreate:
		if _, err := store.PutWidget(ctx, req); err != nil {
			return err
		}
		logger.Info().Str("widget_id", req.WidgetID).Str("owner", req.Owner).Msg("CREATE processed.")
	case widget.TypeDelete:
		logger.Warn().Str("widget_id", req.WidgetID).Msg("DELETE request received, not implemented.")
	case widget.TypeUpdate:
		logger.Warn().Str("widget_id", req.WidgetID).Msg("UPDATE request received, not implemented.")
	default:
		// Unreachable for parsed requests; kept for types added to the format later.
		logger.Error().Str("type", string(req.Type)).Msg("Unknown request type.")
	}
	return nil
}
