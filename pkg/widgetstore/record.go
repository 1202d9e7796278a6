package widgetstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/status"
)

// RecordPutter writes a whole attribute record into a collection, replacing any
// existing record with the same id.
type RecordPutter interface {
	PutRecord(ctx context.Context, collection, id string, record map[string]interface{}) error
}

// FirestorePutter is a RecordPutter backed by Firestore documents.
type FirestorePutter struct {
	client *firestore.Client
}

// NewFirestorePutter wraps an existing client. The client's lifecycle is managed by the caller.
func NewFirestorePutter(client *firestore.Client) (*FirestorePutter, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestorePutter{client: client}, nil
}

// PutRecord sets the document collection/id to record. Set without merge
// replaces the whole document, so repeated writes converge.
func (p *FirestorePutter) PutRecord(ctx context.Context, collection, id string, record map[string]interface{}) error {
	_, err := p.client.Collection(collection).Doc(id).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("firestore set for %s/%s: %w", collection, id, err)
	}
	return nil
}

// RecordWidgetStoreConfig holds configuration for a RecordWidgetStore.
type RecordWidgetStoreConfig struct {
	ProjectID      string
	CollectionName string
}

// RecordWidgetStore writes each widget as a flat string-valued record keyed by widgetId.
type RecordWidgetStore struct {
	putter     RecordPutter
	collection string
	logger     zerolog.Logger
}

// NewRecordWidgetStore creates a store writing into cfg.CollectionName.
func NewRecordWidgetStore(putter RecordPutter, cfg RecordWidgetStoreConfig, logger zerolog.Logger) (*RecordWidgetStore, error) {
	if putter == nil {
		return nil, errors.New("record putter cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, errors.New("record collection name is required")
	}
	logger.Info().Str("project_id", cfg.ProjectID).Str("collection", cfg.CollectionName).Msg("RecordWidgetStore initialized.")
	return &RecordWidgetStore{
		putter:     putter,
		collection: cfg.CollectionName,
		logger:     logger.With().Str("component", "RecordWidgetStore").Str("collection", cfg.CollectionName).Logger(),
	}, nil
}

// PutWidget satisfies WidgetStore and returns the widgetId.
func (s *RecordWidgetStore) PutWidget(ctx context.Context, req *widget.Request) (string, error) {
	record := widget.Flatten(req).Map()
	if err := s.putter.PutRecord(ctx, s.collection, req.WidgetID, record); err != nil {
		s.logger.Error().Err(err).
			Str("widget_id", req.WidgetID).
			Str("grpc_code", status.Code(err).String()).
			Msg("Failed to store widget.")
		return "", &StorageWriteError{Backend: "record", WidgetID: req.WidgetID, Err: err}
	}
	s.logger.Info().Str("widget_id", req.WidgetID).Int("attribute_count", len(record)).Msg("Stored widget.")
	return req.WidgetID, nil
}
