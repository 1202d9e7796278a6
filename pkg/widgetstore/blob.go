package widgetstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-widgetflow/pkg/blob"
	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/rs/zerolog"
)

const (
	// WidgetPathPrefix is the top-level folder for widget objects.
	WidgetPathPrefix = "widgets"
	jsonContentType  = "application/json"
)

// BlobWidgetStoreConfig holds configuration for a BlobWidgetStore.
type BlobWidgetStoreConfig struct {
	BucketName string
}

// BlobWidgetStore writes each widget as a JSON object at
// widgets/{ownerSlug}/{widgetId}, overwriting any previous version.
type BlobWidgetStore struct {
	client blob.Client
	config BlobWidgetStoreConfig
	logger zerolog.Logger
}

// NewBlobWidgetStore creates a store writing into cfg.BucketName.
func NewBlobWidgetStore(client blob.Client, cfg BlobWidgetStoreConfig, logger zerolog.Logger) (*BlobWidgetStore, error) {
	if client == nil {
		return nil, errors.New("blob client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("widget bucket name is required")
	}
	return &BlobWidgetStore{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "BlobWidgetStore").Str("bucket", cfg.BucketName).Logger(),
	}, nil
}

// WidgetKey returns the object key for a request.
func WidgetKey(req *widget.Request) string {
	return WidgetPathPrefix + "/" + widget.OwnerSlug(req.Owner) + "/" + req.WidgetID
}

// PutWidget satisfies WidgetStore and returns the object key used.
func (s *BlobWidgetStore) PutWidget(ctx context.Context, req *widget.Request) (string, error) {
	key := WidgetKey(req)
	body, err := json.Marshal(widget.Flatten(req))
	if err != nil {
		return "", s.fail(req, key, fmt.Errorf("json encoding failed: %w", err))
	}

	w := s.client.Bucket(s.config.BucketName).Object(key).NewWriter(ctx, jsonContentType)
	_, writeErr := w.Write(body)
	closeErr := w.Close() // Close commits the object.
	if writeErr != nil {
		return "", s.fail(req, key, fmt.Errorf("failed to write object %s: %w", key, writeErr))
	}
	if closeErr != nil {
		return "", s.fail(req, key, fmt.Errorf("failed to close object writer for %s: %w", key, closeErr))
	}

	s.logger.Info().Str("widget_id", req.WidgetID).Str("object_name", key).Int("bytes_written", len(body)).Msg("Stored widget.")
	return key, nil
}

func (s *BlobWidgetStore) fail(req *widget.Request, key string, err error) error {
	s.logger.Error().Err(err).Str("widget_id", req.WidgetID).Str("object_name", key).Msg("Failed to store widget.")
	return &StorageWriteError{Backend: "blob", WidgetID: req.WidgetID, Err: err}
}
