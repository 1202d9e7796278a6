package widgetstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/rs/zerolog"
)

// Publisher sends a single message and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// GooglePubsubPublisherConfig holds configuration for the Pub/Sub publisher.
type GooglePubsubPublisherConfig struct {
	ProjectID                  string
	TopicID                    string
	TopicExistsTimeout         time.Duration
	PublishConfirmationTimeout time.Duration
}

// GooglePubsubPublisher publishes to a Pub/Sub topic and waits for the server
// to confirm each message.
type GooglePubsubPublisher struct {
	topic                      *pubsub.Topic
	publishConfirmationTimeout time.Duration
	logger                     zerolog.Logger
}

// NewGooglePubsubPublisher validates the topic's existence before returning.
func NewGooglePubsubPublisher(
	ctx context.Context,
	cfg *GooglePubsubPublisherConfig,
	client *pubsub.Client,
	logger zerolog.Logger,
) (*GooglePubsubPublisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil for publisher")
	}
	if cfg.TopicExistsTimeout <= 0 {
		cfg.TopicExistsTimeout = 15 * time.Second
	}
	if cfg.PublishConfirmationTimeout <= 0 {
		cfg.PublishConfirmationTimeout = 20 * time.Second
	}

	topic := client.Topic(cfg.TopicID)
	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		topic.Stop()
		return nil, fmt.Errorf("failed to check existence of topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		topic.Stop()
		return nil, fmt.Errorf("topic %s does not exist in project %s", cfg.TopicID, cfg.ProjectID)
	}

	return &GooglePubsubPublisher{
		topic:                      topic,
		publishConfirmationTimeout: cfg.PublishConfirmationTimeout,
		logger:                     logger.With().Str("component", "GooglePubsubPublisher").Str("topic_id", cfg.TopicID).Logger(),
	}, nil
}

// Publish sends data and blocks until the server confirms it or the
// confirmation timeout elapses.
func (p *GooglePubsubPublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes})
	getCtx, cancel := context.WithTimeout(ctx, p.publishConfirmationTimeout)
	defer cancel()
	id, err := result.Get(getCtx)
	if err != nil {
		return "", fmt.Errorf("failed to confirm publish to %s: %w", p.topic.ID(), err)
	}
	return id, nil
}

// Stop flushes outstanding messages and releases the topic's resources.
func (p *GooglePubsubPublisher) Stop() {
	p.logger.Info().Msg("Flushing pending Pub/Sub messages...")
	p.topic.Stop()
}

// WidgetStoredEvent is the notification body published after a widget is stored.
type WidgetStoredEvent struct {
	EventID   string            `json:"eventId"`
	RequestID string            `json:"requestId"`
	WidgetID  string            `json:"widgetId"`
	Location  string            `json:"location"`
	StoredAt  time.Time         `json:"storedAt"`
	Widget    widget.FlatRecord `json:"widget"`
}

// NotifyingStore wraps a WidgetStore and publishes a WidgetStoredEvent after
// each successful write. A failed publish is logged and does not fail the write.
type NotifyingStore struct {
	inner     WidgetStore
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewNotifyingStore decorates inner with notifications sent through publisher.
func NewNotifyingStore(inner WidgetStore, publisher Publisher, logger zerolog.Logger) (*NotifyingStore, error) {
	if inner == nil {
		return nil, errors.New("inner store cannot be nil")
	}
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	return &NotifyingStore{
		inner:     inner,
		publisher: publisher,
		logger:    logger.With().Str("component", "NotifyingStore").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// PutWidget satisfies WidgetStore.
func (s *NotifyingStore) PutWidget(ctx context.Context, req *widget.Request) (string, error) {
	location, err := s.inner.PutWidget(ctx, req)
	if err != nil {
		return "", err
	}

	event := WidgetStoredEvent{
		EventID:   uuid.NewString(),
		RequestID: req.RequestID,
		WidgetID:  req.WidgetID,
		Location:  location,
		StoredAt:  s.now(),
		Widget:    widget.Flatten(req),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Str("widget_id", req.WidgetID).Msg("Failed to encode widget stored event.")
		return location, nil
	}
	attrs := map[string]string{"event_type": "WidgetStored", "widget_id": req.WidgetID}
	msgID, err := s.publisher.Publish(ctx, data, attrs)
	if err != nil {
		s.logger.Warn().Err(err).Str("widget_id", req.WidgetID).Msg("Failed to publish widget stored event.")
		return location, nil
	}
	s.logger.Debug().Str("widget_id", req.WidgetID).Str("msg_id", msgID).Msg("Published widget stored event.")
	return location, nil
}
