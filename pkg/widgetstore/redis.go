package widgetstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces widget hashes. Defaults to "widget".
	KeyPrefix string
}

// RedisWidgetStore keeps each widget as a Redis hash at {KeyPrefix}:{widgetId}.
type RedisWidgetStore struct {
	redisClient *redis.Client
	keyPrefix   string
	logger      zerolog.Logger
}

// NewRedisWidgetStore connects to Redis and pings it before returning.
func NewRedisWidgetStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisWidgetStore, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "widget"
	}
	return &RedisWidgetStore{
		redisClient: rdb,
		keyPrefix:   prefix,
		logger:      logger.With().Str("component", "RedisWidgetStore").Logger(),
	}, nil
}

// Key returns the hash key a widget is stored under.
func (s *RedisWidgetStore) Key(widgetID string) string {
	return s.keyPrefix + ":" + widgetID
}

// PutWidget replaces the widget's hash atomically and returns the widgetId.
// The hash is deleted first so attributes from an earlier version do not linger.
func (s *RedisWidgetStore) PutWidget(ctx context.Context, req *widget.Request) (string, error) {
	key := s.Key(req.WidgetID)
	record := widget.Flatten(req).Map()

	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, record)
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store widget in Redis.")
		return "", &StorageWriteError{Backend: "redis", WidgetID: req.WidgetID, Err: fmt.Errorf("failed to set in redis: %w", err)}
	}

	s.logger.Info().Str("widget_id", req.WidgetID).Str("key", key).Msg("Stored widget.")
	return req.WidgetID, nil
}

// Close closes the Redis client connection.
func (s *RedisWidgetStore) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
