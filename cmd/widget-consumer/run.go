package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-widgetflow/pkg/blob"
	"github.com/illmade-knight/go-widgetflow/pkg/config"
	"github.com/illmade-knight/go-widgetflow/pkg/consumer"
	"github.com/illmade-knight/go-widgetflow/pkg/health"
	"github.com/illmade-knight/go-widgetflow/pkg/queue"
	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const healthShutdownTimeout = 5 * time.Second

// openBlobClient connects to Cloud Storage and returns the client with its cleanup.
var openBlobClient = func(ctx context.Context, opts []option.ClientOption) (blob.Client, func(), error) {
	gcsClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return blob.NewGCSClientAdapter(gcsClient), func() { _ = gcsClient.Close() }, nil
}

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c *closers) add(f func()) {
	*c = append(*c, f)
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// run wires the consumer from cfg and blocks until it stops. Every resource it
// acquires is released before it returns, so the caller can close the log
// file behind logger afterwards.
func run(parent context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("queue", cfg.QueueBucket).
		Str("queue_prefix", cfg.QueuePrefix).
		Str("target", cfg.Target).
		Str("target_id", cfg.TargetIdentifier()).
		Int("sleep_ms", cfg.SleepMS).
		Int("stop_after", cfg.StopAfter).
		Msg("Consumer starting.")

	var resources closers
	defer func() {
		resources.closeAll()
		logger.Info().Msg("Shutdown complete.")
	}()

	opts := clientOptions(cfg)
	blobClient, closeBlob, err := openBlobClient(ctx, opts)
	if err != nil {
		return fatal(logger, err)
	}
	resources.add(closeBlob)

	store, closeStore, err := newWidgetStore(ctx, cfg, blobClient, opts, logger)
	if err != nil {
		return fatal(logger, err)
	}
	resources.add(closeStore)

	if cfg.NotifyTopic != "" {
		notifying, closeNotify, err := newNotifyingStore(ctx, cfg, store, opts, logger)
		if err != nil {
			return fatal(logger, err)
		}
		resources.add(closeNotify)
		store = notifying
	}

	poller, err := queue.NewPoller(blobClient, queue.PollerConfig{
		BucketName: cfg.QueueBucket,
		Prefix:     cfg.QueuePrefix,
		PollDelay:  cfg.PollDelay(),
	}, logger)
	if err != nil {
		return fatal(logger, err)
	}

	svc, err := consumer.NewService(consumer.ServiceConfig{StopAfter: cfg.StopAfter}, poller, store, logger)
	if err != nil {
		return fatal(logger, err)
	}

	if cfg.HealthAddr != "" {
		srv := health.NewServer(cfg.HealthAddr, func() any { return svc.Status() }, logger)
		if err := srv.Start(); err != nil {
			return fatal(logger, err)
		}
		resources.add(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), healthShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	if _, err := svc.Run(ctx); err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	return nil
}

func fatal(logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("Consumer failed to start.")
	return &exitError{code: exitFatal, err: err}
}

func clientOptions(cfg *config.Config) []option.ClientOption {
	if cfg.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
}

// newWidgetStore builds the store for cfg.Target along with its cleanup function.
func newWidgetStore(
	ctx context.Context,
	cfg *config.Config,
	blobClient blob.Client,
	opts []option.ClientOption,
	logger zerolog.Logger,
) (widgetstore.WidgetStore, func(), error) {
	noop := func() {}

	switch cfg.Target {
	case config.TargetBlob:
		store, err := widgetstore.NewBlobWidgetStore(blobClient, widgetstore.BlobWidgetStoreConfig{BucketName: cfg.WidgetBucket}, logger)
		return store, noop, err

	case config.TargetRecord:
		projectID := cfg.ProjectID
		if projectID == "" {
			projectID = firestore.DetectProjectID
		}
		fsClient, err := firestore.NewClient(ctx, projectID, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create firestore client: %w", err)
		}
		closeFS := func() { _ = fsClient.Close() }
		putter, err := widgetstore.NewFirestorePutter(fsClient)
		if err != nil {
			closeFS()
			return nil, noop, err
		}
		store, err := widgetstore.NewRecordWidgetStore(putter, widgetstore.RecordWidgetStoreConfig{
			ProjectID:      cfg.ProjectID,
			CollectionName: cfg.Table,
		}, logger)
		if err != nil {
			closeFS()
			return nil, noop, err
		}
		return store, closeFS, nil

	case config.TargetRedis:
		store, err := widgetstore.NewRedisWidgetStore(ctx, &widgetstore.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.TargetMemory:
		return widgetstore.NewInMemoryWidgetStore(logger), noop, nil
	}
	return nil, noop, &config.ConfigurationError{Field: "target", Reason: fmt.Sprintf("unsupported target %q", cfg.Target)}
}

// newNotifyingStore wraps store so every stored widget is announced on cfg.NotifyTopic.
func newNotifyingStore(
	ctx context.Context,
	cfg *config.Config,
	store widgetstore.WidgetStore,
	opts []option.ClientOption,
	logger zerolog.Logger,
) (widgetstore.WidgetStore, func(), error) {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = pubsub.DetectProjectID
	}
	psClient, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	publisher, err := widgetstore.NewGooglePubsubPublisher(ctx, &widgetstore.GooglePubsubPublisherConfig{
		ProjectID: cfg.ProjectID,
		TopicID:   cfg.NotifyTopic,
	}, psClient, logger)
	if err != nil {
		_ = psClient.Close()
		return nil, nil, err
	}
	notifying, err := widgetstore.NewNotifyingStore(store, publisher, logger)
	if err != nil {
		publisher.Stop()
		_ = psClient.Close()
		return nil, nil, err
	}
	return notifying, func() {
		publisher.Stop()
		_ = psClient.Close()
	}, nil
}
