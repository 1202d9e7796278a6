// Package queue pops widget requests, one at a time, from a bucket used as a queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/illmade-knight/go-widgetflow/pkg/blob"
	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/rs/zerolog"
)

// ErrQueueNotFound means the queue bucket does not exist. Polling cannot continue.
var ErrQueueNotFound = errors.New("request queue does not exist")

const (
	DefaultPollDelay       = 100 * time.Millisecond
	MinPollDelay           = time.Millisecond
	DefaultMaxPayloadBytes = 1 << 20
)

// Outcome classifies the result of a single poll.
type Outcome int

const (
	// OutcomeEmpty means the queue had no objects; the poller slept.
	OutcomeEmpty Outcome = iota
	// OutcomeDelivered means a valid request was popped.
	OutcomeDelivered
	// OutcomeRejected means a message was popped but failed validation. It is gone.
	OutcomeRejected
	// OutcomeTransient means retrieval or decoding failed this cycle.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmpty:
		return "empty"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransient:
		return "transient"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the typed outcome of Poll. Request is set only for OutcomeDelivered;
// Key is set whenever a message was selected; Err carries the swallowed cause
// for OutcomeRejected and OutcomeTransient.
type Result struct {
	Outcome Outcome
	Key     string
	Request *widget.Request
	Err     error
}

// PollerConfig holds configuration for a Poller.
type PollerConfig struct {
	BucketName string
	// Prefix restricts polling to keys under a prefix. Empty polls the whole bucket.
	Prefix string
	// PollDelay is slept when the queue is empty. Values under MinPollDelay are raised to it.
	PollDelay time.Duration
	// MaxPayloadBytes rejects larger messages. Zero means DefaultMaxPayloadBytes.
	MaxPayloadBytes int64
}

// Poller reads the next pending request from a queue bucket, deleting it on read.
type Poller struct {
	bucket blob.BucketHandle
	cfg    PollerConfig
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration)
}

// NewPoller creates a Poller for cfg.BucketName.
func NewPoller(client blob.Client, cfg PollerConfig, logger zerolog.Logger) (*Poller, error) {
	if client == nil {
		return nil, errors.New("blob client cannot be nil")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("queue bucket name is required")
	}
	if cfg.PollDelay == 0 {
		cfg.PollDelay = DefaultPollDelay
	}
	if cfg.PollDelay < MinPollDelay {
		cfg.PollDelay = MinPollDelay
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Poller{
		bucket: client.Bucket(cfg.BucketName),
		cfg:    cfg,
		logger: logger.With().Str("component", "RequestPoller").Str("bucket", cfg.BucketName).Logger(),
		sleep:  sleepContext,
	}, nil
}

// PollDelay returns the effective delay slept on an empty queue.
func (p *Poller) PollDelay() time.Duration {
	return p.cfg.PollDelay
}

// GetNextRequest returns the next pending request, or nil when there is none
// this cycle. Only a missing queue is reported as an error.
func (p *Poller) GetNextRequest(ctx context.Context) (*widget.Request, error) {
	res, err := p.Poll(ctx)
	if err != nil {
		return nil, err
	}
	return res.Request, nil
}

// Poll performs one list/read/delete/parse cycle. Network calls run detached
// from ctx cancellation so a read is never left without its delete; ctx only
// cuts the empty-queue sleep short.
func (p *Poller) Poll(ctx context.Context) (Result, error) {
	opCtx := context.WithoutCancel(ctx)

	keys, err := p.bucket.ListKeys(opCtx, p.cfg.Prefix, 1)
	if err != nil {
		if errors.Is(err, blob.ErrBucketNotExist) {
			p.logger.Error().Err(err).Msg("Queue bucket does not exist.")
			return Result{}, fmt.Errorf("%w: %s: %w", ErrQueueNotFound, p.cfg.BucketName, err)
		}
		p.logger.Error().Err(err).Msg("Error listing queue.")
		return Result{Outcome: OutcomeTransient, Err: err}, nil
	}

	if len(keys) == 0 {
		p.sleep(ctx, p.cfg.PollDelay)
		return Result{Outcome: OutcomeEmpty}, nil
	}

	key := slices.Min(keys)
	body, err := p.pop(opCtx, key)
	if err != nil {
		if errors.Is(err, blob.ErrBucketNotExist) {
			p.logger.Error().Err(err).Str("key", key).Msg("Queue bucket disappeared while reading.")
			return Result{}, fmt.Errorf("%w: %s: %w", ErrQueueNotFound, p.cfg.BucketName, err)
		}
		p.logger.Error().Err(err).Str("key", key).Msg("Error retrieving request.")
		return Result{Outcome: OutcomeTransient, Key: key, Err: err}, nil
	}
	p.logger.Info().Str("key", key).Msg("Consumed request.")

	if int64(len(body)) > p.cfg.MaxPayloadBytes {
		err := &widget.ValidationError{Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(body), p.cfg.MaxPayloadBytes)}
		p.logger.Warn().Str("key", key).Int("payload_size", len(body)).Msg("Rejecting request due to payload size.")
		return Result{Outcome: OutcomeRejected, Key: key, Err: err}, nil
	}

	req, err := widget.ParseJSON(body)
	if err != nil {
		var vErr *widget.ValidationError
		if errors.As(err, &vErr) {
			p.logger.Error().Err(err).Str("key", key).Msg("Dropping invalid request.")
			return Result{Outcome: OutcomeRejected, Key: key, Err: err}, nil
		}
		p.logger.Error().Err(err).Str("key", key).Msg("Dropping undecodable request.")
		return Result{Outcome: OutcomeTransient, Key: key, Err: err}, nil
	}

	return Result{Outcome: OutcomeDelivered, Key: key, Request: req}, nil
}

// pop reads the whole object and then deletes it. Nothing is returned unless
// the delete succeeded, so a message is never handed out twice.
func (p *Poller) pop(ctx context.Context, key string) ([]byte, error) {
	obj := p.bucket.Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	// One byte past the limit marks the body as oversize.
	body, readErr := io.ReadAll(io.LimitReader(r, p.cfg.MaxPayloadBytes+1))
	closeErr := r.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close reader for %s: %w", key, closeErr)
	}

	if err := obj.Delete(ctx); err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return body, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
