// Package consumer owns the poll -> route cycle of the widget consumer.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/illmade-knight/go-widgetflow/pkg/router"
	"github.com/illmade-knight/go-widgetflow/pkg/widget"
	"github.com/illmade-knight/go-widgetflow/pkg/widgetstore"
	"github.com/rs/zerolog"
)

// RequestSource yields the next request, or nil when none is pending this cycle.
// A returned error is fatal for the run.
type RequestSource interface {
	GetNextRequest(ctx context.Context) (*widget.Request, error)
}

// State is the run loop's state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// StopReason records why Run returned.
type StopReason string

const (
	StopAfterReached StopReason = "stop_after_reached"
	StopInterrupted  StopReason = "interrupted"
	StopFailed       StopReason = "failed"
)

// Summary describes a finished run.
type Summary struct {
	Processed int
	Reason    StopReason
}

// Status is a point-in-time view of a running Service, safe to read from other goroutines.
type Status struct {
	State     string `json:"state"`
	Processed int64  `json:"processed"`
}

// ServiceConfig holds configuration for a Service.
type ServiceConfig struct {
	// StopAfter ends the run once this many requests were processed. Zero runs until interrupted.
	StopAfter int
	// Sinks are flushed and closed when the run stops, after the final log line.
	Sinks []io.Closer
}

// Service runs the poll -> route loop, one request at a time.
type Service struct {
	source RequestSource
	store  widgetstore.WidgetStore
	cfg    ServiceConfig
	logger zerolog.Logger

	processed atomic.Int64
	state     atomic.Int32
}

// NewService creates a Service.
func NewService(cfg ServiceConfig, source RequestSource, store widgetstore.WidgetStore, logger zerolog.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("request source cannot be nil")
	}
	if store == nil {
		return nil, errors.New("widget store cannot be nil")
	}
	if cfg.StopAfter < 0 {
		return nil, fmt.Errorf("stop-after must not be negative, got %d", cfg.StopAfter)
	}
	return &Service{
		source: source,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("service", "WidgetConsumer").Logger(),
	}, nil
}

// Status returns the current state and processed count.
func (s *Service) Status() Status {
	return Status{State: State(s.state.Load()).String(), Processed: s.processed.Load()}
}

// Run polls and routes requests until StopAfter is reached, ctx is cancelled or
// the processing path fails. Cancellation is observed between iterations and
// during the empty-queue sleep; it yields a nil error. A fatal queue error, a
// storage failure or a panic while processing is returned as an error.
func (s *Service) Run(ctx context.Context) (summary Summary, err error) {
	s.state.Store(int32(StatePolling))
	defer func() {
		summary.Processed = int(s.processed.Load())
		s.stop(summary, err)
	}()

	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Interrupted. Shutting down gracefully.")
			return Summary{Reason: StopInterrupted}, nil
		}

		handled, stepErr := s.step(ctx)
		if stepErr != nil {
			s.logger.Error().Err(stepErr).Msg("Fatal error in consumer loop.")
			return Summary{Reason: StopFailed}, stepErr
		}
		if !handled {
			// The source already slept.
			continue
		}

		n := s.processed.Add(1)
		if s.cfg.StopAfter > 0 && n >= int64(s.cfg.StopAfter) {
			s.logger.Info().Int64("processed", n).Msg("Stop-after reached. Exiting.")
			return Summary{Reason: StopAfterReached}, nil
		}
	}
}

// step runs one poll and, when a request arrived, routes it. Routing uses a
// context detached from ctx so an interrupt cannot abort a write half way.
func (s *Service) step(ctx context.Context) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing request: %v", r)
		}
	}()

	req, err := s.source.GetNextRequest(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get next request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	logger := s.logger.With().Str("request_id", req.RequestID).Logger()
	if err := router.Route(context.WithoutCancel(ctx), req, s.store, logger); err != nil {
		return false, fmt.Errorf("failed to process request %s: %w", req.RequestID, err)
	}
	return true, nil
}

func (s *Service) stop(summary Summary, err error) {
	s.state.Store(int32(StateStopped))
	event := s.logger.Info()
	if err != nil {
		event = s.logger.Error().Err(err)
	}
	event.Int("processed", summary.Processed).Str("reason", string(summary.Reason)).Msg("Consumer stopped.")

	for _, sink := range s.cfg.Sinks {
		if closeErr := sink.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("Failed to close log sink.")
		}
	}
}
