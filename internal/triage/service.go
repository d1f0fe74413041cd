package triage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/mailgw"
)

// BatchResult summarizes one poll cycle.
type BatchResult struct {
	Fetched     int    `json:"fetched"`
	Answered    int    `json:"answered"`
	NeedsReview int    `json:"needs_review"`
	Duplicates  int    `json:"duplicates"`
	Ignored     int    `json:"ignored"`
	Errors      int    `json:"errors"`
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
}

// Service drives the poll cycle: fetch unread, run each message through the
// engine, count outcomes. At most one batch runs at a time; an overlapping
// trigger skips instead of queueing, and a paused service skips fetching
// entirely.
type Service struct {
	gateway mailgw.Gateway
	engine  *Engine
	timeout time.Duration
	logger  log.Logger
	metrics *Metrics

	mu     sync.Mutex
	paused atomic.Bool
}

// NewService creates a service. timeout bounds each message's pipeline;
// metrics may be nil.
func NewService(gateway mailgw.Gateway, engine *Engine, timeout time.Duration, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		gateway: gateway,
		engine:  engine,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// ProcessBatch runs one poll cycle. A skipped cycle (paused, or a previous
// batch still running) is not an error. Per-message failures are counted and
// logged; they never stop the rest of the batch.
func (s *Service) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	if s.paused.Load() {
		s.metrics.batchSkipped("paused")
		return &BatchResult{Skipped: true, Reason: "paused"}, nil
	}
	if !s.mu.TryLock() {
		s.logger.Info(ctx, "previous batch still running, skipping cycle")
		s.metrics.batchSkipped("busy")
		return &BatchResult{Skipped: true, Reason: "busy"}, nil
	}
	defer s.mu.Unlock()

	msgs, err := s.gateway.FetchUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch unread: %w", err)
	}

	res := &BatchResult{Fetched: len(msgs)}
	for _, msg := range msgs {
		outcome, err := s.processOne(ctx, msg)
		if err != nil {
			res.Errors++
			s.metrics.messageFailed()
			s.logger.Error(ctx, err, "message triage failed, leaving unread",
				"uid", msg.UID, "subject", msg.Subject, "from", msg.From)
			continue
		}
		s.metrics.messageDone(outcome)
		switch outcome {
		case OutcomeAnswered:
			res.Answered++
		case OutcomeNeedsReview:
			res.NeedsReview++
		case OutcomeDuplicate:
			res.Duplicates++
		case OutcomeIgnored:
			res.Ignored++
		}
	}

	if res.Fetched > 0 {
		s.logger.Info(ctx, "batch complete",
			"fetched", res.Fetched,
			"answered", res.Answered,
			"needs_review", res.NeedsReview,
			"duplicates", res.Duplicates,
			"ignored", res.Ignored,
			"errors", res.Errors,
		)
	}
	return res, nil
}

func (s *Service) processOne(ctx context.Context, msg mailgw.Message) (Outcome, error) {
	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.engine.Process(mctx, msg)
}

// Pause stops future batches from fetching. A batch already in flight
// finishes normally.
func (s *Service) Pause() { s.paused.Store(true) }

// Resume re-enables batch processing.
func (s *Service) Resume() { s.paused.Store(false) }

// Paused reports whether intake is currently paused.
func (s *Service) Paused() bool { return s.paused.Load() }
