// Package consumer drains the work queue and decides each message's fate:
// settled checks lose their message, transiently failed ones are released
// for redelivery, and checks past the retry limit are forced to the error
// status and dropped.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eligibility/internal/audit"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/consumer/metrics"
	"eligibility/internal/domain"
	"eligibility/internal/platform/config"
	"eligibility/internal/queue"
	"eligibility/pkg/platform/sentinel"
)

// forceErrorRetries bounds the optimistic-write retries when marking a check
// as exhausted.
const forceErrorRetries = 3

// Processor runs the pipeline for one check. Satisfied by engine.Engine.
type Processor interface {
	Process(ctx context.Context, checkID string) (domain.CheckStatus, error)
}

// Recomputer re-derives a bulk group's aggregate after a member settles.
// Satisfied by the bulk service.
type Recomputer interface {
	Recompute(ctx context.Context, groupID string) error
}

type Consumer struct {
	queue     queue.Queue
	processor Processor
	checks    checkstore.Store
	groups    Recomputer
	auditor   audit.Publisher
	cfg       config.QueueConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Deps struct {
	Queue     queue.Queue
	Processor Processor
	Checks    checkstore.Store
	Groups    Recomputer
	Auditor   audit.Publisher
	Config    config.QueueConfig
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func New(deps Deps) *Consumer {
	return &Consumer{
		queue:     deps.Queue,
		processor: deps.Processor,
		checks:    deps.Checks,
		groups:    deps.Groups,
		auditor:   deps.Auditor,
		cfg:       deps.Config,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Run drains the queue with the configured number of workers until the
// context is cancelled. The queue's lease semantics keep any one check in at
// most one pipeline run at a time; workers add no locking of their own.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			return c.workerLoop(ctx, worker)
		})
	}
	return g.Wait()
}

func (c *Consumer) workerLoop(ctx context.Context, worker int) error {
	logger := c.logger.With(zap.Int("worker", worker))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.queue.Dequeue(ctx, int64(c.cfg.BatchSize))
		if err != nil {
			logger.Error("dequeue failed", zap.Error(err))
			c.sleep(ctx, c.cfg.PollEvery)
			continue
		}
		if len(msgs) == 0 {
			c.sleep(ctx, c.cfg.PollEvery)
			continue
		}

		c.metrics.AddInFlight(float64(len(msgs)))
		for _, msg := range msgs {
			if err := c.handle(ctx, msg); err != nil {
				logger.Error("message handling failed",
					zap.String("check_id", msg.CheckID),
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}
		c.metrics.AddInFlight(-float64(len(msgs)))
	}
}

// handle decides one message's fate from the pipeline result.
func (c *Consumer) handle(ctx context.Context, msg queue.Message) error {
	status, err := c.processor.Process(ctx, msg.CheckID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// The record is gone (deleted after enqueue); the message has
			// nothing left to do.
			c.metrics.RecordHandled("dropped")
			return c.queue.Delete(ctx, msg.ID)
		}
		status = domain.StatusQueued
	}

	if status != domain.StatusQueued {
		c.metrics.RecordHandled("settled")
		if err := c.queue.Delete(ctx, msg.ID); err != nil {
			return err
		}
		return c.recomputeGroup(ctx, msg.CheckID)
	}

	// Rolled back. Give up once the delivery count hits the retry limit,
	// otherwise release the lease for an immediate retry.
	if msg.Deliveries >= int64(c.cfg.RetryLimit) {
		return c.exhaust(ctx, msg)
	}
	c.metrics.RecordHandled("released")
	return c.queue.ResetVisibility(ctx, msg.ID)
}

// exhaust durably marks the check as errored and drops its message. This is
// the only place the error status is ever persisted.
func (c *Consumer) exhaust(ctx context.Context, msg queue.Message) error {
	c.logger.Warn("retry limit reached, forcing error status",
		zap.String("check_id", msg.CheckID),
		zap.Int64("deliveries", msg.Deliveries))

	if err := c.forceError(ctx, msg.CheckID); err != nil {
		return fmt.Errorf("force error on check %s: %w", msg.CheckID, err)
	}
	c.metrics.RecordHandled("exhausted")
	c.auditor.Emit(ctx, audit.Event{
		Action:  audit.ActionRetryExhausted,
		CheckID: msg.CheckID,
		Outcome: string(domain.StatusError),
	})
	if err := c.queue.Delete(ctx, msg.ID); err != nil {
		return err
	}
	return c.recomputeGroup(ctx, msg.CheckID)
}

func (c *Consumer) forceError(ctx context.Context, checkID string) error {
	for attempt := 0; attempt < forceErrorRetries; attempt++ {
		rec, err := c.checks.GetByID(ctx, checkID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		if rec.Status != domain.StatusQueued {
			// Settled between the pipeline run and now; keep that answer.
			return nil
		}
		err = c.checks.UpdateStatus(ctx, checkID, domain.StatusError, nil, rec.Version)
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return sentinel.ErrConflict
}

func (c *Consumer) recomputeGroup(ctx context.Context, checkID string) error {
	rec, err := c.checks.GetByID(ctx, checkID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}
	if rec.GroupID == "" || c.groups == nil {
		return nil
	}
	if err := c.groups.Recompute(ctx, rec.GroupID); err != nil {
		return fmt.Errorf("recompute group %s: %w", rec.GroupID, err)
	}
	return nil
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
