// Package service owns the submission-side rules for standalone checks:
// validation, the result cache short-circuit, enqueueing, and administrative
// status overrides.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eligibility/internal/audit"
	"eligibility/internal/check/models"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/domain"
	"eligibility/internal/engine"
	"eligibility/internal/queue"
	"eligibility/internal/resultcache"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/platform/tx"
	"eligibility/pkg/requestcontext"
)

// overrideRetries bounds the optimistic-write retries for an administrative
// status override.
const overrideRetries = 3

// Submission is one standalone check request.
type Submission struct {
	ClientIdentifier string
	Type             domain.BenefitType
	Payload          models.Payload
	CallbackURL      string
}

type Service struct {
	checks   checkstore.Store
	cache    *resultcache.Cache
	producer queue.Producer
	runner   tx.Runner
	auditor  audit.Publisher
	logger   *zap.Logger
}

func New(checks checkstore.Store, cache *resultcache.Cache, producer queue.Producer, runner tx.Runner, auditor audit.Publisher, logger *zap.Logger) *Service {
	return &Service{
		checks:   checks,
		cache:    cache,
		producer: producer,
		runner:   runner,
		auditor:  auditor,
		logger:   logger,
	}
}

// Submit validates and persists one check. A fresh cache entry for the same
// identifying fields settles the check immediately without enqueueing it;
// otherwise the check is stored queued and handed to the work queue.
func (s *Service) Submit(ctx context.Context, sub Submission) (models.Result, error) {
	if err := sub.Payload.Validate(); err != nil {
		return models.Result{}, fmt.Errorf("%w: %s", sentinel.ErrInvalidState, err)
	}

	raw, err := models.EncodePayload(sub.Payload)
	if err != nil {
		return models.Result{}, err
	}

	now := requestcontext.Now(ctx)
	rec := &models.Record{
		ID:               uuid.New().String(),
		ClientIdentifier: sub.ClientIdentifier,
		Type:             sub.Type,
		Status:           domain.StatusQueued,
		Payload:          raw,
		Created:          now,
		Updated:          now,
	}

	fingerprint, err := engine.FingerprintForSubmission(sub.Type, raw)
	if err != nil {
		return models.Result{}, err
	}

	entry, err := s.cache.Lookup(ctx, fingerprint)
	switch {
	case err == nil:
		// Settle from the cache: the record is born with the prior outcome and
		// never visits the queue.
		rec.Status = entry.Outcome
		rec.ResultCacheID = &entry.ID
		if err := s.checks.Create(ctx, rec); err != nil {
			return models.Result{}, fmt.Errorf("create check: %w", err)
		}
		s.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionHashReused,
			CheckID: rec.ID,
			Outcome: string(entry.Outcome),
			Source:  string(domain.SourceCache),
		})
	case errors.Is(err, sentinel.ErrNotFound):
		if err := s.checks.Create(ctx, rec); err != nil {
			return models.Result{}, fmt.Errorf("create check: %w", err)
		}
		if err := s.producer.Enqueue(ctx, queue.Message{
			CheckID:     rec.ID,
			Type:        rec.Type,
			CallbackURL: sub.CallbackURL,
		}); err != nil {
			return models.Result{}, fmt.Errorf("enqueue check %s: %w", rec.ID, err)
		}
		s.auditor.Emit(ctx, audit.Event{
			Action:  audit.ActionCheckSubmitted,
			CheckID: rec.ID,
		})
	default:
		return models.Result{}, fmt.Errorf("cache lookup: %w", err)
	}

	return models.ToResult(rec)
}

// Get returns the caller-facing view of one check.
func (s *Service) Get(ctx context.Context, id string) (models.Result, error) {
	rec, err := s.checks.GetByID(ctx, id)
	if err != nil {
		return models.Result{}, err
	}
	return models.ToResult(rec)
}

// UpdateStatus is the administrative override. Transitions are validated
// against the state machine and the write retries against fresh reads when a
// concurrent settle gets there first.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.CheckStatus) (models.Result, error) {
	for attempt := 0; attempt < overrideRetries; attempt++ {
		rec, err := s.checks.GetByID(ctx, id)
		if err != nil {
			return models.Result{}, err
		}
		if !rec.Status.CanTransitionTo(status) {
			return models.Result{}, fmt.Errorf("%w: cannot move %s from %s to %s", sentinel.ErrInvalidState, id, rec.Status, status)
		}

		err = s.checks.UpdateStatus(ctx, id, status, rec.ResultCacheID, rec.Version)
		if err == nil {
			s.auditor.Emit(ctx, audit.Event{
				Action:  audit.ActionStatusOverride,
				CheckID: id,
				Outcome: string(status),
				Detail:  "from=" + string(rec.Status),
			})
			rec.Status = status
			return models.ToResult(rec)
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return models.Result{}, fmt.Errorf("override check %s: %w", id, err)
		}
	}
	return models.Result{}, fmt.Errorf("override check %s: %w", id, sentinel.ErrConflict)
}
