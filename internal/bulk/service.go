package bulk

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

// Metadata describes one bulk submission.
type Metadata struct {
	Name           string
	LocalAuthority int
	CallbackURL    string
}

// Member is one check inside a bulk submission.
type Member struct {
	ClientIdentifier string
	Type             domain.BenefitType
	Payload          models.Payload
}

type Service struct {
	groups   Store
	checks   checkstore.Store
	cache    *resultcache.Cache
	producer queue.Producer
	runner   tx.Runner
	auditor  audit.Publisher
	// deleteMax bounds how many records one SoftDelete may touch.
	deleteMax int
	logger    *zap.Logger
}

func New(groups Store, checks checkstore.Store, cache *resultcache.Cache, producer queue.Producer, runner tx.Runner, auditor audit.Publisher, deleteMax int, logger *zap.Logger) *Service {
	return &Service{
		groups:    groups,
		checks:    checks,
		cache:     cache,
		producer:  producer,
		runner:    runner,
		auditor:   auditor,
		deleteMax: deleteMax,
		logger:    logger,
	}
}

// Submit persists the group and every member in one transaction. Each member
// gets the same cache treatment as a standalone check: a fresh entry settles
// it at birth, everything else is enqueued once the transaction commits.
func (s *Service) Submit(ctx context.Context, meta Metadata, members []Member) (string, error) {
	if len(members) == 0 {
		return "", fmt.Errorf("%w: bulk submission has no members", sentinel.ErrInvalidState)
	}
	for i, m := range members {
		if err := m.Payload.Validate(); err != nil {
			return "", fmt.Errorf("%w: member %d: %s", sentinel.ErrInvalidState, i+1, err)
		}
	}

	now := requestcontext.Now(ctx)
	group := &Group{
		ID:             uuid.New().String(),
		Name:           meta.Name,
		LocalAuthority: meta.LocalAuthority,
		Status:         domain.GroupQueued,
		Submitted:      now,
		Updated:        now,
	}

	var pending []queue.Message
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.groups.Create(ctx, group); err != nil {
			return err
		}
		for i, m := range members {
			raw, err := models.EncodePayload(m.Payload)
			if err != nil {
				return err
			}
			rec := &models.Record{
				ID:               uuid.New().String(),
				GroupID:          group.ID,
				ClientIdentifier: m.ClientIdentifier,
				Type:             m.Type,
				Status:           domain.StatusQueued,
				Payload:          raw,
				Sequence:         i + 1,
				Created:          now,
				Updated:          now,
			}

			fingerprint, err := engine.FingerprintForSubmission(m.Type, raw)
			if err != nil {
				return err
			}
			entry, err := s.cache.Lookup(ctx, fingerprint)
			switch {
			case err == nil:
				rec.Status = entry.Outcome
				rec.ResultCacheID = &entry.ID
			case errors.Is(err, sentinel.ErrNotFound):
				pending = append(pending, queue.Message{
					CheckID:     rec.ID,
					Type:        rec.Type,
					CallbackURL: meta.CallbackURL,
				})
			default:
				return fmt.Errorf("cache lookup for member %d: %w", i+1, err)
			}

			if err := s.checks.Create(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("submit bulk group: %w", err)
	}

	for _, msg := range pending {
		if err := s.producer.Enqueue(ctx, msg); err != nil {
			return group.ID, fmt.Errorf("enqueue member %s: %w", msg.CheckID, err)
		}
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionGroupSubmitted,
		GroupID:        group.ID,
		LocalAuthority: meta.LocalAuthority,
		Detail:         fmt.Sprintf("members=%d cached=%d", len(members), len(members)-len(pending)),
	})

	// Members settled from the cache count toward the aggregate right away.
	if err := s.Recompute(ctx, group.ID); err != nil {
		s.logger.Warn("initial group recompute failed", zap.String("group_id", group.ID), zap.Error(err))
	}
	return group.ID, nil
}

// GetStatus reports aggregate progress: completed counts every member whose
// status is no longer queued.
func (s *Service) GetStatus(ctx context.Context, groupID string) (Progress, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return Progress{}, err
	}
	counts, err := s.checks.CountByGroup(ctx, groupID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{
		Total:     counts.Total,
		Completed: counts.Total - counts.Queued,
	}, nil
}

// GetResults maps every non-deleted member to the same per-item view a
// standalone get returns, ordered by submission sequence.
func (s *Service) GetResults(ctx context.Context, groupID string) ([]models.Result, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	records, err := s.checks.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	results := make([]models.Result, 0, len(records))
	for _, rec := range records {
		res, err := models.ToResult(rec)
		if err != nil {
			return nil, fmt.Errorf("map member %s: %w", rec.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// Recompute re-derives the aggregate from current member counts. Idempotent
// and safe to call redundantly after every member transition.
func (s *Service) Recompute(ctx context.Context, groupID string) error {
	counts, err := s.checks.CountByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	status := deriveStatus(counts)
	if err := s.groups.UpdateStatus(ctx, groupID, status); err != nil {
		return err
	}
	return nil
}

// deriveStatus is the aggregate invariant: any queued member means in
// progress, otherwise any error means failed, otherwise completed. A group
// whose members are all deleted is deleted.
func deriveStatus(counts checkstore.StatusCounts) domain.GroupStatus {
	switch {
	case counts.Total == 0:
		return domain.GroupQueued
	case counts.Deleted == counts.Total:
		return domain.GroupDeleted
	case counts.Queued > 0:
		return domain.GroupInProgress
	case counts.Errors > 0:
		return domain.GroupFailed
	default:
		return domain.GroupCompleted
	}
}

// SoftDelete marks every member and the group deleted in one transaction.
// Unknown or empty groups are a validation error; groups larger than the
// configured bound are rejected untouched.
func (s *Service) SoftDelete(ctx context.Context, groupID string) error {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.Status == domain.GroupDeleted {
		return fmt.Errorf("%w: group %s is already deleted", sentinel.ErrInvalidState, groupID)
	}

	counts, err := s.checks.CountByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	live := counts.Total - counts.Deleted
	if live == 0 {
		return fmt.Errorf("%w: group %s has no members to delete", sentinel.ErrInvalidState, groupID)
	}
	if live > s.deleteMax {
		return fmt.Errorf("%w: group %s has %d records, delete bound is %d", sentinel.ErrInvalidState, groupID, live, s.deleteMax)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.checks.SoftDeleteByGroup(ctx, groupID); err != nil {
			return err
		}
		return s.groups.UpdateStatus(ctx, groupID, domain.GroupDeleted)
	})
	if err != nil {
		return fmt.Errorf("soft delete group %s: %w", groupID, err)
	}

	s.auditor.Emit(ctx, audit.Event{
		Action:         audit.ActionGroupDeleted,
		GroupID:        groupID,
		LocalAuthority: group.LocalAuthority,
		Detail:         fmt.Sprintf("records=%d", live),
	})
	return nil
}
