package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
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

// =============================================================================
// Check Service Test Suite
// =============================================================================

type CheckServiceSuite struct {
	suite.Suite
	checks  *checkstore.InMemoryStore
	cache   *resultcache.Cache
	sink    *resultcache.InMemoryStore
	q       *queue.InMemoryQueue
	auditor *audit.MemoryPublisher
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestCheckServiceSuite(t *testing.T) {
	suite.Run(t, new(CheckServiceSuite))
}

func (s *CheckServiceSuite) SetupTest() {
	s.checks = checkstore.NewMemory()
	s.sink = resultcache.NewMemoryStore()
	s.auditor = audit.NewMemoryPublisher()
	s.cache = resultcache.New(s.sink, s.auditor, 28, nil)
	s.q = queue.NewMemory()
	s.service = New(s.checks, s.cache, s.q, tx.NopRunner{}, s.auditor, zap.NewNop())
	s.now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *CheckServiceSuite) submission() Submission {
	return Submission{
		ClientIdentifier: "pupil-42",
		Type:             domain.FreeSchoolMeals,
		Payload: models.StandardPayload{
			LastName:                "Simpson",
			DateOfBirth:             "2015-04-01",
			NationalInsuranceNumber: "AB123456C",
		},
	}
}

func (s *CheckServiceSuite) TestSubmit() {
	s.Run("cache miss enqueues a queued check", func() {
		result, err := s.service.Submit(s.ctx, s.submission())
		s.Require().NoError(err)
		s.Equal(domain.StatusQueued, result.Status)
		s.Equal("pupil-42", result.ClientIdentifier)

		msgs, err := s.q.Dequeue(s.ctx, 1)
		s.Require().NoError(err)
		s.Require().Len(msgs, 1)
		s.Equal(result.ID, msgs[0].CheckID)
	})

	s.Run("cache hit settles without enqueueing", func() {
		fp := resultcache.Fingerprint(domain.FreeSchoolMeals, "Simpson", "2015-04-01", "AB123456C")
		_, err := s.cache.Record(s.ctx, fp, domain.StatusEligible, domain.SourceHMRC, "earlier-check")
		s.Require().NoError(err)

		result, err := s.service.Submit(s.ctx, s.submission())
		s.Require().NoError(err)
		s.Equal(domain.StatusEligible, result.Status)

		stored, err := s.checks.GetByID(s.ctx, result.ID)
		s.Require().NoError(err)
		s.NotNil(stored.ResultCacheID, "reused outcome must be attributed to the cache entry")

		msgs, err := s.q.Dequeue(s.ctx, 10)
		s.Require().NoError(err)
		s.Len(msgs, 1, "only the earlier cache-miss submission is on the queue")
	})

	s.Run("invalid payload is rejected", func() {
		sub := s.submission()
		sub.Payload = models.StandardPayload{LastName: "Simpson"}
		_, err := s.service.Submit(s.ctx, sub)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("both identifying numbers are rejected", func() {
		sub := s.submission()
		sub.Payload = models.StandardPayload{
			LastName:                 "Simpson",
			DateOfBirth:              "2015-04-01",
			NationalInsuranceNumber:  "AB123456C",
			ImmigrationSupportNumber: "17-000001",
		}
		_, err := s.service.Submit(s.ctx, sub)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *CheckServiceSuite) TestSubmissionFingerprintMatchesSettleFingerprint() {
	// The submission-side lookup and the engine's settle-side record must hit
	// the same key or the cache can never serve a repeat.
	raw, err := models.EncodePayload(s.submission().Payload)
	s.Require().NoError(err)
	fp, err := engine.FingerprintForSubmission(domain.FreeSchoolMeals, raw)
	s.Require().NoError(err)
	s.Equal(resultcache.Fingerprint(domain.FreeSchoolMeals, "Simpson", "2015-04-01", "AB123456C"), fp)
}

func (s *CheckServiceSuite) TestGet() {
	result, err := s.service.Submit(s.ctx, s.submission())
	s.Require().NoError(err)

	got, err := s.service.Get(s.ctx, result.ID)
	s.NoError(err)
	s.Equal(result.ID, got.ID)
	s.Equal("Simpson", got.LastName)

	_, err = s.service.Get(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CheckServiceSuite) TestUpdateStatus() {
	result, err := s.service.Submit(s.ctx, s.submission())
	s.Require().NoError(err)

	s.Run("override settles a queued check", func() {
		got, err := s.service.UpdateStatus(s.ctx, result.ID, domain.StatusNotEligible)
		s.NoError(err)
		s.Equal(domain.StatusNotEligible, got.Status)
	})

	s.Run("settled check cannot return to queued", func() {
		_, err := s.service.UpdateStatus(s.ctx, result.ID, domain.StatusQueued)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("deleted check disappears from reads", func() {
		_, err := s.service.UpdateStatus(s.ctx, result.ID, domain.StatusDeleted)
		s.NoError(err)

		_, err = s.service.Get(s.ctx, result.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
