package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"eligibility/internal/audit"
	"eligibility/internal/check/models"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/conflict"
	"eligibility/internal/domain"
	"eligibility/internal/platform/config"
	"eligibility/internal/resultcache"
	"eligibility/internal/sources/events"
	"eligibility/internal/sources/legacy"
	"eligibility/internal/sources/modern"
	"eligibility/internal/sources/snapshot"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/platform/tx"
	"eligibility/pkg/requestcontext"
)

// =============================================================================
// Engine Test Suite
// =============================================================================
// Unit tests cover the full pipeline semantics against in-memory collaborators:
// the rollback-to-queued contract, cache attribution, and source selection are
// hard to exercise precisely through the HTTP surface.

type fakeLegacy struct {
	resp *legacy.Response
	err  error
	seen []legacy.Request
}

func (f *fakeLegacy) Check(_ context.Context, req legacy.Request) (*legacy.Response, error) {
	f.seen = append(f.seen, req)
	return f.resp, f.err
}

type fakeModern struct {
	matchErr  error
	claims    []modern.Claim
	claimsErr error
}

func (f *fakeModern) MatchCitizen(context.Context, modern.MatchRequest, string) (string, error) {
	if f.matchErr != nil {
		return "", f.matchErr
	}
	return "token-1", nil
}

func (f *fakeModern) Claims(context.Context, string, time.Time, string) ([]modern.Claim, error) {
	return f.claims, f.claimsErr
}

type EngineSuite struct {
	suite.Suite
	checks    *checkstore.InMemoryStore
	cacheSink *resultcache.InMemoryStore
	cache     *resultcache.Cache
	snapshots *snapshot.InMemoryStore
	eventFeed *events.InMemoryStore
	conflicts *conflict.InMemoryStore
	auditor   *audit.MemoryPublisher
	legacy    *fakeLegacy
	modern    *fakeModern
	cfg       config.EngineConfig
	gateway   config.GatewayConfig
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.checks = checkstore.NewMemory()
	s.cacheSink = resultcache.NewMemoryStore()
	s.auditor = audit.NewMemoryPublisher()
	s.cache = resultcache.New(s.cacheSink, s.auditor, 28, nil)
	s.snapshots = snapshot.NewMemory()
	s.eventFeed = events.NewMemory()
	s.conflicts = conflict.NewMemory()
	s.legacy = &fakeLegacy{}
	s.modern = &fakeModern{}
	s.cfg = config.EngineConfig{
		HashCheckDays:     28,
		Escalation:        config.EscalateLegacyOnly,
		HarnessSurname:    "XTEST",
		HarnessCodePrefix: "99",
		BulkDeleteMax:     250,
		UCTakeHomeThresholds: map[int]float64{
			1: 2539.99,
			2: 5078.00,
			3: 7616.00,
		},
	}
	s.gateway = config.GatewayConfig{}
}

func (s *EngineSuite) newEngine() *Engine {
	return New(Deps{
		Checks:    s.checks,
		Cache:     s.cache,
		Snapshots: s.snapshots,
		Legacy:    s.legacy,
		Modern:    s.modern,
		Events:    s.eventFeed,
		Conflicts: s.conflicts,
		Auditor:   s.auditor,
		Runner:    tx.NopRunner{},
		Engine:    s.cfg,
		Gateway:   s.gateway,
		Logger:    zap.NewNop(),
	})
}

func (s *EngineSuite) createCheck(benefitType domain.BenefitType, payload models.Payload) *models.Record {
	raw, err := models.EncodePayload(payload)
	s.Require().NoError(err)
	rec := &models.Record{
		ID:      "check-" + string(benefitType),
		Type:    benefitType,
		Status:  domain.StatusQueued,
		Payload: raw,
		Created: time.Now(),
	}
	s.Require().NoError(s.checks.Create(context.Background(), rec))
	return rec
}

func standardPayload() models.StandardPayload {
	return models.StandardPayload{
		LastName:                "Simpson",
		DateOfBirth:             "2015-04-01",
		NationalInsuranceNumber: "AB123456C",
	}
}

// =============================================================================
// Settlement and Rollback
// =============================================================================

func (s *EngineSuite) TestProcessSettlesFromTaxSnapshot() {
	s.snapshots.AddTax(snapshot.Row{Number: "AB123456C", LastName: "SIMPSON", DateOfBirth: "2015-04-01"})
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status)

	stored, err := s.checks.GetByID(context.Background(), rec.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusEligible, stored.Status)
	s.Require().NotNil(stored.ResultCacheID, "settled check must be attributed to a cache entry")
	s.Equal(2, stored.Version)
}

func (s *EngineSuite) TestProcessRollsBackOnUnrecognisedTriad() {
	s.legacy.resp = &legacy.Response{Status: "banana"}
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusQueued, status)

	stored, err := s.checks.GetByID(context.Background(), rec.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusQueued, stored.Status, "record must be left untouched for retry")
	s.Equal(1, stored.Version)
}

func (s *EngineSuite) TestProcessRollsBackOnGatewayFailure() {
	s.legacy.err = sentinel.ErrUnavailable
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusQueued, status)
}

func (s *EngineSuite) TestProcessReplayIsNoOp() {
	s.snapshots.AddTax(snapshot.Row{Number: "AB123456C", LastName: "SIMPSON", DateOfBirth: "2015-04-01"})
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())
	eng := s.newEngine()

	_, err := eng.Process(context.Background(), rec.ID)
	s.Require().NoError(err)
	entries := len(s.cacheEntries())

	status, err := eng.Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status)
	s.Len(s.cacheEntries(), entries, "replay must not append another cache entry")
}

func (s *EngineSuite) TestProcessUnknownCheck() {
	_, err := s.newEngine().Process(context.Background(), "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *EngineSuite) cacheEntries() []resultcache.Entry {
	return s.cacheSink.Entries()
}

// =============================================================================
// Source Selection
// =============================================================================

func (s *EngineSuite) TestSurnameMismatchEscalatesToLegacy() {
	s.snapshots.AddTax(snapshot.Row{Number: "AB123456C", LastName: "FLANDERS", DateOfBirth: "2015-04-01"})
	s.legacy.resp = &legacy.Response{Status: "0", ErrorCode: "0", Qualifier: "no trace - check data"}
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusParentNotFound, status)
	s.Len(s.legacy.seen, 1)
}

func (s *EngineSuite) TestImmigrationPathNeverEscalates() {
	payload := models.StandardPayload{
		LastName:                 "Simpson",
		DateOfBirth:              "2015-04-01",
		ImmigrationSupportNumber: "17-000001",
	}
	rec := s.createCheck(domain.FreeSchoolMeals, payload)

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusParentNotFound, status)
	s.Empty(s.legacy.seen, "immigration path must not call the gateway")
}

func (s *EngineSuite) TestModernOnlyEscalation() {
	s.cfg.Escalation = config.EscalateModernOnly
	s.modern.claims = []modern.Claim{{
		Category:            modern.CategoryIncomeSupport,
		EntitlementDecision: modern.DecisionEntitled,
	}}
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status)
	s.Empty(s.legacy.seen)
}

func (s *EngineSuite) TestModernNonMatchIsNotEligible() {
	s.cfg.Escalation = config.EscalateModernOnly
	s.modern.matchErr = sentinel.ErrNotFound
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusNotEligible, status)
}

func (s *EngineSuite) TestHarnessSurnameShortCircuits() {
	s.snapshots.AddTax(snapshot.Row{Number: "NE999999A", LastName: "XTEST", DateOfBirth: "2015-04-01"})
	payload := models.StandardPayload{
		LastName:                "xtest",
		DateOfBirth:             "2015-04-01",
		NationalInsuranceNumber: "NE999999A",
	}
	rec := s.createCheck(domain.FreeSchoolMeals, payload)

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusNotEligible, status)
	s.Empty(s.legacy.seen, "harness checks must not consult real sources")
}

// =============================================================================
// Dual-Source Conflict Detection
// =============================================================================

func (s *EngineSuite) TestDualSourceAgreement() {
	s.cfg.Escalation = config.EscalateBoth
	s.legacy.resp = &legacy.Response{Status: "1"}
	s.modern.claims = []modern.Claim{{
		Category:            modern.CategoryPensionCredit,
		EntitlementDecision: modern.DecisionEntitled,
	}}
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status)
	s.Empty(s.conflicts.Records())
}

func (s *EngineSuite) TestDualSourceDisagreementRecordsConflict() {
	s.cfg.Escalation = config.EscalateBoth
	s.legacy.resp = &legacy.Response{Status: "1"}
	s.modern.matchErr = sentinel.ErrNotFound
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status, "legacy answer is authoritative")

	records := s.conflicts.Records()
	s.Require().Len(records, 1)
	s.Equal(domain.StatusEligible, records[0].LegacyOutcome)
	s.Equal(domain.StatusNotEligible, records[0].ModernOutcome)

	entries := s.cacheEntries()
	s.Require().Len(entries, 1)
	s.Equal(domain.SourceConflict, entries[0].Source)
}

func (s *EngineSuite) TestDualSourceLegacyFailureRollsBack() {
	s.cfg.Escalation = config.EscalateBoth
	s.legacy.err = sentinel.ErrUnavailable
	s.modern.claims = nil
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusQueued, status)
	s.Empty(s.conflicts.Records())
}

func (s *EngineSuite) TestDualSourceModernFailureUsesLegacy() {
	s.cfg.Escalation = config.EscalateBoth
	s.legacy.resp = &legacy.Response{Status: "0", ErrorCode: "0"}
	s.modern.matchErr = sentinel.ErrUnavailable
	rec := s.createCheck(domain.FreeSchoolMeals, standardPayload())

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusNotEligible, status)
	s.Empty(s.conflicts.Records(), "one-sided failure is not a conflict")
}

// =============================================================================
// Working Families
// =============================================================================

func (s *EngineSuite) TestWorkingFamiliesNoEventsIsNotFound() {
	rec := s.createCheck(domain.WorkingFamilies, models.WorkingFamiliesPayload{
		EligibilityCode:         "50012345",
		NationalInsuranceNumber: "AB123456C",
		DateOfBirth:             "2023-01-15",
	})

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusNotFound, status)
}

func (s *EngineSuite) TestWorkingFamiliesContiguousMerge() {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	// The newest registration starts next week, but the earlier one is still
	// valid: the adjacent periods merge into one span, so the check today is
	// eligible on the earlier start date and the newer grace end.
	s.eventFeed.Add(
		events.Event{
			EligibilityCode:  "50012345",
			ParentNino:       "AB123456C",
			ChildDateOfBirth: "2023-01-15",
			ValidityStart:    today.AddDate(0, 0, 7),
			ValidityEnd:      today.AddDate(0, 3, 0),
			GracePeriodEnd:   today.AddDate(0, 4, 0),
			SubmittedAt:      now.AddDate(0, 0, -10),
		},
		events.Event{
			EligibilityCode:  "50012345",
			ParentNino:       "AB123456C",
			ChildDateOfBirth: "2023-01-15",
			ValidityStart:    today.AddDate(0, -6, 0),
			ValidityEnd:      today.AddDate(0, 0, 10),
			GracePeriodEnd:   today.AddDate(0, 1, 0),
			SubmittedAt:      now.AddDate(0, -6, 0),
		},
	)
	rec := s.createCheck(domain.WorkingFamilies, models.WorkingFamiliesPayload{
		EligibilityCode:         "50012345",
		NationalInsuranceNumber: "AB123456C",
		DateOfBirth:             "2023-01-15",
	})

	ctx := requestcontext.WithTime(context.Background(), now)
	status, err := s.newEngine().Process(ctx, rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusEligible, status)
}

func (s *EngineSuite) TestWorkingFamiliesViaLegacyGateway() {
	s.gateway.LegacyWorkingFamilies = true
	s.legacy.resp = &legacy.Response{Status: "0", ErrorCode: "0"}
	rec := s.createCheck(domain.WorkingFamilies, models.WorkingFamiliesPayload{
		EligibilityCode:         "50012345",
		NationalInsuranceNumber: "AB123456C",
		DateOfBirth:             "2023-01-15",
	})

	status, err := s.newEngine().Process(context.Background(), rec.ID)
	s.NoError(err)
	s.Equal(domain.StatusNotFound, status)
	s.Require().Len(s.legacy.seen, 1)
	s.Equal("50012345", s.legacy.seen[0].IdentifyingNumber)
}

// =============================================================================
// Cache Semantics
// =============================================================================

func (s *EngineSuite) TestErrorOutcomeNeverCached() {
	// Undecodable payload settles straight to error without a cache entry.
	broken := &models.Record{
		ID:      "broken",
		Type:    domain.FreeSchoolMeals,
		Status:  domain.StatusQueued,
		Payload: json.RawMessage(`{"lastName":`),
		Created: time.Now(),
	}
	s.Require().NoError(s.checks.Create(context.Background(), broken))

	status, err := s.newEngine().Process(context.Background(), broken.ID)
	s.NoError(err)
	s.Equal(domain.StatusError, status)
	s.Empty(s.cacheEntries())
}
