package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eligibility/internal/audit"
	"eligibility/internal/check/models"
	"eligibility/internal/conflict"
	"eligibility/internal/domain"
	"eligibility/internal/platform/config"
	"eligibility/internal/sources/legacy"
	"eligibility/internal/sources/modern"
	"eligibility/internal/sources/snapshot"
	"eligibility/pkg/platform/sentinel"
	"eligibility/pkg/requestcontext"
)

// surnamePrefixLen is how many leading characters of the surname must agree
// between a snapshot row and the request.
const surnamePrefixLen = 3

// runStandard resolves the snapshot-based benefit types: local tax snapshot
// first, external escalation only when the snapshot knows the person but not
// the surname, immigration snapshot with no escalation at all.
func (e *Engine) runStandard(ctx context.Context, rec *models.Record, p models.StandardPayload) (domain.CheckStatus, domain.Source, error) {
	if e.isHarnessSurname(p.LastName) {
		return harnessOutcome(p.IdentifyingNumber()), domain.SourceHarness, nil
	}

	if p.NationalInsuranceNumber != "" {
		rows, err := e.snapshots.FindTax(ctx, p.NationalInsuranceNumber, p.DateOfBirth)
		if err != nil {
			return domain.StatusError, domain.SourceHMRC, err
		}
		if surnameMatches(rows, p.LastName) {
			return domain.StatusEligible, domain.SourceHMRC, nil
		}
		return e.escalate(ctx, rec, p)
	}

	rows, err := e.snapshots.FindImmigration(ctx, p.ImmigrationSupportNumber, p.DateOfBirth)
	if err != nil {
		return domain.StatusError, domain.SourceHomeOffice, err
	}
	if surnameMatches(rows, p.LastName) {
		return domain.StatusEligible, domain.SourceHomeOffice, nil
	}
	return domain.StatusParentNotFound, domain.SourceHomeOffice, nil
}

func (e *Engine) isHarnessSurname(lastName string) bool {
	return e.cfg.HarnessSurname != "" && strings.EqualFold(lastName, e.cfg.HarnessSurname)
}

// surnameMatches applies the 3-character case-insensitive prefix rule. Rows
// may legitimately disagree on surname (name changes lag the replication),
// which is why a prefix is enough.
func surnameMatches(rows []snapshot.Row, lastName string) bool {
	req := normalisePrefix(lastName)
	for _, row := range rows {
		if normalisePrefix(row.LastName) == req {
			return true
		}
	}
	return false
}

func normalisePrefix(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > surnamePrefixLen {
		s = s[:surnamePrefixLen]
	}
	return s
}

// escalate settles a tax-snapshot miss through the configured external mode.
func (e *Engine) escalate(ctx context.Context, rec *models.Record, p models.StandardPayload) (domain.CheckStatus, domain.Source, error) {
	e.metrics.RecordEscalation(string(e.cfg.Escalation))
	switch e.cfg.Escalation {
	case config.EscalateModernOnly:
		outcome, err := e.checkModern(ctx, p)
		return outcome, domain.SourceDWP, err
	case config.EscalateBoth:
		return e.checkBoth(ctx, rec, p)
	default:
		outcome, err := e.checkLegacy(ctx, rec, p)
		return outcome, domain.SourceECS, err
	}
}

func (e *Engine) checkLegacy(ctx context.Context, rec *models.Record, p models.StandardPayload) (domain.CheckStatus, error) {
	resp, err := e.legacy.Check(ctx, legacy.Request{
		LastName:          p.LastName,
		DateOfBirth:       p.DateOfBirth,
		IdentifyingNumber: p.IdentifyingNumber(),
		BenefitType:       rec.Type,
		LocalAuthority:    requestcontext.LocalAuthority(ctx),
		CorrelationID:     e.correlationID(ctx),
	})
	if err != nil {
		return domain.StatusError, err
	}
	return interpretStandardTriad(resp), nil
}

func (e *Engine) checkModern(ctx context.Context, p models.StandardPayload) (domain.CheckStatus, error) {
	correlationID := e.correlationID(ctx)

	nino := strings.ToUpper(strings.TrimSpace(p.NationalInsuranceNumber))
	fragment := nino
	if len(nino) > 4 {
		fragment = nino[len(nino)-4:]
	}

	token, err := e.modern.MatchCitizen(ctx, modern.MatchRequest{
		LastName:     p.LastName,
		NinoFragment: fragment,
		DateOfBirth:  p.DateOfBirth,
	}, correlationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Definitive non-match from the citizen API.
			return domain.StatusNotEligible, nil
		}
		return domain.StatusError, err
	}

	from := requestcontext.Now(ctx).AddDate(0, -3, 0)
	claims, err := e.modern.Claims(ctx, token, from, correlationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.StatusNotEligible, nil
		}
		return domain.StatusError, err
	}

	if qualifiesForBenefit(claims, e.cfg.UCTakeHomeThresholds) {
		return domain.StatusEligible, nil
	}
	return domain.StatusNotEligible, nil
}

// checkBoth fans out to both external services concurrently, joins, and
// treats the legacy answer as authoritative. Disagreements leave a conflict
// record for manual investigation.
func (e *Engine) checkBoth(ctx context.Context, rec *models.Record, p models.StandardPayload) (domain.CheckStatus, domain.Source, error) {
	correlationID := e.correlationID(ctx)
	ctx = requestcontext.WithRequestID(ctx, correlationID)

	var (
		legacyOutcome domain.CheckStatus
		modernOutcome domain.CheckStatus
		legacyErr     error
		modernErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		legacyOutcome, legacyErr = e.checkLegacy(gctx, rec, p)
		return nil
	})
	g.Go(func() error {
		modernOutcome, modernErr = e.checkModern(gctx, p)
		return nil
	})
	_ = g.Wait()

	// The legacy gateway is authoritative: without its answer there is no
	// conclusive outcome, so the run retries.
	if legacyErr != nil || legacyOutcome == domain.StatusError {
		return domain.StatusError, domain.SourceECS, legacyErr
	}
	if modernErr != nil || modernOutcome == domain.StatusError {
		e.logger.Warn("modern source unavailable during dual-source run, using legacy answer",
			zap.String("check_id", rec.ID), zap.Error(modernErr))
		return legacyOutcome, domain.SourceECS, nil
	}

	if legacyOutcome == modernOutcome {
		return legacyOutcome, domain.SourceECS, nil
	}

	// Both answered and disagree: record the conflict after both completed,
	// then keep the legacy answer tagged as conflicted.
	e.metrics.RecordConflict()
	confRec := &conflict.Record{
		CheckID:           rec.ID,
		CorrelationID:     correlationID,
		LegacyOutcome:     legacyOutcome,
		ModernOutcome:     modernOutcome,
		LastName:          p.LastName,
		DateOfBirth:       p.DateOfBirth,
		IdentifyingNumber: p.IdentifyingNumber(),
		Created:           time.Now(),
	}
	if err := e.conflicts.Append(ctx, confRec); err != nil {
		return domain.StatusError, domain.SourceConflict, err
	}
	e.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionConflictLogged,
		CheckID:   rec.ID,
		RequestID: correlationID,
		Detail:    "legacy=" + string(legacyOutcome) + " modern=" + string(modernOutcome),
	})
	return legacyOutcome, domain.SourceConflict, nil
}
