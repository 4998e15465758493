package engine

import (
	"context"
	"strings"
	"time"

	"eligibility/internal/check/models"
	"eligibility/internal/domain"
	"eligibility/internal/sources/events"
	"eligibility/internal/sources/legacy"
	"eligibility/pkg/requestcontext"
)

// runWorkingFamilies resolves a working families check. The registration
// event feed is the normal source; authorities still on the legacy gateway
// for this benefit use it instead. notFound is only ever returned when no
// event or gateway registration exists at all.
func (e *Engine) runWorkingFamilies(ctx context.Context, rec *models.Record, p models.WorkingFamiliesPayload) (domain.CheckStatus, domain.Source, error) {
	now := requestcontext.Now(ctx)

	if e.cfg.HarnessCodePrefix != "" && strings.HasPrefix(p.EligibilityCode, e.cfg.HarnessCodePrefix) {
		ev := fabricateHarnessEvent(p.EligibilityCode, e.cfg.HarnessCodePrefix, now)
		return windowVerdict(now, ev.ValidityStart, ev.GracePeriodEnd), domain.SourceHarness, nil
	}

	if e.gateway.LegacyWorkingFamilies {
		resp, err := e.legacy.Check(ctx, legacy.Request{
			LastName:          p.LastName,
			DateOfBirth:       p.DateOfBirth,
			IdentifyingNumber: p.EligibilityCode,
			BenefitType:       rec.Type,
			LocalAuthority:    requestcontext.LocalAuthority(ctx),
			CorrelationID:     e.correlationID(ctx),
		})
		if err != nil {
			return domain.StatusError, domain.SourceECS, err
		}
		return interpretWorkingFamiliesTriad(resp, now), domain.SourceECS, nil
	}

	found, err := e.events.FindLatest(ctx, p.EligibilityCode, p.NationalInsuranceNumber, p.DateOfBirth, p.LastName)
	if err != nil {
		return domain.StatusError, domain.SourceEventFeed, err
	}
	if len(found) == 0 {
		return domain.StatusNotFound, domain.SourceEventFeed, nil
	}

	start, graceEnd := mergeRegistrations(found, now)
	return windowVerdict(now, start, graceEnd), domain.SourceEventFeed, nil
}

// mergeRegistrations collapses the retrieved events, newest first, into one
// validity span. Adjacent registration periods are treated as continuous: an
// earlier event whose validity end is still in the future contributes its
// start date, and the start keeps extending backward while it falls inside
// the next event's grace period. The grace end always comes from the most
// recent event.
func mergeRegistrations(evs []events.Event, now time.Time) (start, graceEnd time.Time) {
	start = evs[0].ValidityStart
	graceEnd = evs[0].GracePeriodEnd

	if len(evs) > 1 && dateOnly(evs[1].ValidityEnd).After(dateOnly(now)) {
		start = evs[1].ValidityStart
	}
	for i := 0; i+1 < len(evs); i++ {
		next := evs[i+1]
		s := dateOnly(start)
		if s.Before(dateOnly(next.ValidityStart)) || s.After(dateOnly(next.GracePeriodEnd)) {
			break
		}
		start = next.ValidityStart
	}
	return start, graceEnd
}

// windowVerdict applies the eligibility window rule: the current date must
// fall within [start, graceEnd], both ends inclusive.
func windowVerdict(now, start, graceEnd time.Time) domain.CheckStatus {
	if start.IsZero() || graceEnd.IsZero() {
		return domain.StatusNotEligible
	}
	today := dateOnly(now)
	if today.Before(dateOnly(start)) || today.After(dateOnly(graceEnd)) {
		return domain.StatusNotEligible
	}
	return domain.StatusEligible
}

// fabricateHarnessEvent synthesizes a registration event for synthetic test
// codes. The digit after the harness prefix selects the window: "1" yields an
// expired registration, anything else one that covers today.
func fabricateHarnessEvent(code, prefix string, now time.Time) events.Event {
	today := dateOnly(now)
	if strings.HasPrefix(strings.TrimPrefix(code, prefix), "1") {
		return events.Event{
			ValidityStart:  today.AddDate(0, -6, 0),
			ValidityEnd:    today.AddDate(0, -3, 0),
			GracePeriodEnd: today.AddDate(0, -2, 0),
		}
	}
	return events.Event{
		ValidityStart:  today.AddDate(0, -1, 0),
		ValidityEnd:    today.AddDate(0, 2, 0),
		GracePeriodEnd: today.AddDate(0, 3, 0),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
