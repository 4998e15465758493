package engine

import (
	"strings"

	"eligibility/internal/domain"
)

// harnessOutcome maps a synthetic identifying number to a fixed outcome, so
// automated callers can exercise every terminal status without touching a
// real source. The leading two characters select the outcome.
func harnessOutcome(identifyingNumber string) domain.CheckStatus {
	n := strings.ToUpper(strings.TrimSpace(identifyingNumber))
	switch {
	case strings.HasPrefix(n, "NE"):
		return domain.StatusNotEligible
	case strings.HasPrefix(n, "PN"):
		return domain.StatusParentNotFound
	case strings.HasPrefix(n, "NF"):
		return domain.StatusNotFound
	default:
		return domain.StatusEligible
	}
}
