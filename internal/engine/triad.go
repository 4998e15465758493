package engine

import (
	"strings"
	"time"

	"eligibility/internal/domain"
	"eligibility/internal/sources/legacy"
)

const gatewayDateFormat = "2006-01-02"

// interpretStandardTriad maps the gateway's status/error/qualifier triad for
// the snapshot-backed benefit types. Anything outside the known combinations
// is an error, which leaves the check queued for retry.
func interpretStandardTriad(resp *legacy.Response) domain.CheckStatus {
	if resp == nil {
		return domain.StatusError
	}
	status := strings.TrimSpace(resp.Status)
	errCode := strings.TrimSpace(resp.ErrorCode)
	qualifier := strings.ToLower(strings.TrimSpace(resp.Qualifier))

	if status == "1" {
		return domain.StatusEligible
	}
	if status == "0" && errCode == "0" {
		switch qualifier {
		case "", "pending", "manual":
			return domain.StatusNotEligible
		case "no trace - check data":
			return domain.StatusParentNotFound
		}
	}
	return domain.StatusError
}

// interpretWorkingFamiliesTriad maps the gateway's working families variant,
// where a positive answer carries the registration window as date strings.
func interpretWorkingFamiliesTriad(resp *legacy.Response, now time.Time) domain.CheckStatus {
	if resp == nil {
		return domain.StatusError
	}
	status := strings.TrimSpace(resp.Status)
	errCode := strings.TrimSpace(resp.ErrorCode)
	qualifier := strings.TrimSpace(resp.Qualifier)

	if status == "1" {
		start, startErr := time.Parse(gatewayDateFormat, resp.ValidityStart)
		graceEnd, graceErr := time.Parse(gatewayDateFormat, resp.GracePeriodEnd)
		if startErr != nil || graceErr != nil {
			return domain.StatusError
		}
		return windowVerdict(now, start, graceEnd)
	}
	if status == "0" && errCode == "0" && qualifier == "" {
		if resp.ValidityStart == "" && resp.ValidityEnd == "" && resp.GracePeriodEnd == "" {
			return domain.StatusNotFound
		}
		// The gateway knows the registration but it does not entitle anyone.
		return domain.StatusNotEligible
	}
	return domain.StatusError
}
