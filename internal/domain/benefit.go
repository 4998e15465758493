package domain

import "fmt"

// BenefitType discriminates which verification pipeline a check runs through.
type BenefitType string

const (
	FreeSchoolMeals        BenefitType = "FreeSchoolMeals"
	TwoYearOffer           BenefitType = "TwoYearOffer"
	EarlyYearsPupilPremium BenefitType = "EarlyYearsPupilPremium"
	WorkingFamilies        BenefitType = "WorkingFamilies"
)

// ParseBenefitType validates a wire-format benefit type.
func ParseBenefitType(s string) (BenefitType, error) {
	switch BenefitType(s) {
	case FreeSchoolMeals, TwoYearOffer, EarlyYearsPupilPremium, WorkingFamilies:
		return BenefitType(s), nil
	}
	return "", fmt.Errorf("unknown benefit type %q", s)
}

// UsesStandardPipeline reports whether the type resolves via the standard
// snapshot-then-escalate pipeline rather than the working families one.
func (t BenefitType) UsesStandardPipeline() bool {
	return t != WorkingFamilies
}

// Source identifies which verification path produced an outcome.
type Source string

const (
	SourceHMRC       Source = "HMRC"       // local tax authority snapshot
	SourceHomeOffice Source = "HomeOffice" // local immigration support snapshot
	SourceECS        Source = "ECS"        // legacy synchronous gateway
	SourceDWP        Source = "DWP"        // modern citizen match + claims API
	SourceEventFeed  Source = "EventFeed"  // working families registration events
	SourceConflict   Source = "Conflict"   // dual-source run that disagreed
	SourceHarness    Source = "Harness"    // deterministic test sentinel
	SourceCache      Source = "Cache"      // outcome reused from a prior check
)
