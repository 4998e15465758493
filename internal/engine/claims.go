package engine

import (
	"fmt"

	"eligibility/internal/sources/modern"
)

// maxLiveUCAwards is the most live universal credit awards one citizen can
// hold. The upstream system enforces this; seeing more means corrupt data.
const maxLiveUCAwards = 3

// qualifiesForBenefit decides whether any returned claim entitles the
// household. The four standard categories qualify on an entitled decision
// alone; universal credit additionally requires a live, in-payment award
// whose combined take-home pay stays under the threshold for that number of
// live awards.
func qualifiesForBenefit(claims []modern.Claim, thresholds map[int]float64) bool {
	var ucLive []modern.Claim
	for _, c := range claims {
		switch c.Category {
		case modern.CategoryEmploymentSupport,
			modern.CategoryIncomeSupport,
			modern.CategoryJobseekers,
			modern.CategoryPensionCredit:
			if c.EntitlementDecision == modern.DecisionEntitled {
				return true
			}
		case modern.CategoryUniversalCredit:
			if c.AwardStatus == modern.AwardLive {
				ucLive = append(ucLive, c)
			}
		}
	}

	liveCount := len(ucLive)
	if liveCount == 0 {
		return false
	}
	if liveCount > maxLiveUCAwards {
		panic(fmt.Sprintf("claims evaluation: %d live universal credit awards for one citizen, maximum is %d", liveCount, maxLiveUCAwards))
	}

	threshold, ok := thresholds[liveCount]
	if !ok {
		return false
	}
	var totalTakeHome float64
	inPayment := false
	for _, c := range ucLive {
		totalTakeHome += c.TakeHomePay
		if c.InPayment {
			inPayment = true
		}
	}
	return inPayment && totalTakeHome < threshold
}
