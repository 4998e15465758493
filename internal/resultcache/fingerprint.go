package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"eligibility/internal/domain"
)

// Fingerprint derives the deterministic dedup key for a check's identifying
// inputs. Surname and identifying number are uppercased so casing never
// splits the cache, and the benefit type is part of the hashed input so
// identical people checked for different benefits never collide.
//
// Exactly one identifying number goes in: the NI number when present,
// otherwise the immigration support number (for working families callers pass
// the eligibility code joined with the NI number).
func Fingerprint(benefitType domain.BenefitType, lastName, dateOfBirth, identifyingNumber string) string {
	input := strings.Join([]string{
		string(benefitType),
		strings.ToUpper(strings.TrimSpace(lastName)),
		dateOfBirth,
		strings.ToUpper(strings.TrimSpace(identifyingNumber)),
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
