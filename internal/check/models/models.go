package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eligibility/internal/domain"
)

// Record is one verification request. Records are never physically removed;
// deletion is the StatusDeleted value.
type Record struct {
	ID               string
	GroupID          string // empty for standalone checks
	ClientIdentifier string // caller-supplied reference, opaque to the engine
	Type             domain.BenefitType
	Status           domain.CheckStatus
	Payload          json.RawMessage
	ResultCacheID    *int64
	// Sequence orders a record inside its bulk group for batch display.
	Sequence int
	// Version guards concurrent status writes; every successful update
	// increments it.
	Version int
	Created time.Time
	Updated time.Time
}

// StandardPayload carries the identifying fields for the snapshot-based
// benefit types. Exactly one of the two numbers is populated.
type StandardPayload struct {
	LastName                 string `json:"lastName"`
	DateOfBirth              string `json:"dateOfBirth"` // yyyy-mm-dd
	NationalInsuranceNumber  string `json:"nationalInsuranceNumber,omitempty"`
	ImmigrationSupportNumber string `json:"immigrationSupportNumber,omitempty"`
}

// IdentifyingNumber returns the authoritative number: the NI number when
// present, otherwise the immigration support number.
func (p StandardPayload) IdentifyingNumber() string {
	if p.NationalInsuranceNumber != "" {
		return p.NationalInsuranceNumber
	}
	return p.ImmigrationSupportNumber
}

func (p StandardPayload) Validate() error {
	if strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("last name is required")
	}
	if p.DateOfBirth == "" {
		return fmt.Errorf("date of birth is required")
	}
	if _, err := time.Parse("2006-01-02", p.DateOfBirth); err != nil {
		return fmt.Errorf("date of birth must be yyyy-mm-dd: %w", err)
	}
	if p.NationalInsuranceNumber == "" && p.ImmigrationSupportNumber == "" {
		return fmt.Errorf("either national insurance number or immigration support number is required")
	}
	if p.NationalInsuranceNumber != "" && p.ImmigrationSupportNumber != "" {
		return fmt.Errorf("national insurance number and immigration support number are mutually exclusive")
	}
	return nil
}

// WorkingFamiliesPayload carries the identifying fields for a working
// families check: the eligibility code issued at registration plus the
// parent's details.
type WorkingFamiliesPayload struct {
	EligibilityCode         string `json:"eligibilityCode"`
	NationalInsuranceNumber string `json:"nationalInsuranceNumber"`
	LastName                string `json:"lastName,omitempty"`
	DateOfBirth             string `json:"dateOfBirth"` // child's, yyyy-mm-dd
}

func (p WorkingFamiliesPayload) Validate() error {
	if p.EligibilityCode == "" {
		return fmt.Errorf("eligibility code is required")
	}
	if p.NationalInsuranceNumber == "" {
		return fmt.Errorf("national insurance number is required")
	}
	if p.DateOfBirth == "" {
		return fmt.Errorf("date of birth is required")
	}
	if _, err := time.Parse("2006-01-02", p.DateOfBirth); err != nil {
		return fmt.Errorf("date of birth must be yyyy-mm-dd: %w", err)
	}
	return nil
}

// Payload is the tagged union over benefit types. The stored JSON decodes to
// exactly one variant, selected by Record.Type.
type Payload interface {
	Validate() error
}

// DecodePayload maps stored payload bytes to the typed variant for the
// benefit type.
func DecodePayload(t domain.BenefitType, raw []byte) (Payload, error) {
	switch {
	case t.UsesStandardPipeline():
		var p StandardPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode standard payload: %w", err)
		}
		return p, nil
	default:
		var p WorkingFamiliesPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode working families payload: %w", err)
		}
		return p, nil
	}
}

// EncodePayload serialises a typed payload for storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

// Result is the caller-facing view of a settled or pending check. Bulk
// results reuse the same shape with Sequence populated.
type Result struct {
	ID                       string             `json:"id"`
	ClientIdentifier         string             `json:"clientIdentifier,omitempty"`
	Type                     domain.BenefitType `json:"type"`
	Status                   domain.CheckStatus `json:"status"`
	LastName                 string             `json:"lastName,omitempty"`
	DateOfBirth              string             `json:"dateOfBirth,omitempty"`
	NationalInsuranceNumber  string             `json:"nationalInsuranceNumber,omitempty"`
	ImmigrationSupportNumber string             `json:"immigrationSupportNumber,omitempty"`
	EligibilityCode          string             `json:"eligibilityCode,omitempty"`
	Sequence                 int                `json:"sequence,omitempty"`
	Created                  time.Time          `json:"created"`
}

// ToResult reconstructs the per-item DTO from a stored record.
func ToResult(rec *Record) (Result, error) {
	payload, err := DecodePayload(rec.Type, rec.Payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		ID:               rec.ID,
		ClientIdentifier: rec.ClientIdentifier,
		Type:             rec.Type,
		Status:           rec.Status,
		Sequence:         rec.Sequence,
		Created:          rec.Created,
	}
	switch p := payload.(type) {
	case StandardPayload:
		res.LastName = p.LastName
		res.DateOfBirth = p.DateOfBirth
		res.NationalInsuranceNumber = p.NationalInsuranceNumber
		res.ImmigrationSupportNumber = p.ImmigrationSupportNumber
	case WorkingFamiliesPayload:
		res.LastName = p.LastName
		res.DateOfBirth = p.DateOfBirth
		res.NationalInsuranceNumber = p.NationalInsuranceNumber
		res.EligibilityCode = p.EligibilityCode
	}
	return res, nil
}
