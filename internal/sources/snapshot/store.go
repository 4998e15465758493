// Package snapshot looks up the locally replicated tax-authority and
// immigration-support tables. The engine owns the surname matching rule;
// these stores return candidate rows by (identifying number, date of birth).
package snapshot

import "context"

// Row is one replicated snapshot entry.
type Row struct {
	Number      string
	LastName    string
	DateOfBirth string // yyyy-mm-dd
}

// Store reads the local snapshot tables. Read-only: replication and bulk
// import are administrative collaborators.
type Store interface {
	// FindTax returns tax-authority rows for (NI number, date of birth).
	FindTax(ctx context.Context, nino, dateOfBirth string) ([]Row, error)

	// FindImmigration returns immigration-support rows for
	// (support number, date of birth).
	FindImmigration(ctx context.Context, number, dateOfBirth string) ([]Row, error)
}
