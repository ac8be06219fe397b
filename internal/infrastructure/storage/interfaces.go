package storage

import (
	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing with the
// in-memory mock straightforward.
type Repository interface {
	CardRepository
	TransactionRepository
	CompanyRepository
	CarbonRepository
	RunRepository
	Close() error
}

// CardRepository handles card persistence
type CardRepository interface {
	// FindCardByFingerprint looks up a card by its upsert identity,
	// returning (nil, nil) when absent
	FindCardByFingerprint(fp ingest.CardFingerprint) (*ingest.Card, error)

	// InsertCard persists a newly created card
	InsertCard(card *ingest.Card) error

	// UpdateCard persists the mutable fields of an existing card
	UpdateCard(card *ingest.Card) error
}

// TransactionRepository handles idempotent transaction persistence
type TransactionRepository interface {
	// SaveTransaction upserts by fingerprint; done fires exactly once
	// with "new" or "update" unless the record fails validation
	SaveTransaction(rec *ingest.TransactionRecord, done func(ingest.SaveOutcome)) error
}

// CompanyRepository handles the company directory and match cache.
// It satisfies matcher.Store.
type CompanyRepository interface {
	ListCompanies() ([]matcher.Company, error)
	ListNameMatches() ([]matcher.NameMatch, error)
	InsertNameMatchIfAbsent(m matcher.NameMatch) (bool, error)
	HasManualMatches() (bool, error)
	HasAutomaticMatches() (bool, error)
	MergeUnmatchedCounts(counts map[string]int) error
}

// CarbonRepository handles carbon reference data. It satisfies carbon.Store.
type CarbonRepository interface {
	ListCarbonMappings() ([]carbon.Mapping, error)
	ImportCarbonMappings(mappings []carbon.Mapping) error
}

// RunRepository handles run summary persistence
type RunRepository interface {
	SaveRunSummary(summary *RunSummary) error
	ListRunSummaries(limit int) ([]RunSummary, error)
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)
