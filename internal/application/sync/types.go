// Package sync runs the batch ingestion pipeline end to end: snapshot
// intake, card upsert, transaction triage, company matching, carbon mapping,
// idempotent persistence, and the run summary.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/storage"
)

// Source yields one batch of account snapshots per run
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]ingest.AccountSnapshot, error)
}

// Options holds run configuration
type Options struct {
	Verbose bool
}

// Counters accumulate through the run. They keep counting even when
// individual items fail, so a partial run still reports what it did.
type Counters struct {
	TotalCards            int
	NewCards              int
	UpdatedCards          int
	UnlinkedCards         int
	TotalAccessTokens     int
	TotalTransactions     int
	DuplicateTransactions int
	UnmappedTransactions  int
	NewTransactions       int
	UpdatedTransactions   int

	ExistingCompanyMatches int
	NewCompanyMatches      int
	NotMappedToCompany     int
}

// Result is what one run produced
type Result struct {
	Counters    Counters
	StartedAt   time.Time
	CompletedAt time.Time
	Errors      []error
}

// Orchestrator wires the pipeline stages together
type Orchestrator struct {
	source   Source
	repo     storage.Repository
	resolver *matcher.Resolver
	carbon   *carbon.Mapper
	logger   *slog.Logger
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(
	source Source,
	repo storage.Repository,
	resolver *matcher.Resolver,
	carbonMapper *carbon.Mapper,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:   source,
		repo:     repo,
		resolver: resolver,
		carbon:   carbonMapper,
		logger:   logger,
	}
}
