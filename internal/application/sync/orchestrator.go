package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/storage"
)

// Run executes one full pipeline pass: fetch snapshots, upsert cards, triage
// transactions, resolve companies, map carbon data, persist records, and
// save the run summary. Individual card failures are isolated; a matching
// stage failure is wrapped into a RunError after whatever was resolved and
// persisted so far has been saved.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		StartedAt: time.Now(),
		Errors:    make([]error, 0),
	}

	// 1. Fetch the snapshot batch
	snapshots, err := o.source.Fetch(ctx)
	if err != nil {
		return result, &RunError{Stage: "ingest", Counters: result.Counters, Err: err}
	}

	if opts.Verbose {
		o.logger.Info("starting run",
			"source", o.source.Name(),
			"snapshots", len(snapshots),
		)
	}

	// 2. Cards and triage. The tracker is run-scoped: a transaction id seen
	// on any card counts as a duplicate everywhere else.
	tracker := ingest.NewTracker()
	var records []*ingest.TransactionRecord

	for i := range snapshots {
		snapshot := &snapshots[i]
		result.Counters.TotalAccessTokens++

		if snapshot.Error != "" {
			o.unlinkSnapshotCards(snapshot, result)
			continue
		}

		records = append(records, o.processSnapshot(snapshot, tracker, result, opts)...)
	}

	for _, tx := range tracker.Unmapped() {
		o.logger.Warn("transaction matched no card",
			"transaction_id", tx.ExternalID,
			"account_id", tx.AccountID,
			"name", tx.DisplayName(),
		)
	}

	result.Counters.DuplicateTransactions = len(tracker.Duplicates())
	result.Counters.UnmappedTransactions = len(tracker.Unmapped())
	result.Counters.TotalTransactions = len(records) +
		result.Counters.DuplicateTransactions +
		result.Counters.UnmappedTransactions

	if opts.Verbose {
		o.logger.Info("triage complete",
			"pending", len(records),
			"duplicates", result.Counters.DuplicateTransactions,
			"unmapped", result.Counters.UnmappedTransactions,
		)
	}

	// 3. Company matching. A failure here aborts the stage but not the run:
	// records already resolved by the cache tiers keep their assignment and
	// still get persisted below.
	var matchErr error
	stats, err := o.resolver.Resolve(ctx, records)
	if err != nil {
		matchErr = err
		o.logger.Error("company matching failed",
			"error", err,
			"existing_matches", stats.ExistingMatches,
			"new_matches", stats.NewMatches,
		)
	}
	result.Counters.ExistingCompanyMatches = stats.ExistingMatches
	result.Counters.NewCompanyMatches = stats.NewMatches
	result.Counters.NotMappedToCompany = stats.NotMapped

	// 4. Carbon mapping. Lookup misses are silent; only a reference-data
	// load failure is reported, and it skips the stage rather than failing
	// the run.
	for _, rec := range records {
		if err := o.carbon.Apply(rec); err != nil {
			o.logger.Error("carbon mapping unavailable", "error", err)
			result.Errors = append(result.Errors, err)
			break
		}
	}

	// 5. Persist transaction records
	for _, rec := range records {
		err := o.repo.SaveTransaction(rec, func(outcome ingest.SaveOutcome) {
			switch outcome {
			case ingest.SaveNew:
				result.Counters.NewTransactions++
			case ingest.SaveUpdate:
				result.Counters.UpdatedTransactions++
			}
		})
		if err != nil {
			o.logger.Error("failed to save transaction",
				"transaction_id", rec.ExternalID,
				"error", err,
			)
			result.Errors = append(result.Errors, err)
		}
	}

	// 6. Run summary. A summary that fails to persist is logged, never
	// unwinds the transaction data saved above.
	result.CompletedAt = time.Now()
	if err := o.repo.SaveRunSummary(o.buildSummary(result)); err != nil {
		o.logger.Error("failed to save run summary", "error", err)
		result.Errors = append(result.Errors, err)
	}

	o.logSummary(result)

	if matchErr != nil {
		return result, &RunError{Stage: "matching", Counters: result.Counters, Err: matchErr}
	}
	return result, nil
}

// processSnapshot upserts one snapshot's cards and triages its transaction
// window across them. A storage failure on one card skips that card only.
func (o *Orchestrator) processSnapshot(snapshot *ingest.AccountSnapshot, tracker *ingest.Tracker, result *Result, opts Options) []*ingest.TransactionRecord {
	var records []*ingest.TransactionRecord

	// Each card claims its share of the window; what is left over after the
	// last sibling is unmapped.
	batch := snapshot.Transactions

	for _, acct := range snapshot.Accounts {
		card, err := o.upsertCard(snapshot, acct, result)
		if err != nil {
			o.logger.Error("failed to upsert card",
				"item_id", snapshot.ItemID,
				"account", acct.Name,
				"error", err,
			)
			result.Errors = append(result.Errors, err)
			continue
		}

		var pending []ingest.RawTransaction
		pending, batch = card.MapTransactions(batch, tracker)
		for _, raw := range pending {
			records = append(records, ingest.NewTransactionRecord(card, raw))
		}

		if opts.Verbose {
			o.logger.Info("card processed",
				"card", card.Name,
				"mask", card.Mask,
				"pending", len(pending),
			)
		}
	}

	for _, tx := range batch {
		tracker.AddUnmapped(tx)
	}

	return records
}

// upsertCard merges a sub-account into its existing card by fingerprint, or
// creates a new card on first sighting. Calling it twice with identical
// input never produces a second card.
func (o *Orchestrator) upsertCard(snapshot *ingest.AccountSnapshot, acct ingest.SubAccount, result *Result) (*ingest.Card, error) {
	result.Counters.TotalCards++

	candidate := ingest.NewCard(snapshot.UserID, acct, snapshot.ItemID, snapshot.AccessToken)

	existing, err := o.repo.FindCardByFingerprint(candidate.Fingerprint())
	if err != nil {
		return nil, fmt.Errorf("card lookup failed: %w", err)
	}

	if existing != nil {
		existing.Absorb(snapshot.ItemID, snapshot.AccessToken, acct.AccountID)
		if err := o.repo.UpdateCard(existing); err != nil {
			return nil, fmt.Errorf("card update failed: %w", err)
		}
		result.Counters.UpdatedCards++
		return existing, nil
	}

	if err := o.repo.InsertCard(candidate); err != nil {
		return nil, fmt.Errorf("card insert failed: %w", err)
	}
	result.Counters.NewCards++
	return candidate, nil
}

// unlinkSnapshotCards handles a snapshot whose upstream fetch failed: every
// card it names is marked Unlinked with its credential cleared, and the run
// moves on. One card's failure never aborts the run.
func (o *Orchestrator) unlinkSnapshotCards(snapshot *ingest.AccountSnapshot, result *Result) {
	o.logger.Warn("snapshot fetch failed upstream",
		"item_id", snapshot.ItemID,
		"error", snapshot.Error,
	)

	for _, acct := range snapshot.Accounts {
		probe := ingest.NewCard(snapshot.UserID, acct, snapshot.ItemID, "")
		card, err := o.repo.FindCardByFingerprint(probe.Fingerprint())
		if err != nil || card == nil {
			continue
		}
		card.MarkUnlinked()
		if err := o.repo.UpdateCard(card); err != nil {
			o.logger.Error("failed to unlink card", "card", card.Name, "error", err)
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Counters.UnlinkedCards++
	}
}

func (o *Orchestrator) buildSummary(result *Result) *storage.RunSummary {
	return &storage.RunSummary{
		Source:                 o.source.Name(),
		TotalCards:             result.Counters.TotalCards,
		TotalAccessTokens:      result.Counters.TotalAccessTokens,
		TotalTransactions:      result.Counters.TotalTransactions,
		ExistingCompanyMatches: result.Counters.ExistingCompanyMatches,
		NewMatchedToCompany:    result.Counters.NewCompanyMatches,
		UnmatchedToCompany:     result.Counters.NotMappedToCompany,
		NewTransactions:        result.Counters.NewTransactions,
		UpdatedTransactions:    result.Counters.UpdatedTransactions,
		StartedAt:              result.StartedAt,
		CompletedAt:            result.CompletedAt,
	}
}
