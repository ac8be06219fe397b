package sync

import "time"

// logSummary prints the run's counter table. This is the operator-facing
// record of what the run did, emitted whether or not the run fully
// succeeded.
func (o *Orchestrator) logSummary(result *Result) {
	c := result.Counters
	o.logger.Info("run complete",
		"source", o.source.Name(),
		"duration", result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond),
		"cards_total", c.TotalCards,
		"cards_new", c.NewCards,
		"cards_updated", c.UpdatedCards,
		"cards_unlinked", c.UnlinkedCards,
		"access_tokens", c.TotalAccessTokens,
		"transactions_total", c.TotalTransactions,
		"transactions_new", c.NewTransactions,
		"transactions_updated", c.UpdatedTransactions,
		"transactions_duplicate", c.DuplicateTransactions,
		"transactions_unmapped", c.UnmappedTransactions,
		"matches_existing", c.ExistingCompanyMatches,
		"matches_new", c.NewCompanyMatches,
		"matches_none", c.NotMappedToCompany,
		"item_errors", len(result.Errors),
	)
}
