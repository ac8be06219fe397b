package storage

import (
	"time"

	"github.com/google/uuid"
)

// RunSummary is the persisted aggregate of one pipeline invocation.
// Created once per run, never mutated after the run completes.
type RunSummary struct {
	ID                     string
	Source                 string
	TotalCards             int
	TotalAccessTokens      int
	TotalTransactions      int
	ExistingCompanyMatches int
	NewMatchedToCompany    int
	UnmatchedToCompany     int
	NewTransactions        int
	UpdatedTransactions    int
	StartedAt              time.Time
	CompletedAt            time.Time
}

// SaveRunSummary persists the summary of a completed run
func (s *Storage) SaveRunSummary(summary *RunSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	query := `
	INSERT INTO run_summaries
	(id, source, total_cards, total_access_tokens, total_transactions,
	 existing_company_matches, new_matched_to_company, unmatched_to_company,
	 new_transactions, updated_transactions, started_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		summary.ID,
		summary.Source,
		summary.TotalCards,
		summary.TotalAccessTokens,
		summary.TotalTransactions,
		summary.ExistingCompanyMatches,
		summary.NewMatchedToCompany,
		summary.UnmatchedToCompany,
		summary.NewTransactions,
		summary.UpdatedTransactions,
		summary.StartedAt,
		summary.CompletedAt,
	)
	return err
}

// ListRunSummaries returns recent run summaries, newest first
func (s *Storage) ListRunSummaries(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, source, total_cards, total_access_tokens, total_transactions,
	       existing_company_matches, new_matched_to_company, unmatched_to_company,
	       new_transactions, updated_transactions, started_at, completed_at
	FROM run_summaries
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var summaries []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.ID,
			&r.Source,
			&r.TotalCards,
			&r.TotalAccessTokens,
			&r.TotalTransactions,
			&r.ExistingCompanyMatches,
			&r.NewMatchedToCompany,
			&r.UnmatchedToCompany,
			&r.NewTransactions,
			&r.UpdatedTransactions,
			&r.StartedAt,
			&r.CompletedAt,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, r)
	}
	return summaries, rows.Err()
}
