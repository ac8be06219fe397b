package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
)

// ListCompanies returns the non-hidden company directory
func (s *Storage) ListCompanies() ([]matcher.Company, error) {
	rows, err := s.db.Query(`SELECT id, name, hidden FROM companies WHERE hidden = 0 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var companies []matcher.Company
	for rows.Next() {
		var c matcher.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Hidden); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// InsertCompany adds a company to the directory
func (s *Storage) InsertCompany(c matcher.Company) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO companies (id, name, hidden) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Hidden)
	return err
}

// ListNameMatches returns every entry of the match cache, suppressed entries
// included: the resolver needs false positives to hand to the fuzzy engine
func (s *Storage) ListNameMatches() ([]matcher.NameMatch, error) {
	query := `
	SELECT id, original, company_id, company_name, manual_match, false_positive
	FROM company_name_matches
	ORDER BY created_at
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var matches []matcher.NameMatch
	for rows.Next() {
		var m matcher.NameMatch
		if err := rows.Scan(&m.ID, &m.Original, &m.CompanyID, &m.CompanyName,
			&m.ManualMatch, &m.FalsePositive); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// InsertNameMatchIfAbsent inserts the match unless an entry with the same
// (original, company) pair already exists. Returns whether a row was inserted.
func (s *Storage) InsertNameMatchIfAbsent(m matcher.NameMatch) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	// The unique index on (original, company_id) makes replays harmless
	query := `
	INSERT OR IGNORE INTO company_name_matches
	(id, original, company_id, company_name, manual_match, false_positive)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		m.ID, m.Original, m.CompanyID, m.CompanyName, m.ManualMatch, m.FalsePositive)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasManualMatches reports whether any manual match entries exist
func (s *Storage) HasManualMatches() (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM company_name_matches WHERE manual_match = 1`,
	).Scan(&count)
	return count > 0, err
}

// HasAutomaticMatches reports whether the confirmed-match cache has any
// automatic entries yet
func (s *Storage) HasAutomaticMatches() (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM company_name_matches WHERE manual_match = 0 AND false_positive = 0`,
	).Scan(&count)
	return count > 0, err
}

// MergeUnmatchedCounts increments the stored per-name counters by the given
// amounts. Counts are monotonically non-decreasing across runs.
func (s *Storage) MergeUnmatchedCounts(counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO unmatched_company_names (original, count, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(original) DO UPDATE SET
		count = count + excluded.count,
		updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	for original, n := range counts {
		if _, err := tx.Exec(query, original, n, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetUnmatchedCount returns the stored counter for an original name,
// zero when the name has never been reported
func (s *Storage) GetUnmatchedCount(original string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT IFNULL(SUM(count), 0) FROM unmatched_company_names WHERE original = ?`,
		original,
	).Scan(&count)
	return count, err
}
