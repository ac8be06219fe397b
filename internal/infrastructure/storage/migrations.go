package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "cards_and_transactions",
		Up:      migration001CardsAndTransactions,
	},
	{
		Version: 2,
		Name:    "company_matching_tables",
		Up:      migration002CompanyMatchingTables,
	},
	{
		Version: 3,
		Name:    "carbon_and_run_summaries",
		Up:      migration003CarbonAndRunSummaries,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001CardsAndTransactions(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE cards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			mask TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			subtype TEXT NOT NULL DEFAULT '',
			institution TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Linked',
			account_id TEXT NOT NULL DEFAULT '',
			item_ids TEXT NOT NULL DEFAULT '[]',
			access_token TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		// Upsert fingerprint: the external account id is excluded because
		// it is not stable across relinks
		`CREATE UNIQUE INDEX idx_cards_fingerprint
			ON cards(user_id, name, mask, type, subtype, institution)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			card_id TEXT NOT NULL,
			company_id TEXT,
			amount REAL NOT NULL,
			date TEXT NOT NULL,
			authorized_date TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			merchant_name TEXT NOT NULL DEFAULT '',
			categories TEXT NOT NULL DEFAULT '[]',
			category_id TEXT NOT NULL DEFAULT '',
			payment_channel TEXT NOT NULL DEFAULT '',
			pending INTEGER NOT NULL DEFAULT 0,
			sector TEXT,
			subsector TEXT,
			carbon_multiplier REAL,
			provider_data TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX idx_transactions_fingerprint
			ON transactions(user_id, card_id, amount, date, merchant_name, authorized_date)`,
	}

	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func migration002CompanyMatchingTables(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			hidden INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE company_name_matches (
			id TEXT PRIMARY KEY,
			original TEXT NOT NULL,
			company_id TEXT NOT NULL DEFAULT '',
			company_name TEXT NOT NULL DEFAULT '',
			manual_match INTEGER NOT NULL DEFAULT 0,
			false_positive INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX idx_name_matches_pair
			ON company_name_matches(original, company_id)`,
		`CREATE TABLE unmatched_company_names (
			original TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func migration003CarbonAndRunSummaries(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE carbon_categories (
			category_key TEXT PRIMARY KEY,
			multiplier REAL NOT NULL,
			sector TEXT NOT NULL DEFAULT '',
			subsector TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE run_summaries (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			total_cards INTEGER NOT NULL DEFAULT 0,
			total_access_tokens INTEGER NOT NULL DEFAULT 0,
			total_transactions INTEGER NOT NULL DEFAULT 0,
			existing_company_matches INTEGER NOT NULL DEFAULT 0,
			new_matched_to_company INTEGER NOT NULL DEFAULT 0,
			unmatched_to_company INTEGER NOT NULL DEFAULT 0,
			new_transactions INTEGER NOT NULL DEFAULT 0,
			updated_transactions INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := tx.Exec(q); err != nil {
			return err
		}
	}
	return nil
}
