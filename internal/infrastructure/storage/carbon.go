package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
)

// ListCarbonMappings returns the carbon reference data
func (s *Storage) ListCarbonMappings() ([]carbon.Mapping, error) {
	rows, err := s.db.Query(
		`SELECT category_key, multiplier, sector, subsector FROM carbon_categories`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var mappings []carbon.Mapping
	for rows.Next() {
		var m carbon.Mapping
		if err := rows.Scan(&m.CategoryKey, &m.Multiplier, &m.Sector, &m.Subsector); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ImportCarbonMappings replaces the carbon reference data with the given set
func (s *Storage) ImportCarbonMappings(mappings []carbon.Mapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO carbon_categories (category_key, multiplier, sector, subsector)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(category_key) DO UPDATE SET
		multiplier = excluded.multiplier,
		sector = excluded.sector,
		subsector = excluded.subsector
	`

	for _, m := range mappings {
		if _, err := tx.Exec(query, m.CategoryKey, m.Multiplier, m.Sector, m.Subsector); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ImportCarbonMappingsFile loads a YAML reference file into the carbon table.
// Used to refresh the reference data before a run.
func (s *Storage) ImportCarbonMappingsFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read carbon mappings: %w", err)
	}

	var mappings []carbon.Mapping
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return 0, fmt.Errorf("failed to parse carbon mappings: %w", err)
	}

	if err := s.ImportCarbonMappings(mappings); err != nil {
		return 0, err
	}
	return len(mappings), nil
}
