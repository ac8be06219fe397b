package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

const dateLayout = "2006-01-02"

// SaveTransaction performs an idempotent upsert keyed on the transaction
// fingerprint (user, card, company, amount, date, merchant name, authorized
// date). An existing record only has its mutable fields updated; a missing
// record is inserted. The done callback fires exactly once with the outcome.
//
// A record that fails validation (missing user or card) is a no-op: no row
// is written and no callback fires.
func (s *Storage) SaveTransaction(rec *ingest.TransactionRecord, done func(ingest.SaveOutcome)) error {
	if !rec.Valid() {
		return nil
	}

	existingID, err := s.findTransactionByFingerprint(rec)
	if err != nil {
		return err
	}

	categories, err := json.Marshal(rec.Categories)
	if err != nil {
		return err
	}

	if existingID != "" {
		// Only the fields allowed to change post-creation are written;
		// the identity fields stay untouched.
		query := `
		UPDATE transactions
		SET date = ?, categories = ?, category_id = ?,
		    sector = ?, subsector = ?, carbon_multiplier = ?,
		    pending = ?, provider_data = ?, external_id = ?, updated_at = ?
		WHERE id = ?
		`
		_, err = s.db.Exec(query,
			rec.Date.Format(dateLayout),
			string(categories),
			rec.CategoryID,
			nullString(rec.Sector),
			nullString(rec.Subsector),
			rec.CarbonMultiplier,
			rec.Pending,
			string(rec.ProviderData),
			rec.ExternalID,
			time.Now().UTC(),
			existingID,
		)
		if err != nil {
			return err
		}

		rec.ID = existingID
		if done != nil {
			done(ingest.SaveUpdate)
		}
		return nil
	}

	query := `
	INSERT INTO transactions
	(id, user_id, card_id, company_id, amount, date, authorized_date,
	 name, merchant_name, categories, category_id, payment_channel, pending,
	 sector, subsector, carbon_multiplier, provider_data, external_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		rec.ID,
		rec.UserID,
		rec.CardID,
		nullString(rec.CompanyID),
		rec.Amount,
		rec.Date.Format(dateLayout),
		rec.AuthorizedDate,
		rec.Name,
		rec.MerchantName,
		string(categories),
		rec.CategoryID,
		rec.PaymentChannel,
		rec.Pending,
		nullString(rec.Sector),
		nullString(rec.Subsector),
		rec.CarbonMultiplier,
		string(rec.ProviderData),
		rec.ExternalID,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if done != nil {
		done(ingest.SaveNew)
	}
	return nil
}

// findTransactionByFingerprint returns the id of the stored record with the
// same fingerprint, or the empty string
func (s *Storage) findTransactionByFingerprint(rec *ingest.TransactionRecord) (string, error) {
	query := `
	SELECT id FROM transactions
	WHERE user_id = ? AND card_id = ? AND IFNULL(company_id, '') = ?
	  AND amount = ? AND date = ? AND merchant_name = ? AND authorized_date = ?
	`

	var id string
	err := s.db.QueryRow(query,
		rec.UserID,
		rec.CardID,
		rec.CompanyID,
		rec.Amount,
		rec.Date.Format(dateLayout),
		rec.MerchantName,
		rec.AuthorizedDate,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetTransaction retrieves a stored record by id
func (s *Storage) GetTransaction(id string) (*ingest.TransactionRecord, error) {
	query := `
	SELECT id, user_id, card_id, IFNULL(company_id, ''), amount, date, authorized_date,
	       name, merchant_name, categories, category_id, payment_channel, pending,
	       IFNULL(sector, ''), IFNULL(subsector, ''), carbon_multiplier,
	       provider_data, external_id, updated_at
	FROM transactions WHERE id = ?
	`

	rec := &ingest.TransactionRecord{}
	var date, categories, providerData string
	var multiplier sql.NullFloat64
	err := s.db.QueryRow(query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.CardID,
		&rec.CompanyID,
		&rec.Amount,
		&date,
		&rec.AuthorizedDate,
		&rec.Name,
		&rec.MerchantName,
		&categories,
		&rec.CategoryID,
		&rec.PaymentChannel,
		&rec.Pending,
		&rec.Sector,
		&rec.Subsector,
		&multiplier,
		&providerData,
		&rec.ExternalID,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.Date, err = ingest.ParseDate(date); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(categories), &rec.Categories); err != nil {
		return nil, err
	}
	if multiplier.Valid {
		m := multiplier.Float64
		rec.CarbonMultiplier = &m
	}
	if providerData != "" {
		rec.ProviderData = json.RawMessage(providerData)
	}

	return rec, nil
}

// CountTransactions returns the number of stored transaction records
func (s *Storage) CountTransactions() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

// nullString maps the empty string to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
