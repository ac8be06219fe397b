package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

// FindCardByFingerprint looks up a card by its upsert identity.
// Returns (nil, nil) when no card with that fingerprint exists.
func (s *Storage) FindCardByFingerprint(fp ingest.CardFingerprint) (*ingest.Card, error) {
	query := `
	SELECT id, user_id, name, mask, type, subtype, institution,
	       status, account_id, item_ids, access_token, updated_at
	FROM cards
	WHERE user_id = ? AND name = ? AND mask = ? AND type = ? AND subtype = ? AND institution = ?
	`

	card := &ingest.Card{}
	var status, itemIDs string
	err := s.db.QueryRow(query, fp.UserID, fp.Name, fp.Mask, fp.Type, fp.Subtype, fp.Institution).Scan(
		&card.ID,
		&card.UserID,
		&card.Name,
		&card.Mask,
		&card.Type,
		&card.Subtype,
		&card.Institution,
		&status,
		&card.AccountID,
		&itemIDs,
		&card.AccessToken,
		&card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	card.Status = ingest.CardStatus(status)
	if err := json.Unmarshal([]byte(itemIDs), &card.ItemIDs); err != nil {
		return nil, fmt.Errorf("card %s has corrupt item_ids: %w", card.ID, err)
	}

	return card, nil
}

// InsertCard persists a newly created card
func (s *Storage) InsertCard(card *ingest.Card) error {
	itemIDs, err := json.Marshal(card.ItemIDs)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO cards
	(id, user_id, name, mask, type, subtype, institution,
	 status, account_id, item_ids, access_token, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		card.ID,
		card.UserID,
		card.Name,
		card.Mask,
		card.Type,
		card.Subtype,
		card.Institution,
		string(card.Status),
		card.AccountID,
		string(itemIDs),
		card.AccessToken,
		card.UpdatedAt,
	)
	return err
}

// UpdateCard persists the mutable fields of an existing card
func (s *Storage) UpdateCard(card *ingest.Card) error {
	itemIDs, err := json.Marshal(card.ItemIDs)
	if err != nil {
		return err
	}

	query := `
	UPDATE cards
	SET status = ?, account_id = ?, item_ids = ?, access_token = ?, updated_at = ?
	WHERE id = ?
	`

	result, err := s.db.Exec(query,
		string(card.Status),
		card.AccountID,
		string(itemIDs),
		card.AccessToken,
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("card %s not found", card.ID)
	}
	return nil
}

// CountCards returns the number of stored cards
func (s *Storage) CountCards() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&count)
	return count, err
}
