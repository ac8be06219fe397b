// Package ingest holds the domain model for the account ingestion pipeline:
// snapshot DTOs received from the upstream aggregator, the Card aggregate,
// transaction records, and the run-scoped dedup tracker.
//
// Raw provider payloads are converted into typed DTOs at this boundary;
// downstream components never see untyped data.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// AccountSnapshot is one linked financial account batch ("item") as fetched
// from the upstream aggregator: one or more sub-accounts plus a window of
// transactions. It is transient input and is never persisted as-is.
type AccountSnapshot struct {
	ItemID       string           `json:"item_id"`
	UserID       string           `json:"user_id"`
	AccessToken  string           `json:"access_token"`
	Accounts     []SubAccount     `json:"accounts"`
	Transactions []RawTransaction `json:"transactions"`

	// Error is set by the upstream fetcher when the refresh for this item
	// failed. Cards belonging to a failed item are unlinked, not dropped.
	Error string `json:"error,omitempty"`
}

// Validate checks that the snapshot carries enough identity to be processed
func (s *AccountSnapshot) Validate() error {
	if s.ItemID == "" {
		return fmt.Errorf("snapshot missing item_id")
	}
	if s.UserID == "" {
		return fmt.Errorf("snapshot %s missing user_id", s.ItemID)
	}
	if s.Error == "" && len(s.Accounts) == 0 {
		return fmt.Errorf("snapshot %s has no accounts", s.ItemID)
	}
	return nil
}

// SubAccount describes one account within an item
type SubAccount struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Mask        string `json:"mask"`
	Type        string `json:"type"`
	Subtype     string `json:"subtype"`
	Institution string `json:"institution_name"`
}

// RawTransaction is one transaction exactly as received from the upstream
// integration, decoded into typed fields. The original JSON payload is kept
// verbatim in Payload so it can be persisted under the provider namespace.
type RawTransaction struct {
	ExternalID     string   `json:"transaction_id"`
	AccountID      string   `json:"account_id"`
	Amount         float64  `json:"amount"`
	Date           string   `json:"date"`
	AuthorizedDate string   `json:"authorized_date,omitempty"`
	Name           string   `json:"name"`
	MerchantName   string   `json:"merchant_name,omitempty"`
	Categories     []string `json:"category,omitempty"`
	CategoryID     string   `json:"category_id,omitempty"`
	PaymentChannel string   `json:"payment_channel,omitempty"`
	Pending        bool     `json:"pending,omitempty"`

	Payload json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and retains the original payload
func (t *RawTransaction) UnmarshalJSON(data []byte) error {
	type plain RawTransaction
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = RawTransaction(p)
	t.Payload = append(json.RawMessage(nil), data...)
	return nil
}

// Validate checks the fields every downstream stage relies on
func (t *RawTransaction) Validate() error {
	if t.ExternalID == "" {
		return fmt.Errorf("transaction missing transaction_id")
	}
	if t.AccountID == "" {
		return fmt.Errorf("transaction %s missing account_id", t.ExternalID)
	}
	if t.Date == "" {
		return fmt.Errorf("transaction %s missing date", t.ExternalID)
	}
	if _, err := ParseDate(t.Date); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ExternalID, err)
	}
	return nil
}

// DisplayName returns the merchant name when present, otherwise the raw
// transaction name
func (t *RawTransaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// ParseDate parses an upstream YYYY-MM-DD date string into a UTC timestamp.
// Parsing explicitly rather than through a generic layout avoids timezone
// drift when the record round-trips through storage.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ParseSnapshotBatch decodes and validates a batch of account snapshots.
// Invalid snapshots fail the whole parse: a malformed input file is an
// operator error, not a partial-progress situation.
func ParseSnapshotBatch(r io.Reader) ([]AccountSnapshot, error) {
	var snapshots []AccountSnapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snapshots); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot batch: %w", err)
	}

	for i := range snapshots {
		if err := snapshots[i].Validate(); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		for j := range snapshots[i].Transactions {
			if err := snapshots[i].Transactions[j].Validate(); err != nil {
				return nil, fmt.Errorf("snapshot %d: %w", i, err)
			}
		}
	}

	return snapshots, nil
}
