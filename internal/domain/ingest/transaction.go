package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionRecord represents one financial transaction owned by a card.
// Classification fields (company, sector, carbon multiplier) are mutable and
// filled in by the matching and carbon-mapping stages before persistence.
type TransactionRecord struct {
	ID     string
	UserID string
	CardID string

	// CompanyID is the resolved company reference; empty means unresolved
	CompanyID string

	Amount         float64
	Date           time.Time
	AuthorizedDate string
	Name           string
	MerchantName   string
	Categories     []string
	CategoryID     string
	PaymentChannel string
	Pending        bool

	Sector           string
	Subsector        string
	CarbonMultiplier *float64

	// ProviderData is the raw upstream payload, preserved verbatim under
	// the integration namespace
	ProviderData json.RawMessage

	ExternalID string
	UpdatedAt  time.Time
}

// NewTransactionRecord builds a record for a card from a triaged raw
// transaction. The caller is expected to have validated the raw transaction
// already, so a date parse failure here falls back to the zero time rather
// than failing the card.
func NewTransactionRecord(card *Card, raw RawTransaction) *TransactionRecord {
	date, _ := ParseDate(raw.Date)
	return &TransactionRecord{
		ID:             uuid.NewString(),
		UserID:         card.UserID,
		CardID:         card.ID,
		Amount:         raw.Amount,
		Date:           date,
		AuthorizedDate: raw.AuthorizedDate,
		Name:           raw.Name,
		MerchantName:   raw.MerchantName,
		Categories:     raw.Categories,
		CategoryID:     raw.CategoryID,
		PaymentChannel: raw.PaymentChannel,
		Pending:        raw.Pending,
		ProviderData:   raw.Payload,
		ExternalID:     raw.ExternalID,
		UpdatedAt:      time.Now().UTC(),
	}
}

// TransactionFingerprint is the idempotency key for transaction upsert,
// distinct from the external transaction id (which can be reused or altered
// upstream).
type TransactionFingerprint struct {
	UserID         string
	CardID         string
	CompanyID      string
	Amount         float64
	Date           time.Time
	MerchantName   string
	AuthorizedDate string
}

// Fingerprint returns the upsert identity of the record
func (r *TransactionRecord) Fingerprint() TransactionFingerprint {
	return TransactionFingerprint{
		UserID:         r.UserID,
		CardID:         r.CardID,
		CompanyID:      r.CompanyID,
		Amount:         r.Amount,
		Date:           r.Date,
		MerchantName:   r.MerchantName,
		AuthorizedDate: r.AuthorizedDate,
	}
}

// Valid reports whether the record can be persisted at all. A record with no
// owning user or card is silently skipped by the save path.
func (r *TransactionRecord) Valid() bool {
	return r.UserID != "" && r.CardID != ""
}

// DisplayName returns the merchant name when present, otherwise the raw name
func (r *TransactionRecord) DisplayName() string {
	if r.MerchantName != "" {
		return r.MerchantName
	}
	return r.Name
}

// Equals reports whether two records are in-run duplicates of one another:
// same merchant name, same display name, same amount. This is deliberately
// weaker than the persistence fingerprint and is never used as a database key.
func (r *TransactionRecord) Equals(other *TransactionRecord) bool {
	if other == nil {
		return false
	}
	return r.MerchantName == other.MerchantName &&
		r.Name == other.Name &&
		r.Amount == other.Amount
}

// SaveOutcome reports how an idempotent save resolved
type SaveOutcome string

const (
	SaveNew    SaveOutcome = "new"
	SaveUpdate SaveOutcome = "update"
)
