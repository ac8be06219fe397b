package ingest

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus indicates whether the upstream link for a card is healthy
type CardStatus string

const (
	CardLinked   CardStatus = "Linked"
	CardUnlinked CardStatus = "Unlinked"
)

// CardFingerprint is the identity tuple used for idempotent card upsert.
// The external account identifier is deliberately excluded: it is not stable
// across relinks, so two sightings of the same physical account would
// otherwise create duplicate cards.
type CardFingerprint struct {
	UserID      string
	Name        string
	Mask        string
	Type        string
	Subtype     string
	Institution string
}

// Card represents one linked financial sub-account
type Card struct {
	ID          string
	UserID      string
	Name        string
	Mask        string
	Type        string
	Subtype     string
	Institution string
	Status      CardStatus

	// AccountID is the current external sub-account identifier. It can
	// change upstream across relinks; the newest sighting is authoritative.
	AccountID string

	// ItemIDs is the set of contributing external item identifiers. It
	// grows via union and never shrinks.
	ItemIDs []string

	AccessToken string
	UpdatedAt   time.Time
}

// NewCard creates a card from the first sighting of a sub-account
func NewCard(userID string, acct SubAccount, itemID, accessToken string) *Card {
	return &Card{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        acct.Name,
		Mask:        acct.Mask,
		Type:        acct.Type,
		Subtype:     acct.Subtype,
		Institution: acct.Institution,
		Status:      CardLinked,
		AccountID:   acct.AccountID,
		ItemIDs:     []string{itemID},
		AccessToken: accessToken,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Fingerprint returns the upsert identity of the card
func (c *Card) Fingerprint() CardFingerprint {
	return CardFingerprint{
		UserID:      c.UserID,
		Name:        c.Name,
		Mask:        c.Mask,
		Type:        c.Type,
		Subtype:     c.Subtype,
		Institution: c.Institution,
	}
}

// Absorb merges a fresh sighting of the same fingerprint into this card:
// the item id joins the set, the access token is replaced, the newest
// sub-account id becomes authoritative, and a successful sighting relinks
// a previously unlinked card.
func (c *Card) Absorb(itemID, accessToken, accountID string) {
	if !c.hasItemID(itemID) {
		c.ItemIDs = append(c.ItemIDs, itemID)
	}
	c.AccessToken = accessToken
	if accountID != "" {
		c.AccountID = accountID
	}
	c.Status = CardLinked
	c.UpdatedAt = time.Now().UTC()
}

// MarkUnlinked flips the card to Unlinked and clears its credential,
// used when the upstream refresh for its item failed
func (c *Card) MarkUnlinked() {
	c.Status = CardUnlinked
	c.AccessToken = ""
	c.UpdatedAt = time.Now().UTC()
}

func (c *Card) hasItemID(itemID string) bool {
	for _, id := range c.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// MapTransactions partitions a batch of raw transactions for this card:
//   - mine and first-seen: returned as pending, marked seen in the tracker
//   - mine but already seen anywhere this run: moved to the tracker's
//     duplicate bucket (retained for reporting only, never persisted)
//   - not mine: returned as unclaimed so sibling cards can claim them
//
// "Mine" keys solely on sub-account id equality against the card's current
// AccountID.
func (c *Card) MapTransactions(batch []RawTransaction, tracker *Tracker) (pending, unclaimed []RawTransaction) {
	for _, tx := range batch {
		if tx.AccountID != c.AccountID {
			unclaimed = append(unclaimed, tx)
			continue
		}
		if tracker.Seen(tx.ExternalID) {
			tracker.AddDuplicate(tx)
			continue
		}
		tracker.MarkSeen(tx.ExternalID)
		pending = append(pending, tx)
	}
	return pending, unclaimed
}
