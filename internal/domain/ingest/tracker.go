package ingest

// Tracker is the run-scoped classification state for incoming transactions:
// a set of every external transaction id seen anywhere in the run, plus the
// duplicate and unmapped buckets. It is created once per run and passed by
// reference into each triage call, so the partition invariant
// |new| + |duplicate| + |unmapped| == |input| holds across all cards.
type Tracker struct {
	seen       map[string]struct{}
	duplicates []RawTransaction
	unmapped   []RawTransaction
}

// NewTracker creates an empty run-scoped tracker
func NewTracker() *Tracker {
	return &Tracker{
		seen: make(map[string]struct{}),
	}
}

// Seen reports whether an external transaction id was already recorded this run
func (t *Tracker) Seen(externalID string) bool {
	_, ok := t.seen[externalID]
	return ok
}

// MarkSeen records an external transaction id
func (t *Tracker) MarkSeen(externalID string) {
	t.seen[externalID] = struct{}{}
}

// AddDuplicate records a transaction that belongs to a card but was already
// recorded this run
func (t *Tracker) AddDuplicate(tx RawTransaction) {
	t.duplicates = append(t.duplicates, tx)
}

// AddUnmapped records a transaction that no card claimed. Unmapped
// transactions are not an error; they are reported for manual review.
func (t *Tracker) AddUnmapped(tx RawTransaction) {
	t.unmapped = append(t.unmapped, tx)
}

// Duplicates returns the duplicate bucket
func (t *Tracker) Duplicates() []RawTransaction {
	return t.duplicates
}

// Unmapped returns the unmapped bucket
func (t *Tracker) Unmapped() []RawTransaction {
	return t.unmapped
}

// SeenCount returns the number of distinct external ids recorded
func (t *Tracker) SeenCount() int {
	return len(t.seen)
}
