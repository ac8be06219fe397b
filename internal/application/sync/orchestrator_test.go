package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoledger/carbonsync-backend/internal/domain/carbon"
	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
	"github.com/ecoledger/carbonsync-backend/internal/domain/matcher"
	"github.com/ecoledger/carbonsync-backend/internal/infrastructure/storage"
)

type fakeSource struct {
	name      string
	snapshots []ingest.AccountSnapshot
	err       error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(ctx context.Context) ([]ingest.AccountSnapshot, error) {
	return s.snapshots, s.err
}

type stubEngine struct {
	result *matcher.Result
	err    error
	calls  int
}

func (e *stubEngine) Match(ctx context.Context, req matcher.Request) (*matcher.Result, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.result != nil {
		return e.result, nil
	}
	return &matcher.Result{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(source Source, repo *storage.MockRepository, engine matcher.Engine) *Orchestrator {
	logger := testLogger()
	resolver := matcher.NewResolver(repo, engine, matcher.DefaultThresholds(), matcher.Seeds{}, logger)
	mapper := carbon.NewMapper(repo, logger)
	return NewOrchestrator(source, repo, resolver, mapper, logger)
}

func sampleSnapshots() []ingest.AccountSnapshot {
	return []ingest.AccountSnapshot{
		{
			ItemID:      "item-1",
			UserID:      "user-1",
			AccessToken: "token-a",
			Accounts: []ingest.SubAccount{
				{AccountID: "acct-1", Name: "Everyday Checking", Mask: "4321", Type: "depository", Subtype: "checking", Institution: "First National"},
				{AccountID: "acct-2", Name: "Travel Card", Mask: "9876", Type: "credit", Subtype: "credit card", Institution: "First National"},
			},
			Transactions: []ingest.RawTransaction{
				{ExternalID: "tx-1", AccountID: "acct-1", Amount: 9.99, Date: "2024-01-05", Name: "ACME CO #1234", MerchantName: "Acme Co"},
				{ExternalID: "tx-2", AccountID: "acct-1", Amount: 4.5, Date: "2024-01-06", Name: "STARBUCKS #77"},
				{ExternalID: "tx-3", AccountID: "acct-2", Amount: 120, Date: "2024-01-07", Name: "DELTA AIR 0062", MerchantName: "Delta Air Lines"},
			},
		},
	}
}

func TestRun_FirstRun(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.AddCompany(matcher.Company{ID: "c-acme", Name: "Acme Co"})

	engine := &stubEngine{result: &matcher.Result{
		Matched: []matcher.Match{
			{Original: "STARBUCKS #77", CompanyName: "Starbucks", CompanyID: "c-sbux"},
		},
		Unmatched: []matcher.UnmatchedCount{
			{Original: "Delta Air Lines", Count: 1},
		},
	}}

	source := &fakeSource{name: "snapshots.json", snapshots: sampleSnapshots()}
	o := newTestOrchestrator(source, repo, engine)

	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counters.TotalCards)
	assert.Equal(t, 2, result.Counters.NewCards)
	assert.Equal(t, 0, result.Counters.UpdatedCards)
	assert.Equal(t, 1, result.Counters.TotalAccessTokens)
	assert.Equal(t, 3, result.Counters.TotalTransactions)
	assert.Equal(t, 3, result.Counters.NewTransactions)
	assert.Equal(t, 0, result.Counters.UpdatedTransactions)
	assert.Equal(t, 1, result.Counters.NewCompanyMatches)
	assert.Equal(t, 2, result.Counters.NotMappedToCompany)

	assert.Equal(t, 2, repo.CardCount())
	assert.Equal(t, 3, repo.TransactionCount())
	assert.Equal(t, 1, repo.UnmatchedCount("Delta Air Lines"))

	require.True(t, repo.SaveRunSummaryCalled)
	summary := repo.LastSavedSummary
	assert.Equal(t, "snapshots.json", summary.Source)
	assert.Equal(t, 2, summary.TotalCards)
	assert.Equal(t, 3, summary.TotalTransactions)
	assert.Equal(t, 3, summary.NewTransactions)
	assert.False(t, summary.CompletedAt.Before(summary.StartedAt))
}

func TestRun_ReplayIsIdempotent(t *testing.T) {
	repo := storage.NewMockRepository()
	source := &fakeSource{name: "snapshots.json", snapshots: sampleSnapshots()}
	o := newTestOrchestrator(source, repo, &stubEngine{})

	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	second, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, second.Counters.NewCards)
	assert.Equal(t, 2, second.Counters.UpdatedCards)
	assert.Equal(t, 0, second.Counters.NewTransactions)
	assert.Equal(t, 3, second.Counters.UpdatedTransactions)

	assert.Equal(t, 2, repo.CardCount(), "replay must not create duplicate cards")
	assert.Equal(t, 3, repo.TransactionCount(), "replay must not create duplicate transactions")
}

func TestRun_PartitionCompleteness(t *testing.T) {
	snapshots := sampleSnapshots()
	// One in-batch duplicate and one transaction no card claims
	snapshots[0].Transactions = append(snapshots[0].Transactions,
		ingest.RawTransaction{ExternalID: "tx-1", AccountID: "acct-1", Amount: 9.99, Date: "2024-01-05", Name: "ACME CO #1234"},
		ingest.RawTransaction{ExternalID: "tx-9", AccountID: "acct-unknown", Amount: 3, Date: "2024-01-08", Name: "CORNER STORE"},
	)

	repo := storage.NewMockRepository()
	o := newTestOrchestrator(&fakeSource{name: "s", snapshots: snapshots}, repo, &stubEngine{})

	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	c := result.Counters
	assert.Equal(t, 1, c.DuplicateTransactions)
	assert.Equal(t, 1, c.UnmappedTransactions)
	assert.Equal(t, 5, c.TotalTransactions)
	assert.Equal(t, c.TotalTransactions,
		c.NewTransactions+c.DuplicateTransactions+c.UnmappedTransactions,
		"new, duplicate and unmapped buckets partition the input")
}

func TestRun_SnapshotFetchFailureUnlinksCards(t *testing.T) {
	repo := storage.NewMockRepository()
	source := &fakeSource{name: "s", snapshots: sampleSnapshots()}
	o := newTestOrchestrator(source, repo, &stubEngine{})

	_, err := o.Run(context.Background(), Options{})
	require.NoError(t, err)

	failed := sampleSnapshots()
	failed[0].Error = "ITEM_LOGIN_REQUIRED"
	failed[0].Transactions = nil
	source.snapshots = failed

	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err, "one item's fetch failure must not abort the run")

	assert.Equal(t, 2, result.Counters.UnlinkedCards)
	assert.Equal(t, 0, result.Counters.TotalTransactions)

	probe := ingest.NewCard("user-1", failed[0].Accounts[0], "item-1", "")
	card, err := repo.FindCardByFingerprint(probe.Fingerprint())
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, ingest.CardUnlinked, card.Status)
	assert.Empty(t, card.AccessToken)
}

func TestRun_CardFailureIsolated(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.InsertCardErr = errors.New("disk full")

	o := newTestOrchestrator(&fakeSource{name: "s", snapshots: sampleSnapshots()}, repo, &stubEngine{})

	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err, "card persistence failures are per-item, not fatal")

	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, 0, repo.TransactionCount())
	assert.True(t, repo.SaveRunSummaryCalled, "the summary is still recorded")
}

func TestRun_MatcherFailureWrapped(t *testing.T) {
	repo := storage.NewMockRepository()
	engine := &stubEngine{err: errors.New("delegate exited with code 3")}

	o := newTestOrchestrator(&fakeSource{name: "s", snapshots: sampleSnapshots()}, repo, engine)

	result, err := o.Run(context.Background(), Options{})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "matching", runErr.Stage)
	assert.Equal(t, result.Counters, runErr.Counters)

	// Transactions still land, unresolved, so a later run can pick them up
	assert.Equal(t, 3, repo.TransactionCount())
	assert.True(t, repo.SaveRunSummaryCalled)
}

func TestRun_SourceFailureIsFatal(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(&fakeSource{name: "s", err: errors.New("no such file")}, repo, &stubEngine{})

	_, err := o.Run(context.Background(), Options{})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "ingest", runErr.Stage)
	assert.False(t, repo.SaveRunSummaryCalled)
}

func TestRun_SummarySaveFailureDoesNotFailRun(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SaveRunSummaryErr = errors.New("table locked")

	o := newTestOrchestrator(&fakeSource{name: "s", snapshots: sampleSnapshots()}, repo, &stubEngine{})

	result, err := o.Run(context.Background(), Options{})
	require.NoError(t, err, "summary persistence failure is logged, never fatal")

	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, 3, repo.TransactionCount(), "transaction data is not unwound")
}
