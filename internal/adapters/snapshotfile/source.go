// Package snapshotfile reads account snapshot batches from a JSON file on
// disk. It is the batch-mode stand-in for the upstream integration that
// produces the snapshots.
package snapshotfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ecoledger/carbonsync-backend/internal/domain/ingest"
)

// Source reads one snapshot batch per Fetch call
type Source struct {
	path string
}

func New(path string) *Source {
	return &Source{path: path}
}

// Name returns the source tag recorded in the run summary
func (s *Source) Name() string {
	return filepath.Base(s.path)
}

func (s *Source) Fetch(ctx context.Context) ([]ingest.AccountSnapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ingest.ParseSnapshotBatch(f)
}
