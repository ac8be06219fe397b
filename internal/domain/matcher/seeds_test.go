package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeeds(t *testing.T) {
	dir := t.TempDir()

	manual := filepath.Join(dir, "manual.yaml")
	require.NoError(t, os.WriteFile(manual, []byte(`
- original: "NETFLIX.COM"
  company: "Netflix"
  company_id: "c-netflix"
- original: "AMZN Mktp US"
  company: "Amazon"
  company_id: "c-amazon"
`), 0o644))

	falsePos := filepath.Join(dir, "false_positives.yaml")
	require.NoError(t, os.WriteFile(falsePos, []byte(`
- original: "SHELL GAME LLC"
  company: "Shell"
`), 0o644))

	seeds, err := LoadSeeds(manual, falsePos)
	require.NoError(t, err)

	require.Len(t, seeds.ManualMatches, 2)
	assert.Equal(t, "c-netflix", seeds.ManualMatches[0].CompanyID)
	require.Len(t, seeds.FalsePositives, 1)
	assert.Equal(t, "Shell", seeds.FalsePositives[0].CompanyName)
}

func TestLoadSeeds_EmptyPaths(t *testing.T) {
	seeds, err := LoadSeeds("", "")
	require.NoError(t, err)
	assert.Empty(t, seeds.ManualMatches)
	assert.Empty(t, seeds.FalsePositives)
}

func TestLoadSeeds_MissingFile(t *testing.T) {
	_, err := LoadSeeds("/does/not/exist.yaml", "")
	assert.Error(t, err)
}
