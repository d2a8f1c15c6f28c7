package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardioingest/pkg/domain"
)

const samplesTable = "structured_biomarker_samples"

func TestOpenCreatesSchemaInNestedDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cardio.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, path, store.Path())
	var name string
	require.NoError(t, store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", samplesTable).Scan(&name))
	assert.Equal(t, samplesTable, name)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cardio.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.SeedRules(ctx, domain.RuleBundle{
		Aliases: []domain.AliasRule{{AliasName: "ApoB", CanonicalName: "ApoB", IsActive: true}},
	}))
	require.NoError(t, store.SaveSample(ctx, domain.SampleEnvelope{
		UserID:     "u",
		SampleID:   "s",
		TraceID:    "t",
		Biomarkers: []domain.NormalizedBiomarker{},
		QCSummary:  domain.QCSummary{OverallStatus: domain.StatusValid},
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	name, ok, err := reopened.LookupActiveAlias(ctx, "apob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ApoB", name)

	env, err := reopened.GetSample(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "t", env.TraceID)
}
