package sqlrepo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"cardioingest/pkg/domain"
)

func newSQLiteStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	s := New(db, SQLite, opts...)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func fixtureRules() domain.RuleBundle {
	return domain.RuleBundle{
		Aliases: []domain.AliasRule{
			{AliasName: "ApoB", CanonicalName: "ApoB", IsActive: true},
			{AliasName: "Apo-B", CanonicalName: "ApoB", IsActive: true},
			{AliasName: "LDL", CanonicalName: "LDL-C", IsActive: false},
		},
		Conversions: []domain.ConversionRule{
			{BiomarkerName: "glucose", UnitFrom: "mmol/L", UnitTo: "mg/dL", Factor: 18, IsActive: true},
			{BiomarkerName: "temp", UnitFrom: "C", UnitTo: "F", Factor: 1.8, Offset: 32, IsActive: true},
			{BiomarkerName: "ldl-c", UnitFrom: "mmol/L", UnitTo: "mg/dL", Factor: 38.67, IsActive: false},
		},
		Mappings: []domain.DominantMapping{
			{BiomarkerName: "ApoB", BucketName: "Lipid", Role: domain.RoleDominant},
			{BiomarkerName: "HDL-C", BucketName: "Lipid", Role: "other"},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSeedAndLoadRules(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.SeedRules(ctx, fixtureRules()))

	aliases, err := s.LoadActiveAliases(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.AliasRule{
		{AliasName: "ApoB", CanonicalName: "ApoB", IsActive: true},
		{AliasName: "Apo-B", CanonicalName: "ApoB", IsActive: true},
	}, aliases)

	conversions, err := s.LoadActiveConversions(ctx)
	require.NoError(t, err)
	require.Len(t, conversions, 2)
	for _, c := range conversions {
		if c.BiomarkerName == "temp" {
			assert.Equal(t, 32.0, c.Offset)
			assert.Equal(t, 1.8, c.Factor)
		}
	}

	mappings, err := s.LoadDominantMappings(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.DominantMapping{
		{BiomarkerName: "ApoB", BucketName: "Lipid", Role: domain.RoleDominant},
		{BiomarkerName: "HDL-C", BucketName: "Lipid", Role: domain.RoleOther},
	}, mappings)
}

func TestSeedRulesReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.SeedRules(ctx, fixtureRules()))
	require.NoError(t, s.SeedRules(ctx, domain.RuleBundle{
		Aliases: []domain.AliasRule{{AliasName: "HbA1c", CanonicalName: "HbA1c", IsActive: true}},
	}))

	aliases, err := s.LoadActiveAliases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.AliasRule{{AliasName: "HbA1c", CanonicalName: "HbA1c", IsActive: true}}, aliases)
	conversions, err := s.LoadActiveConversions(ctx)
	require.NoError(t, err)
	assert.Empty(t, conversions)
}

func TestLookupActiveAlias(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.SeedRules(ctx, fixtureRules()))

	name, ok, err := s.LookupActiveAlias(ctx, "  APO-b ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ApoB", name)

	_, ok, err = s.LookupActiveAlias(ctx, "ldl")
	require.NoError(t, err)
	assert.False(t, ok, "inactive aliases never resolve")
}

func sampleEnvelope(status domain.QCStatus, trace string) domain.SampleEnvelope {
	return domain.SampleEnvelope{
		UserID:   "user-1",
		SampleID: "AIIMS-20251212-9f3a7c2b1e4d",
		TraceID:  trace,
		Biomarkers: []domain.NormalizedBiomarker{{
			CanonicalName:   "ApoB",
			RawName:         "Apo-B",
			NormalizedValue: domain.ScalarValue(102),
			NormalizedUnit:  "mg/dL",
			QCCheck:         domain.QCValid,
		}},
		QCSummary: domain.QCSummary{
			MissingCriticalBiomarkers: []domain.MissingCritical{},
			ImplausibleMarkers:        []string{},
			OverallStatus:             status,
		},
	}
}

func TestSaveSampleUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t, WithClock(func() time.Time { return time.Date(2025, 12, 12, 8, 0, 0, 0, time.UTC) }))

	require.NoError(t, s.SaveSample(ctx, sampleEnvelope(domain.StatusInvalid, "trace-a")))
	require.NoError(t, s.SaveSample(ctx, sampleEnvelope(domain.StatusValid, "trace-b")))

	var (
		count         int
		version       string
		status, trace string
	)
	require.NoError(t, s.DB().QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(version), MAX(qc_overall_status), MAX(trace_id) FROM structured_biomarker_samples`).
		Scan(&count, &version, &status, &trace))
	assert.Equal(t, 1, count)
	assert.Equal(t, domain.PayloadVersion, version)
	assert.Equal(t, "valid", status)
	assert.Equal(t, "trace-b", trace)

	got, err := s.GetSample(ctx, "AIIMS-20251212-9f3a7c2b1e4d")
	require.NoError(t, err)
	assert.Equal(t, sampleEnvelope(domain.StatusValid, "trace-b"), got)
}

func TestGetSampleNotFound(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.GetSample(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSampleNotFound)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", Postgres.Rebind(q))
	assert.Contains(t, Postgres.upsertSample(), "$4::jsonb")
	assert.Contains(t, Postgres.upsertSample(), "$7)")
	assert.Equal(t, "postgres", Postgres.String())
	assert.Equal(t, "sqlite", SQLite.String())
}
