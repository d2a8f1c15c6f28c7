package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardioingest/pkg/domain"
)

func TestResolverMatchesActiveAliasCaseInsensitively(t *testing.T) {
	table, err := NewAliasTable([]domain.AliasRule{
		{AliasName: "Apolipoprotein B", CanonicalName: "ApoB", IsActive: true},
		{AliasName: "APOB", CanonicalName: "ApoB", IsActive: true},
		{AliasName: "LDL", CanonicalName: "LDL-C", IsActive: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	log := &captureLogger{}
	r := NewResolver(table, log)

	got, ok := r.Resolve("  apolipoprotein b ")
	require.True(t, ok)
	assert.Equal(t, "ApoB", got, "canonical name comes from the rule table, not the input")

	got, ok = r.Resolve("apob")
	require.True(t, ok)
	assert.Equal(t, "ApoB", got)

	_, ok = r.Resolve("LDL")
	assert.False(t, ok, "inactive rows are invisible")

	lines := log.lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "i:canonical name matched")
	assert.Contains(t, lines[2], "w:no canonical match found")
}

func TestResolverUnknownNameIsNotAnError(t *testing.T) {
	r := NewResolver(nil, nil)
	name, ok := r.Resolve("Unknown-XYZ")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestNewAliasTableRejectsConflictingActiveRows(t *testing.T) {
	_, err := NewAliasTable([]domain.AliasRule{
		{AliasName: "tg", CanonicalName: "Triglycerides", IsActive: true},
		{AliasName: "TG", CanonicalName: "Thyroglobulin", IsActive: true},
	})
	assert.ErrorIs(t, err, ErrConflictingRule)
}

func TestNewAliasTableToleratesAgreeingDuplicates(t *testing.T) {
	table, err := NewAliasTable([]domain.AliasRule{
		{AliasName: "tg", CanonicalName: "Triglycerides", IsActive: true},
		{AliasName: " TG ", CanonicalName: "Triglycerides", IsActive: true},
		{AliasName: "TG", CanonicalName: "Thyroglobulin", IsActive: false},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
}

func TestAliasTableTrimsStoredNames(t *testing.T) {
	table, err := NewAliasTable([]domain.AliasRule{
		{AliasName: " HbA1c\t", CanonicalName: "HbA1c", IsActive: true},
	})
	require.NoError(t, err)

	got, ok := table.Lookup("hba1c")
	require.True(t, ok)
	assert.Equal(t, "HbA1c", got)
}
