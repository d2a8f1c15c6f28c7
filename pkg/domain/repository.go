package domain

import "context"

// AliasSource exposes the alias table.
type AliasSource interface {
	// LoadActiveAliases returns every active alias row.
	LoadActiveAliases(ctx context.Context) ([]AliasRule, error)
	// LookupActiveAlias resolves a single lowercased alias against active rows.
	LookupActiveAlias(ctx context.Context, alias string) (string, bool, error)
}

// ConversionSource exposes the unit conversion table.
type ConversionSource interface {
	LoadActiveConversions(ctx context.Context) ([]ConversionRule, error)
}

// DominantSource exposes the bucket/dominant biomarker mapping table.
type DominantSource interface {
	LoadDominantMappings(ctx context.Context) ([]DominantMapping, error)
}

// RuleSource combines the three rule tables read by the pipeline.
type RuleSource interface {
	AliasSource
	ConversionSource
	DominantSource
}

// SampleSink receives assembled envelopes. Save upserts by sample id; the
// last write wins.
type SampleSink interface {
	SaveSample(ctx context.Context, env SampleEnvelope) error
}

// SampleRepository reads and writes structured sample envelopes.
type SampleRepository interface {
	SampleSink
	GetSample(ctx context.Context, sampleID string) (SampleEnvelope, error)
}

// Store is a backend holding both rule tables and structured samples.
type Store interface {
	RuleSource
	SampleRepository
	Close() error
}

// RuleBundle is a full set of rule rows, as read from a seed file.
type RuleBundle struct {
	Aliases     []AliasRule       `json:"aliases"`
	Conversions []ConversionRule  `json:"conversions"`
	Mappings    []DominantMapping `json:"dominant_mappings"`
}

// RuleWriter replaces the contents of the rule tables.
type RuleWriter interface {
	SeedRules(ctx context.Context, rules RuleBundle) error
}
