package pipeline

import (
	"context"
	"fmt"

	"cardioingest/internal/canonical"
	"cardioingest/internal/qc"
	"cardioingest/pkg/domain"
)

// RuleSet is the immutable snapshot of the three rule tables. It is built
// once per coordinator and shared read-only by every run.
type RuleSet struct {
	Aliases     *canonical.AliasTable
	Conversions *canonical.ConversionTable
	QC          *qc.Rules
}

// LoadRuleSet reads every table from src. Any failure aborts the load; a
// partial rule set is never returned.
func LoadRuleSet(ctx context.Context, src domain.RuleSource) (*RuleSet, error) {
	if src == nil {
		return nil, fmt.Errorf("rule source required")
	}
	aliases, err := src.LoadActiveAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alias rules: %w", err)
	}
	conversions, err := src.LoadActiveConversions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversion rules: %w", err)
	}
	mappings, err := src.LoadDominantMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dominant mappings: %w", err)
	}
	return NewRuleSet(aliases, conversions, mappings)
}

// NewRuleSet indexes rule rows that were loaded elsewhere.
func NewRuleSet(aliases []domain.AliasRule, conversions []domain.ConversionRule, mappings []domain.DominantMapping) (*RuleSet, error) {
	aliasTable, err := canonical.NewAliasTable(aliases)
	if err != nil {
		return nil, err
	}
	convTable, err := canonical.NewConversionTable(conversions)
	if err != nil {
		return nil, err
	}
	return &RuleSet{Aliases: aliasTable, Conversions: convTable, QC: qc.NewRules(mappings)}, nil
}
