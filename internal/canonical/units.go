package canonical

import (
	"fmt"

	"cardioingest/internal/logging"
	"cardioingest/pkg/domain"
)

type unitKey struct {
	biomarker string
	unit      string
}

// ConversionTable is an immutable lookup keyed by
// (lower(biomarker), lower(unit_from)).
type ConversionTable struct {
	rules map[unitKey]domain.ConversionRule
}

// NewConversionTable indexes the active rules. At most one active rule may
// exist per key unless the duplicates are identical.
func NewConversionTable(rules []domain.ConversionRule) (*ConversionTable, error) {
	t := &ConversionTable{rules: make(map[unitKey]domain.ConversionRule, len(rules))}
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		k := unitKey{biomarker: domain.NormalizeKey(r.BiomarkerName), unit: domain.NormalizeKey(r.UnitFrom)}
		if existing, ok := t.rules[k]; ok && !sameConversion(existing, r) {
			return nil, fmt.Errorf("conversion (%s, %s): %w", k.biomarker, k.unit, ErrConflictingRule)
		}
		t.rules[k] = r
	}
	return t, nil
}

func sameConversion(a, b domain.ConversionRule) bool {
	return a.UnitTo == b.UnitTo && a.Factor == b.Factor && a.Offset == b.Offset
}

// Len returns the number of active rules.
func (t *ConversionTable) Len() int { return len(t.rules) }

// Lookup finds the rule for a biomarker reported in unit.
func (t *ConversionTable) Lookup(biomarker, unit string) (domain.ConversionRule, bool) {
	r, ok := t.rules[unitKey{biomarker: domain.NormalizeKey(biomarker), unit: domain.NormalizeKey(unit)}]
	return r, ok
}

// Normalizer rewrites biomarker values into canonical units.
type Normalizer struct {
	table *ConversionTable
	log   logging.Logger
}

// NewNormalizer builds a normalizer over table. A nil logger discards output.
func NewNormalizer(table *ConversionTable, log logging.Logger) *Normalizer {
	if log == nil {
		log = logging.Nop()
	}
	if table == nil {
		table = &ConversionTable{rules: map[unitKey]domain.ConversionRule{}}
	}
	return &Normalizer{table: table, log: log}
}

// WithLogger returns a normalizer sharing n's table that logs to log.
func (n *Normalizer) WithLogger(log logging.Logger) *Normalizer {
	if log == nil {
		return n
	}
	return &Normalizer{table: n.table, log: log}
}

// HasRule reports whether a conversion applies to the biomarker/unit pair.
func (n *Normalizer) HasRule(canonical, unit string) bool {
	_, ok := n.table.Lookup(canonical, unit)
	return ok
}

// Normalize converts entry into the canonical unit for canonical. Without a
// rule the value, unit and range-ness are copied verbatim. With a rule every
// present number x becomes x*factor+offset, unrounded. IsRange is never
// changed.
func (n *Normalizer) Normalize(canonical string, entry domain.RawBiomarkerEntry) (domain.NormalizedBiomarker, error) {
	out := domain.NormalizedBiomarker{
		CanonicalName:   canonical,
		RawName:         entry.RawName,
		NormalizedValue: entry.RawValue.Clone(),
		NormalizedUnit:  entry.RawUnit,
		IsRange:         entry.IsRange,
		Comment:         entry.Comment,
	}
	rule, ok := n.table.Lookup(canonical, entry.RawUnit)
	if !ok {
		n.log.Info("no unit conversion required, keeping raw values",
			"biomarker", canonical, "raw_unit", domain.NormalizeKey(entry.RawUnit))
		return out, nil
	}
	if err := checkShape(entry); err != nil {
		return domain.NormalizedBiomarker{}, fmt.Errorf("normalize %q: %w", canonical, err)
	}
	out.NormalizedValue = convert(entry.RawValue, rule.Factor, rule.Offset)
	out.NormalizedUnit = rule.UnitTo
	n.log.Debug("unit converted",
		"biomarker", canonical, "unit_from", entry.RawUnit, "unit_to", rule.UnitTo,
		"factor", rule.Factor, "offset", rule.Offset)
	return out, nil
}

// checkShape enforces the contract the schema validator already guarantees.
// Null values and empty ranges are allowed through for QC to tag.
func checkShape(e domain.RawBiomarkerEntry) error {
	v := e.RawValue
	if e.IsRange {
		if v.Scalar != nil {
			return ErrShapeMismatch
		}
		if v.Range != nil && !v.Range.IsEmpty() && !v.Range.IsComplete() {
			return ErrMalformedRange
		}
		return nil
	}
	if v.Range != nil {
		return ErrShapeMismatch
	}
	return nil
}

func convert(v domain.Value, factor, offset float64) domain.Value {
	out := v.Clone()
	apply := func(x *float64) {
		if x != nil {
			*x = *x*factor + offset
		}
	}
	apply(out.Scalar)
	if out.Range != nil {
		apply(out.Range.Min)
		apply(out.Range.Max)
	}
	return out
}
