// Package seed loads rule tables from a YAML file and writes them into a
// store. It backs the "rules seed" command and local fixtures.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cardioingest/pkg/domain"
)

// ErrInvalidRules reports a seed file row that cannot be stored.
var ErrInvalidRules = errors.New("invalid rules file")

// LoadFile reads and validates a rules file.
func LoadFile(path string) (domain.RuleBundle, error) {
	// #nosec G304 -- rules path is provided by the operator on the command line
	f, err := os.Open(path)
	if err != nil {
		return domain.RuleBundle{}, fmt.Errorf("open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// document mirrors the YAML layout. is_active may be omitted and then
// defaults to true, the same default the rule tables declare.
type document struct {
	Aliases     []aliasRow      `yaml:"aliases"`
	Conversions []conversionRow `yaml:"conversions"`
	Mappings    []mappingRow    `yaml:"dominant_mappings"`
}

type aliasRow struct {
	AliasName     string `yaml:"alias_name"`
	CanonicalName string `yaml:"canonical_name"`
	IsActive      *bool  `yaml:"is_active"`
}

type conversionRow struct {
	BiomarkerName string  `yaml:"biomarker_name"`
	UnitFrom      string  `yaml:"unit_from"`
	UnitTo        string  `yaml:"unit_to"`
	Factor        float64 `yaml:"factor"`
	Offset        float64 `yaml:"offset"`
	IsActive      *bool   `yaml:"is_active"`
}

type mappingRow struct {
	BiomarkerName string `yaml:"biomarker_name"`
	BucketName    string `yaml:"bucket_name"`
	Role          string `yaml:"role"`
}

func activeOrDefault(b *bool) bool { return b == nil || *b }

func (d document) bundle() domain.RuleBundle {
	var out domain.RuleBundle
	for _, a := range d.Aliases {
		out.Aliases = append(out.Aliases, domain.AliasRule{
			AliasName:     a.AliasName,
			CanonicalName: a.CanonicalName,
			IsActive:      activeOrDefault(a.IsActive),
		})
	}
	for _, c := range d.Conversions {
		out.Conversions = append(out.Conversions, domain.ConversionRule{
			BiomarkerName: c.BiomarkerName,
			UnitFrom:      c.UnitFrom,
			UnitTo:        c.UnitTo,
			Factor:        c.Factor,
			Offset:        c.Offset,
			IsActive:      activeOrDefault(c.IsActive),
		})
	}
	for _, m := range d.Mappings {
		out.Mappings = append(out.Mappings, domain.DominantMapping{
			BiomarkerName: m.BiomarkerName,
			BucketName:    m.BucketName,
			Role:          domain.ParseRole(m.Role),
		})
	}
	return out
}

// Decode parses a YAML rules document. Unknown keys are rejected.
func Decode(r io.Reader) (domain.RuleBundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return domain.RuleBundle{}, fmt.Errorf("parse rules file: %w", err)
	}
	bundle := doc.bundle()
	if err := Validate(bundle); err != nil {
		return domain.RuleBundle{}, err
	}
	return bundle, nil
}

// Validate checks that every row carries its key columns.
func Validate(b domain.RuleBundle) error {
	var problems []string
	for i, a := range b.Aliases {
		if strings.TrimSpace(a.AliasName) == "" || strings.TrimSpace(a.CanonicalName) == "" {
			problems = append(problems, fmt.Sprintf("aliases[%d]: alias_name and canonical_name are required", i))
		}
	}
	for i, c := range b.Conversions {
		if strings.TrimSpace(c.BiomarkerName) == "" || strings.TrimSpace(c.UnitFrom) == "" || strings.TrimSpace(c.UnitTo) == "" {
			problems = append(problems, fmt.Sprintf("conversions[%d]: biomarker_name, unit_from and unit_to are required", i))
		}
		if c.Factor == 0 {
			problems = append(problems, fmt.Sprintf("conversions[%d]: factor must be non-zero", i))
		}
	}
	for i, m := range b.Mappings {
		if strings.TrimSpace(m.BiomarkerName) == "" || strings.TrimSpace(m.BucketName) == "" {
			problems = append(problems, fmt.Sprintf("dominant_mappings[%d]: biomarker_name and bucket_name are required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(problems, "; "))
	}
	return nil
}

// Apply replaces the store's rule tables with bundle.
func Apply(ctx context.Context, w domain.RuleWriter, bundle domain.RuleBundle) error {
	if err := w.SeedRules(ctx, bundle); err != nil {
		return fmt.Errorf("seed rules: %w", err)
	}
	return nil
}
