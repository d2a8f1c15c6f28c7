package canonical

import (
	"fmt"

	"cardioingest/internal/logging"
	"cardioingest/pkg/domain"
)

// AliasTable is an immutable lookup from normalized alias to canonical name.
type AliasTable struct {
	byAlias map[string]string
}

// NewAliasTable indexes the active rules. Inactive rows are skipped. Two active
// rows for the same case-insensitive alias must agree on the canonical name.
func NewAliasTable(rules []domain.AliasRule) (*AliasTable, error) {
	t := &AliasTable{byAlias: make(map[string]string, len(rules))}
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		key := domain.NormalizeKey(r.AliasName)
		if key == "" {
			continue
		}
		if existing, ok := t.byAlias[key]; ok && existing != r.CanonicalName {
			return nil, fmt.Errorf("alias %q maps to %q and %q: %w", key, existing, r.CanonicalName, ErrConflictingRule)
		}
		t.byAlias[key] = r.CanonicalName
	}
	return t, nil
}

// Len returns the number of active aliases.
func (t *AliasTable) Len() int { return len(t.byAlias) }

// Lookup resolves an already-normalized alias.
func (t *AliasTable) Lookup(alias string) (string, bool) {
	name, ok := t.byAlias[alias]
	return name, ok
}

// Resolver maps raw biomarker names to canonical names.
type Resolver struct {
	table *AliasTable
	log   logging.Logger
}

// NewResolver builds a resolver over table. A nil logger discards output.
func NewResolver(table *AliasTable, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	if table == nil {
		table = &AliasTable{byAlias: map[string]string{}}
	}
	return &Resolver{table: table, log: log}
}

// WithLogger returns a resolver sharing r's table that logs to log.
func (r *Resolver) WithLogger(log logging.Logger) *Resolver {
	if log == nil {
		return r
	}
	return &Resolver{table: r.table, log: log}
}

// Resolve returns the canonical name exactly as stored in the alias table.
// An unknown name is reported through ok=false, never as an error.
func (r *Resolver) Resolve(rawName string) (canonical string, ok bool) {
	canonical, ok = r.table.Lookup(domain.NormalizeKey(rawName))
	if !ok {
		r.log.Warn("no canonical match found", "raw_name", rawName)
		return "", false
	}
	r.log.Info("canonical name matched", "raw_name", rawName, "canonical_name", canonical)
	return canonical, true
}
