// Package memory provides an in-memory implementation of the rule tables and
// sample repository used for tests and ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cardioingest/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.Store      = (*Store)(nil)
	_ domain.RuleWriter = (*Store)(nil)
)

// Store keeps rules and encoded samples in process memory.
type Store struct {
	mu      sync.RWMutex
	rules   domain.RuleBundle
	samples map[string]json.RawMessage
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{samples: make(map[string]json.RawMessage)}
}

// NewStoreWithRules constructs a store preloaded with rules.
func NewStoreWithRules(rules domain.RuleBundle) *Store {
	s := NewStore()
	s.rules = cloneBundle(rules)
	return s
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// LoadActiveAliases returns the active alias rows.
func (s *Store) LoadActiveAliases(context.Context) ([]domain.AliasRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AliasRule
	for _, a := range s.rules.Aliases {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// LookupActiveAlias resolves one alias case-insensitively.
func (s *Store) LookupActiveAlias(_ context.Context, alias string) (string, bool, error) {
	key := domain.NormalizeKey(alias)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.rules.Aliases {
		if a.IsActive && domain.NormalizeKey(a.AliasName) == key {
			return a.CanonicalName, true, nil
		}
	}
	return "", false, nil
}

// LoadActiveConversions returns the active conversion rows.
func (s *Store) LoadActiveConversions(context.Context) ([]domain.ConversionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ConversionRule
	for _, c := range s.rules.Conversions {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// LoadDominantMappings returns every mapping row with its role normalised.
func (s *Store) LoadDominantMappings(context.Context) ([]domain.DominantMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DominantMapping, 0, len(s.rules.Mappings))
	for _, m := range s.rules.Mappings {
		m.Role = domain.ParseRole(string(m.Role))
		out = append(out, m)
	}
	return out, nil
}

// SeedRules replaces all rule rows.
func (s *Store) SeedRules(_ context.Context, rules domain.RuleBundle) error {
	s.mu.Lock()
	s.rules = cloneBundle(rules)
	s.mu.Unlock()
	return nil
}

// SaveSample upserts env by sample id.
func (s *Store) SaveSample(_ context.Context, env domain.SampleEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", env.SampleID, err)
	}
	s.mu.Lock()
	s.samples[env.SampleID] = payload
	s.mu.Unlock()
	return nil
}

// GetSample decodes a stored envelope.
func (s *Store) GetSample(_ context.Context, sampleID string) (domain.SampleEnvelope, error) {
	s.mu.RLock()
	payload, ok := s.samples[sampleID]
	s.mu.RUnlock()
	if !ok {
		return domain.SampleEnvelope{}, fmt.Errorf("%s: %w", sampleID, domain.ErrSampleNotFound)
	}
	var env domain.SampleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.SampleEnvelope{}, fmt.Errorf("decode sample %s: %w", sampleID, err)
	}
	return env, nil
}

func cloneBundle(in domain.RuleBundle) domain.RuleBundle {
	return domain.RuleBundle{
		Aliases:     append([]domain.AliasRule(nil), in.Aliases...),
		Conversions: append([]domain.ConversionRule(nil), in.Conversions...),
		Mappings:    append([]domain.DominantMapping(nil), in.Mappings...),
	}
}
