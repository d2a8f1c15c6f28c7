// Package qc evaluates sample completeness: per-biomarker validity tags and
// the dominant-biomarker check per clinical bucket.
package qc

import "cardioingest/pkg/domain"

// Bucket lists the dominant biomarkers of one clinical bucket in load order.
type Bucket struct {
	Name     string
	Dominant []string
}

// Rules is the immutable bucket -> dominant biomarker rule set.
type Rules struct {
	buckets  []Bucket
	expected map[string]struct{}
}

// NewRules indexes dominant mappings. Buckets and their dominant members keep
// first-seen order so summaries are deterministic. Every mapped biomarker,
// whatever its role, is part of the expected set.
func NewRules(mappings []domain.DominantMapping) *Rules {
	r := &Rules{expected: make(map[string]struct{}, len(mappings))}
	index := map[string]int{}
	seen := map[[2]string]struct{}{}
	for _, m := range mappings {
		r.expected[m.BiomarkerName] = struct{}{}
		if domain.ParseRole(string(m.Role)) != domain.RoleDominant {
			continue
		}
		pair := [2]string{m.BucketName, m.BiomarkerName}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		i, ok := index[m.BucketName]
		if !ok {
			i = len(r.buckets)
			index[m.BucketName] = i
			r.buckets = append(r.buckets, Bucket{Name: m.BucketName})
		}
		r.buckets[i].Dominant = append(r.buckets[i].Dominant, m.BiomarkerName)
	}
	return r
}

// Buckets returns a copy of the buckets that have at least one dominant member.
func (r *Rules) Buckets() []Bucket {
	out := make([]Bucket, len(r.buckets))
	for i, b := range r.buckets {
		out[i] = Bucket{Name: b.Name, Dominant: append([]string(nil), b.Dominant...)}
	}
	return out
}

// Expected reports whether the biomarker appears anywhere in the mapping table.
func (r *Rules) Expected(name string) bool {
	_, ok := r.expected[name]
	return ok
}

// ExpectedCount returns the number of distinct mapped biomarkers.
func (r *Rules) ExpectedCount() int { return len(r.expected) }
