// Package domain defines the biomarker records, rule rows, and sample
// envelope shared by the ingestion pipeline and its storage adapters.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawBiomarkerEntry is a single lab-reported biomarker as accepted by schema
// validation. It is immutable input to the pipeline.
type RawBiomarkerEntry struct {
	RawName  string `json:"-"`
	RawValue Value  `json:"raw_value"`
	RawUnit  string `json:"raw_unit"`
	IsRange  bool   `json:"is_range"`
	Comment  string `json:"comment,omitempty"`
}

// BiomarkerSet is an ordered mapping of raw biomarker names to entries.
// Order follows the inbound JSON object; a repeated key replaces the earlier
// entry in place.
type BiomarkerSet struct {
	entries []RawBiomarkerEntry
	index   map[string]int
}

// NewBiomarkerSet builds a set from entries, keyed by RawName.
func NewBiomarkerSet(entries ...RawBiomarkerEntry) BiomarkerSet {
	var s BiomarkerSet
	for _, e := range entries {
		s.Set(e)
	}
	return s
}

// Set inserts or replaces the entry keyed by e.RawName.
func (s *BiomarkerSet) Set(e RawBiomarkerEntry) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[e.RawName]; ok {
		s.entries[i] = e
		return
	}
	s.index[e.RawName] = len(s.entries)
	s.entries = append(s.entries, e)
}

// Get returns the entry stored under rawName.
func (s BiomarkerSet) Get(rawName string) (RawBiomarkerEntry, bool) {
	i, ok := s.index[rawName]
	if !ok {
		return RawBiomarkerEntry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of entries.
func (s BiomarkerSet) Len() int { return len(s.entries) }

// Entries returns a copy of the entries in insertion order.
func (s BiomarkerSet) Entries() []RawBiomarkerEntry {
	out := make([]RawBiomarkerEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// MarshalJSON renders the set as a JSON object preserving order.
func (s BiomarkerSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.RawName)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of raw entries, keeping key order.
func (s *BiomarkerSet) UnmarshalJSON(data []byte) error {
	*s = BiomarkerSet{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("biomarkers must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected biomarker key %v", keyTok)
		}
		var entry RawBiomarkerEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("biomarker %q: %w", name, err)
		}
		entry.RawName = name
		s.Set(entry)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// QCCheck is the per-biomarker quality tag.
type QCCheck string

const (
	QCValid   QCCheck = "valid"
	QCInvalid QCCheck = "invalid"
)

// NormalizedBiomarker is a canonicalized, unit-normalized biomarker. It is
// mutated only by the pipeline.
type NormalizedBiomarker struct {
	CanonicalName   string  `json:"canonical_name"`
	RawName         string  `json:"raw_name,omitempty"`
	NormalizedValue Value   `json:"normalized_value"`
	NormalizedUnit  string  `json:"normalized_unit"`
	IsRange         bool    `json:"is_range"`
	Comment         string  `json:"comment"`
	QCCheck         QCCheck `json:"qc_check,omitempty"`
}
