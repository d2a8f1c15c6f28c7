package domain

import "strings"

// AliasRule maps a lab-specific biomarker alias to its canonical name.
type AliasRule struct {
	AliasName     string `json:"alias_name"`
	CanonicalName string `json:"canonical_name"`
	IsActive      bool   `json:"is_active"`
}

// ConversionRule rewrites a biomarker value from UnitFrom into UnitTo as
// value*Factor + Offset.
type ConversionRule struct {
	BiomarkerName string  `json:"biomarker_name"`
	UnitFrom      string  `json:"unit_from"`
	UnitTo        string  `json:"unit_to"`
	Factor        float64 `json:"factor"`
	Offset        float64 `json:"offset"`
	IsActive      bool    `json:"is_active"`
}

// Role classifies a biomarker within a bucket.
type Role string

const (
	// RoleDominant marks a biomarker mandatory for its bucket to be complete.
	RoleDominant Role = "Dominant"
	// RoleOther marks any non-mandatory bucket member.
	RoleOther Role = "Other"
)

// ParseRole maps a stored role string onto a Role. Anything other than a
// case-insensitive "dominant" is RoleOther.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleDominant)) {
		return RoleDominant
	}
	return RoleOther
}

// DominantMapping places a biomarker in a clinical bucket with a role.
type DominantMapping struct {
	BiomarkerName string `json:"biomarker_name"`
	BucketName    string `json:"bucket_name"`
	Role          Role   `json:"role"`
}

// NormalizeKey is the lookup normalization used for aliases, biomarker names
// and units: surrounding whitespace trimmed, lowercased.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
