package domain

import (
	"encoding/json"
	"errors"
)

// PayloadVersion tags stored envelopes.
const PayloadVersion = "v1.0"

// ErrSampleNotFound is returned when no stored envelope exists for a sample id.
var ErrSampleNotFound = errors.New("sample not found")

// QCStatus is the overall verdict for a sample.
type QCStatus string

const (
	StatusValid   QCStatus = "valid"
	StatusInvalid QCStatus = "invalid"
)

// Reason explains why a dominant biomarker was recorded as missing.
type Reason string

const (
	ReasonNotCollected Reason = "not_collected"
	ReasonValueInvalid Reason = "value_invalid"
)

// MissingCritical records a dominant biomarker that was absent or invalid.
type MissingCritical struct {
	Biomarker string `json:"biomarker"`
	Bucket    string `json:"bucket"`
	Reason    Reason `json:"reason"`
}

// QCSummary is computed once per run and not modified afterwards.
type QCSummary struct {
	MissingCriticalMarkers    bool              `json:"missing_critical_markers"`
	MissingCriticalBiomarkers []MissingCritical `json:"missing_critical_biomarkers"`
	TotalInvalidMarkers       int               `json:"total_invalid_markers"`
	// ImplausibleMarkers is reserved and always empty.
	ImplausibleMarkers []string `json:"implausible_markers"`
	OverallStatus      QCStatus `json:"overall_status"`
}

// RawSample is a schema-validated inbound sample.
type RawSample struct {
	UserID     string          `json:"user_id" validate:"required"`
	SampleID   string          `json:"sample_id" validate:"required"`
	TraceID    string          `json:"trace_id,omitempty"`
	Biomarkers BiomarkerSet    `json:"biomarkers"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// SampleEnvelope is the structured output of one ingestion run.
type SampleEnvelope struct {
	UserID     string                `json:"user_id"`
	SampleID   string                `json:"sample_id"`
	TraceID    string                `json:"trace_id"`
	Biomarkers []NormalizedBiomarker `json:"biomarkers"`
	QCSummary  QCSummary             `json:"qc_summary"`
	Metadata   json.RawMessage       `json:"metadata,omitempty"`
}
