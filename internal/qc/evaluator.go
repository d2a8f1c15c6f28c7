package qc

import (
	"cardioingest/internal/logging"
	"cardioingest/pkg/domain"
)

// Evaluator computes per-biomarker QC tags and the sample summary.
type Evaluator struct {
	rules *Rules
	log   logging.Logger
}

// NewEvaluator builds an evaluator over rules. A nil logger discards output.
func NewEvaluator(rules *Rules, log logging.Logger) *Evaluator {
	if rules == nil {
		rules = NewRules(nil)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Evaluator{rules: rules, log: log}
}

// WithLogger returns an evaluator sharing e's rules that logs to log.
func (e *Evaluator) WithLogger(log logging.Logger) *Evaluator {
	if log == nil {
		return e
	}
	return &Evaluator{rules: e.rules, log: log}
}

// IsInvalid reports whether a normalized value carries no usable measurement:
// null, or an empty range object.
func IsInvalid(v domain.Value) bool {
	if v.IsNull() {
		return true
	}
	return v.Range != nil && v.Range.IsEmpty()
}

// Evaluate returns a tagged copy of biomarkers and the QC summary. The overall
// status is invalid iff some dominant biomarker is missing or invalid; other
// invalid biomarkers only count towards TotalInvalidMarkers.
func (e *Evaluator) Evaluate(biomarkers []domain.NormalizedBiomarker) ([]domain.NormalizedBiomarker, domain.QCSummary) {
	summary := domain.QCSummary{
		MissingCriticalBiomarkers: []domain.MissingCritical{},
		ImplausibleMarkers:        []string{},
		OverallStatus:             domain.StatusValid,
	}

	tagged := make([]domain.NormalizedBiomarker, len(biomarkers))
	present := make(map[string]domain.NormalizedBiomarker, len(biomarkers))
	for i, b := range biomarkers {
		if IsInvalid(b.NormalizedValue) {
			b.QCCheck = domain.QCInvalid
			summary.TotalInvalidMarkers++
		} else {
			b.QCCheck = domain.QCValid
		}
		if !e.rules.Expected(b.CanonicalName) {
			e.log.Debug("biomarker not in weightage mapping", "biomarker", b.CanonicalName)
		}
		tagged[i] = b
		// last write wins when two raw aliases share a canonical name
		present[b.CanonicalName] = b
	}

	for _, bucket := range e.rules.buckets {
		for _, name := range bucket.Dominant {
			b, ok := present[name]
			switch {
			case !ok:
				summary.MissingCriticalBiomarkers = append(summary.MissingCriticalBiomarkers, domain.MissingCritical{
					Biomarker: name, Bucket: bucket.Name, Reason: domain.ReasonNotCollected,
				})
			case b.QCCheck != domain.QCValid:
				summary.MissingCriticalBiomarkers = append(summary.MissingCriticalBiomarkers, domain.MissingCritical{
					Biomarker: name, Bucket: bucket.Name, Reason: domain.ReasonValueInvalid,
				})
			}
		}
	}

	if len(summary.MissingCriticalBiomarkers) > 0 {
		summary.MissingCriticalMarkers = true
		summary.OverallStatus = domain.StatusInvalid
	}
	e.log.Info("qc evaluated",
		"biomarkers", len(tagged),
		"invalid", summary.TotalInvalidMarkers,
		"missing_critical", len(summary.MissingCriticalBiomarkers),
		"overall_status", string(summary.OverallStatus))
	return tagged, summary
}
