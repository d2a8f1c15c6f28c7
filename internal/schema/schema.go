// Package schema validates inbound raw sample documents before they reach the
// pipeline.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"cardioingest/pkg/domain"
)

// ErrInvalidSample is matched by every ValidationError.
var ErrInvalidSample = errors.New("invalid raw sample")

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a document.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid raw sample: " + strings.Join(parts, "; ")
}

// Unwrap lets callers test with errors.Is(err, ErrInvalidSample).
func (e *ValidationError) Unwrap() error { return ErrInvalidSample }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// wireEntry mirrors a biomarker object with presence tracking for the
// required keys.
type wireEntry struct {
	RawUnit *string `json:"raw_unit" validate:"required"`
	IsRange *bool   `json:"is_range" validate:"required"`
	Comment *string `json:"comment"`
}

// Validator checks raw sample documents. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

var defaultValidator = New()

// Validate checks data with a shared Validator.
func Validate(data []byte) (domain.RawSample, error) {
	return defaultValidator.Validate(data)
}

// Validate decodes data into a RawSample. Any client-supplied trace id is
// discarded. A *ValidationError is returned when the document is rejected.
func (s *Validator) Validate(data []byte) (domain.RawSample, error) {
	verr := &ValidationError{}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		verr.add("", "document must be a JSON object: %v", err)
		return domain.RawSample{}, verr
	}

	var sample domain.RawSample
	if err := json.Unmarshal(data, &sample); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Struct == "RawSample" {
			verr.add(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
		} else {
			verr.add("biomarkers", "%v", err)
		}
		return domain.RawSample{}, verr
	}
	sample.TraceID = ""

	if err := s.v.Struct(sample); err != nil {
		s.collect(verr, "", err)
	}

	raw, ok := top["biomarkers"]
	switch {
	case !ok || isNull(raw):
		verr.add("biomarkers", "is required")
	case sample.Biomarkers.Len() == 0:
		verr.add("biomarkers", "must contain at least one biomarker")
	default:
		s.checkEntries(verr, raw, sample.Biomarkers)
	}

	if len(verr.Fields) > 0 {
		return domain.RawSample{}, verr
	}
	return sample, nil
}

func (s *Validator) checkEntries(verr *ValidationError, raw json.RawMessage, set domain.BiomarkerSet) {
	var wire map[string]wireEntry
	if err := json.Unmarshal(raw, &wire); err != nil {
		verr.add("biomarkers", "%v", err)
		return
	}
	names := make([]string, 0, len(wire))
	for name := range wire {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prefix := "biomarkers." + name
		if err := s.v.Struct(wire[name]); err != nil {
			s.collect(verr, prefix+".", err)
			continue
		}
		entry, _ := set.Get(name)
		checkShape(verr, prefix, entry)
	}
}

func checkShape(verr *ValidationError, prefix string, e domain.RawBiomarkerEntry) {
	v := e.RawValue
	switch {
	case e.IsRange && v.Scalar != nil:
		verr.add(prefix+".raw_value", "is_range is true but value is a scalar")
	case !e.IsRange && v.Range != nil:
		verr.add(prefix+".raw_value", "is_range is false but value is a range")
	case v.Range != nil && !v.Range.IsEmpty() && !v.Range.IsComplete():
		verr.add(prefix+".raw_value", "range must carry both min and max")
	}
}

func (s *Validator) collect(verr *ValidationError, prefix string, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add(strings.TrimSuffix(prefix, "."), "%v", err)
		return
	}
	for _, fe := range fieldErrs {
		msg := "failed " + fe.Tag()
		if fe.Tag() == "required" {
			msg = "is required"
		}
		verr.add(prefix+fe.Field(), "%s", msg)
	}
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
