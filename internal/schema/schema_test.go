package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	assert.ErrorIs(t, err, ErrInvalidSample)
	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestValidateAcceptsWellFormedSample(t *testing.T) {
	doc := []byte(`{
		"user_id": "u-1",
		"sample_id": "AIIMS-20251212-9f3a7c2b1e4d",
		"trace_id": "client-chosen",
		"metadata": {"lab": "AIIMS"},
		"biomarkers": {
			"Glucose (F)": {"raw_value": {"min": 4, "max": 6}, "raw_unit": "mmol/L", "is_range": true},
			"ApoB": {"raw_value": "102", "raw_unit": "mg/dL", "is_range": false, "comment": "fasting"},
			"HbA1c": {"raw_value": "", "raw_unit": "%", "is_range": false},
			"Lp(a)": {"raw_value": null, "raw_unit": "nmol/L", "is_range": true},
			"hsCRP": {"raw_value": {}, "raw_unit": "mg/L", "is_range": true}
		}
	}`)

	sample, err := Validate(doc)
	require.NoError(t, err)

	assert.Equal(t, "u-1", sample.UserID)
	assert.Empty(t, sample.TraceID, "client trace id is discarded")
	assert.JSONEq(t, `{"lab":"AIIMS"}`, string(sample.Metadata))

	var names []string
	for _, e := range sample.Biomarkers.Entries() {
		names = append(names, e.RawName)
	}
	assert.Equal(t, []string{"Glucose (F)", "ApoB", "HbA1c", "Lp(a)", "hsCRP"}, names)

	apob, ok := sample.Biomarkers.Get("ApoB")
	require.True(t, ok)
	assert.Equal(t, 102.0, *apob.RawValue.Scalar)
	assert.Equal(t, "fasting", apob.Comment)

	hba1c, _ := sample.Biomarkers.Get("HbA1c")
	assert.True(t, hba1c.RawValue.IsNull())

	crp, _ := sample.Biomarkers.Get("hsCRP")
	require.NotNil(t, crp.RawValue.Range)
	assert.True(t, crp.RawValue.Range.IsEmpty())
}

func TestValidateRejectsMissingIdentifiers(t *testing.T) {
	_, err := Validate([]byte(`{"biomarkers": {"ApoB": {"raw_value": 1, "raw_unit": "mg/dL", "is_range": false}}}`))
	assert.Equal(t, []string{"user_id", "sample_id"}, fields(t, err))
}

func TestValidateRejectsMissingOrEmptyBiomarkers(t *testing.T) {
	_, err := Validate([]byte(`{"user_id": "u", "sample_id": "s"}`))
	assert.Equal(t, []string{"biomarkers"}, fields(t, err))

	_, err = Validate([]byte(`{"user_id": "u", "sample_id": "s", "biomarkers": {}}`))
	assert.Equal(t, []string{"biomarkers"}, fields(t, err))

	_, err = Validate([]byte(`{"user_id": "u", "sample_id": "s", "biomarkers": ["ApoB"]}`))
	assert.Equal(t, []string{"biomarkers"}, fields(t, err))
}

func TestValidateRejectsNonObjectDocument(t *testing.T) {
	for _, doc := range []string{`[]`, `"sample"`, `{"user_id":`} {
		_, err := Validate([]byte(doc))
		assert.Equal(t, []string{""}, fields(t, err), doc)
	}
}

func TestValidateRejectsWrongIdentifierType(t *testing.T) {
	_, err := Validate([]byte(`{"user_id": 7, "sample_id": "s", "biomarkers": {"ApoB": {"raw_value": 1, "raw_unit": "mg/dL", "is_range": false}}}`))
	assert.Equal(t, []string{"user_id"}, fields(t, err))
}

func TestValidateRejectsIncompleteEntries(t *testing.T) {
	_, err := Validate([]byte(`{"user_id": "u", "sample_id": "s", "biomarkers": {
		"ApoB": {"raw_value": 1, "is_range": false},
		"LDL": {"raw_value": 1, "raw_unit": "mg/dL"}
	}}`))
	assert.Equal(t, []string{"biomarkers.ApoB.raw_unit", "biomarkers.LDL.is_range"}, fields(t, err))
}

func TestValidateRejectsShapeProblems(t *testing.T) {
	cases := map[string]string{
		"scalar flagged as range": `{"raw_value": 5, "raw_unit": "U", "is_range": true}`,
		"range flagged as scalar": `{"raw_value": {"min": 1, "max": 2}, "raw_unit": "U", "is_range": false}`,
		"half populated range":    `{"raw_value": {"min": 1}, "raw_unit": "U", "is_range": true}`,
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate([]byte(`{"user_id": "u", "sample_id": "s", "biomarkers": {"X": ` + entry + `}}`))
			assert.Equal(t, []string{"biomarkers.X.raw_value"}, fields(t, err))
		})
	}
}

func TestValidateRejectsNonNumericString(t *testing.T) {
	_, err := Validate([]byte(`{"user_id": "u", "sample_id": "s", "biomarkers": {"X": {"raw_value": "high", "raw_unit": "U", "is_range": false}}}`))
	assert.Equal(t, []string{"biomarkers"}, fields(t, err))
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{{Field: "user_id", Message: "is required"}, {Message: "bad"}}}
	assert.Equal(t, "invalid raw sample: user_id: is required; bad", err.Error())
}
