package domain

import (
	"encoding/json"
	"testing"
)

func TestBiomarkerSetKeepsDocumentOrder(t *testing.T) {
	doc := `{"Zinc":{"raw_value":1,"raw_unit":"ug/dL","is_range":false},
		"ApoB":{"raw_value":null,"raw_unit":"mg/dL","is_range":false},
		"LDL":{"raw_value":{"min":1,"max":2},"raw_unit":"mg/dL","is_range":true,"comment":"lab"}}`
	var s BiomarkerSet
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"Zinc", "ApoB", "LDL"} {
		if entries[i].RawName != want {
			t.Fatalf("entry %d = %s, want %s", i, entries[i].RawName, want)
		}
	}
	ldl, ok := s.Get("LDL")
	if !ok || ldl.Comment != "lab" || !ldl.IsRange {
		t.Fatalf("unexpected LDL entry %+v", ldl)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again BiomarkerSet
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if again.Entries()[0].RawName != "Zinc" {
		t.Fatalf("order lost on re-encode: %s", out)
	}
}

func TestBiomarkerSetRepeatedKeyReplacesInPlace(t *testing.T) {
	s := NewBiomarkerSet(
		RawBiomarkerEntry{RawName: "A", RawUnit: "x"},
		RawBiomarkerEntry{RawName: "B", RawUnit: "y"},
		RawBiomarkerEntry{RawName: "A", RawUnit: "z"},
	)
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
	if e := s.Entries()[0]; e.RawName != "A" || e.RawUnit != "z" {
		t.Fatalf("unexpected first entry %+v", e)
	}
}

func TestBiomarkerSetRejectsArrays(t *testing.T) {
	var s BiomarkerSet
	if err := json.Unmarshal([]byte(`[1,2]`), &s); err == nil {
		t.Fatalf("expected error for array")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"Dominant":   RoleDominant,
		" dominant ": RoleDominant,
		"Other":      RoleOther,
		"":           RoleOther,
		"Secondary":  RoleOther,
	} {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q)=%s want %s", in, got, want)
		}
	}
	if NormalizeKey("  Glucose (F) ") != "glucose (f)" {
		t.Fatalf("NormalizeKey did not trim and lowercase")
	}
}
