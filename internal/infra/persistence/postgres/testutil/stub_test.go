package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	insert := "INSERT INTO cis_biomarker_alias_map (alias_name, canonical_name, is_active) VALUES ($1, $2, $3)"
	for _, alias := range []string{"ApoB", "Apo-B"} {
		_, err := conn.ExecContext(ctx, insert, []driver.NamedValue{{Value: alias}, {Value: "ApoB"}, {Value: true}})
		if err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if len(conn.Tables["cis_biomarker_alias_map"]) != 2 {
		t.Fatalf("expected alias rows to be stored, got %v", conn.Tables)
	}

	rows, err := conn.QueryContext(ctx,
		"SELECT canonical_name FROM cis_biomarker_alias_map WHERE LOWER(TRIM(alias_name)) = $1 AND is_active = $2 LIMIT 1",
		[]driver.NamedValue{{Value: "apo-b"}, {Value: true}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "ApoB" {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM cis_biomarker_alias_map", nil); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if len(conn.Tables["cis_biomarker_alias_map"]) != 0 {
		t.Fatalf("expected table cleared, got %v", conn.Tables)
	}
}
