package sqlrepo

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken by the underlying database.
type Dialect int

const (
	// SQLite uses ? placeholders and TEXT/INTEGER storage classes.
	SQLite Dialect = iota
	// Postgres uses $n placeholders, JSONB payloads and BOOLEAN flags.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) schema() []string {
	if d == Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS cis_biomarker_alias_map (
		alias_name TEXT NOT NULL,
		canonical_name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
			`CREATE TABLE IF NOT EXISTS cis_unit_conversion (
		biomarker_name TEXT NOT NULL,
		unit_from TEXT NOT NULL,
		unit_to TEXT NOT NULL,
		factor DOUBLE PRECISION NOT NULL,
		additive_offset DOUBLE PRECISION NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
			`CREATE TABLE IF NOT EXISTS cis_biomarker_weightage_mapping (
		biomarker_name TEXT NOT NULL,
		bucket_name TEXT NOT NULL,
		role TEXT NOT NULL
	)`,
			`CREATE TABLE IF NOT EXISTS structured_biomarker_samples (
		sample_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		trace_id TEXT NOT NULL,
		structured_payload JSONB NOT NULL,
		version TEXT NOT NULL,
		qc_overall_status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS cis_biomarker_alias_map (
		alias_name TEXT NOT NULL,
		canonical_name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
		`CREATE TABLE IF NOT EXISTS cis_unit_conversion (
		biomarker_name TEXT NOT NULL,
		unit_from TEXT NOT NULL,
		unit_to TEXT NOT NULL,
		factor REAL NOT NULL,
		additive_offset REAL NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
		`CREATE TABLE IF NOT EXISTS cis_biomarker_weightage_mapping (
		biomarker_name TEXT NOT NULL,
		bucket_name TEXT NOT NULL,
		role TEXT NOT NULL
	)`,
		`CREATE TABLE IF NOT EXISTS structured_biomarker_samples (
		sample_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		trace_id TEXT NOT NULL,
		structured_payload TEXT NOT NULL,
		version TEXT NOT NULL,
		qc_overall_status TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	}
}

func (d Dialect) upsertSample() string {
	payload := "?"
	if d == Postgres {
		payload = "?::jsonb"
	}
	return d.Rebind(`INSERT INTO structured_biomarker_samples (sample_id, user_id, trace_id, structured_payload, version, qc_overall_status, updated_at)
	VALUES (?, ?, ?, ` + payload + `, ?, ?, ?)
	ON CONFLICT (sample_id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		trace_id = EXCLUDED.trace_id,
		structured_payload = EXCLUDED.structured_payload,
		version = EXCLUDED.version,
		qc_overall_status = EXCLUDED.qc_overall_status,
		updated_at = EXCLUDED.updated_at`)
}
