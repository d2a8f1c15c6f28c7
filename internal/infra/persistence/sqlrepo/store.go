// Package sqlrepo implements the rule tables and structured sample storage
// over database/sql. The postgres and sqlite packages open a connection and
// hand it to this package with the matching Dialect.
package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cardioingest/pkg/domain"
)

var (
	_ domain.Store      = (*Store)(nil)
	_ domain.RuleWriter = (*Store)(nil)
)

// Store reads rule tables and upserts structured samples.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	mu      sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps db. The caller keeps ownership until Close is called.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the SQL flavour in use.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the rule and sample tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// LoadActiveAliases returns every active alias row.
func (s *Store) LoadActiveAliases(ctx context.Context) ([]domain.AliasRule, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT alias_name, canonical_name, is_active FROM cis_biomarker_alias_map WHERE is_active = ?`), true)
	if err != nil {
		return nil, fmt.Errorf("select aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AliasRule
	for rows.Next() {
		var r domain.AliasRule
		if err := rows.Scan(&r.AliasName, &r.CanonicalName, &r.IsActive); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}
	return out, nil
}

// LookupActiveAlias resolves one alias against the active rows. The
// comparison is case-insensitive.
func (s *Store) LookupActiveAlias(ctx context.Context, alias string) (string, bool, error) {
	var canonical string
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT canonical_name FROM cis_biomarker_alias_map WHERE LOWER(TRIM(alias_name)) = ? AND is_active = ? LIMIT 1`),
		domain.NormalizeKey(alias), true).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup alias %q: %w", alias, err)
	}
	return canonical, true, nil
}

// LoadActiveConversions returns every active unit conversion row.
func (s *Store) LoadActiveConversions(ctx context.Context) ([]domain.ConversionRule, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(
		`SELECT biomarker_name, unit_from, unit_to, factor, additive_offset, is_active FROM cis_unit_conversion WHERE is_active = ?`), true)
	if err != nil {
		return nil, fmt.Errorf("select conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ConversionRule
	for rows.Next() {
		var r domain.ConversionRule
		if err := rows.Scan(&r.BiomarkerName, &r.UnitFrom, &r.UnitTo, &r.Factor, &r.Offset, &r.IsActive); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversions: %w", err)
	}
	return out, nil
}

// LoadDominantMappings returns every bucket mapping row.
func (s *Store) LoadDominantMappings(ctx context.Context) ([]domain.DominantMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT biomarker_name, bucket_name, role FROM cis_biomarker_weightage_mapping`)
	if err != nil {
		return nil, fmt.Errorf("select dominant mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.DominantMapping
	for rows.Next() {
		var (
			m    domain.DominantMapping
			role string
		)
		if err := rows.Scan(&m.BiomarkerName, &m.BucketName, &role); err != nil {
			return nil, fmt.Errorf("scan dominant mapping: %w", err)
		}
		m.Role = domain.ParseRole(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dominant mappings: %w", err)
	}
	return out, nil
}

// SaveSample upserts env keyed by sample id. The last write wins.
func (s *Store) SaveSample(ctx context.Context, env domain.SampleEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode sample %s: %w", env.SampleID, err)
	}
	_, err = s.db.ExecContext(ctx, s.dialect.upsertSample(),
		env.SampleID,
		env.UserID,
		env.TraceID,
		string(payload),
		domain.PayloadVersion,
		string(env.QCSummary.OverallStatus),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert sample %s: %w", env.SampleID, err)
	}
	return nil
}

// GetSample reads back a stored envelope.
func (s *Store) GetSample(ctx context.Context, sampleID string) (domain.SampleEnvelope, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT structured_payload FROM structured_biomarker_samples WHERE sample_id = ?`), sampleID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SampleEnvelope{}, fmt.Errorf("%s: %w", sampleID, domain.ErrSampleNotFound)
	}
	if err != nil {
		return domain.SampleEnvelope{}, fmt.Errorf("select sample %s: %w", sampleID, err)
	}
	var env domain.SampleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.SampleEnvelope{}, fmt.Errorf("decode sample %s: %w", sampleID, err)
	}
	return env, nil
}

// SeedRules replaces the three rule tables in a single transaction.
func (s *Store) SeedRules(ctx context.Context, rules domain.RuleBundle) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"cis_biomarker_alias_map", "cis_unit_conversion", "cis_biomarker_weightage_mapping"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	insertAlias := s.dialect.Rebind(`INSERT INTO cis_biomarker_alias_map (alias_name, canonical_name, is_active) VALUES (?, ?, ?)`)
	for _, a := range rules.Aliases {
		if _, err := tx.ExecContext(ctx, insertAlias, a.AliasName, a.CanonicalName, a.IsActive); err != nil {
			return fmt.Errorf("insert alias %q: %w", a.AliasName, err)
		}
	}
	insertConversion := s.dialect.Rebind(`INSERT INTO cis_unit_conversion (biomarker_name, unit_from, unit_to, factor, additive_offset, is_active) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, c := range rules.Conversions {
		if _, err := tx.ExecContext(ctx, insertConversion, c.BiomarkerName, c.UnitFrom, c.UnitTo, c.Factor, c.Offset, c.IsActive); err != nil {
			return fmt.Errorf("insert conversion %s/%s: %w", c.BiomarkerName, c.UnitFrom, err)
		}
	}
	insertMapping := s.dialect.Rebind(`INSERT INTO cis_biomarker_weightage_mapping (biomarker_name, bucket_name, role) VALUES (?, ?, ?)`)
	for _, m := range rules.Mappings {
		if _, err := tx.ExecContext(ctx, insertMapping, m.BiomarkerName, m.BucketName, string(m.Role)); err != nil {
			return fmt.Errorf("insert mapping %s/%s: %w", m.BucketName, m.BiomarkerName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
