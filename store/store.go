// Package store persists generated ontologies in SQLite so repeated requests
// for the same domain skip the generator. The core pipeline never touches it;
// the server and CLI own the cache.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"

	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/prompt"
)

// ErrNotFound is returned by Get when no live entry exists for a key.
var ErrNotFound = errors.New("store: entry not found")

// Key identifies a cached ontology.
type Key struct {
	Domain string
	Model  string
	// Variant distinguishes post-processing such as connectivity repair or
	// enrichment ("connect", "details", "connect+details").
	Variant string
}

// FoldDomain returns the case-folded, whitespace-collapsed form of domain
// used for cache lookups.
func FoldDomain(domain string) string {
	return cases.Fold().String(strings.Join(strings.Fields(domain), " "))
}

// String returns the hashed cache key. Domains that differ only in case or
// spacing share a key; the template version is part of it.
func (k Key) String() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		FoldDomain(k.Domain), k.Model, k.Variant, prompt.TemplateVersion,
	}, "\x00")))
	return hex.EncodeToString(h[:])
}

// Entry is a cached ontology.
type Entry struct {
	Key               string             `json:"key"`
	Domain            string             `json:"domain"`
	Model             string             `json:"model"`
	Variant           string             `json:"variant,omitempty"`
	TemplateVersion   string             `json:"template_version"`
	RelationshipCount int                `json:"relationship_count"`
	CreatedAt         time.Time          `json:"created_at"`
	ExpiresAt         time.Time          `json:"expires_at,omitzero"`
	Ontology          *ontology.Ontology `json:"ontology,omitempty"`
}

// GenerationLog represents a row in the generation_log table.
type GenerationLog struct {
	RequestID         string        `json:"request_id"`
	Domain            string        `json:"domain"`
	Model             string        `json:"model"`
	Outcome           string        `json:"outcome"` // "ok" or "error"
	ErrorKind         string        `json:"error_kind,omitempty"`
	RelationshipCount int           `json:"relationship_count"`
	Elapsed           time.Duration `json:"elapsed"`
	Cached            bool          `json:"cached"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Stats summarises the database contents.
type Stats struct {
	Entries     int `json:"entries"`
	Expired     int `json:"expired"`
	Generations int `json:"generations"`
	Failures    int `json:"failures"`
}

// Store wraps the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) a SQLite database at dbPath and applies the schema
// and pending migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, now: time.Now}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Ontology cache ---

// Put stores o under key. ttl <= 0 means the entry never expires.
func (s *Store) Put(ctx context.Context, key Key, o *ontology.Ontology, ttl time.Duration) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("store.Put: encoding ontology: %w", err)
	}

	now := s.now()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ontologies (cache_key, domain, model, variant, template_version, payload, relationship_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			domain = excluded.domain,
			payload = excluded.payload,
			relationship_count = excluded.relationship_count,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`, key.String(), strings.TrimSpace(key.Domain), key.Model, key.Variant, prompt.TemplateVersion,
		string(payload), len(o.Relationships), now.UnixMilli(), expires)
	if err != nil {
		return fmt.Errorf("store.Put: %w", err)
	}
	return nil
}

// Get returns the live entry for key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, domain, model, variant, template_version, payload, relationship_count, created_at, expires_at
		FROM ontologies
		WHERE cache_key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key.String(), s.now().UnixMilli())

	e, err := scanEntry(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store.Get: %w", err)
	}
	return e, nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM ontologies WHERE cache_key = ?", key.String())
	return err
}

// List returns every entry, newest first, without payloads.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_key, domain, model, variant, template_version, '', relationship_count, created_at, expires_at
		FROM ontologies
		ORDER BY created_at DESC, domain
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows, false)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Clear removes every cached ontology and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ontologies")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired removes expired entries and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM ontologies WHERE expires_at IS NOT NULL AND expires_at <= ?", s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner, withPayload bool) (*Entry, error) {
	var (
		e       Entry
		payload string
		created int64
		expires sql.NullInt64
	)
	if err := row.Scan(&e.Key, &e.Domain, &e.Model, &e.Variant, &e.TemplateVersion,
		&payload, &e.RelationshipCount, &created, &expires); err != nil {
		return nil, err
	}
	e.CreatedAt = time.UnixMilli(created)
	if expires.Valid {
		e.ExpiresAt = time.UnixMilli(expires.Int64)
	}
	if withPayload {
		var o ontology.Ontology
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("decoding cached ontology: %w", err)
		}
		if o.Relationships == nil {
			o.Relationships = []ontology.Relationship{}
		}
		e.Ontology = &o
	}
	return &e, nil
}

// --- Generation log ---

// LogGeneration records one generation attempt.
func (s *Store) LogGeneration(ctx context.Context, g GenerationLog) error {
	created := g.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generation_log (request_id, domain, model, outcome, error_kind, relationship_count, elapsed_ms, cached, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.RequestID, g.Domain, g.Model, g.Outcome, g.ErrorKind, g.RelationshipCount,
		g.Elapsed.Milliseconds(), g.Cached, created.UnixMilli())
	return err
}

// RecentGenerations returns up to limit log rows, newest first.
func (s *Store) RecentGenerations(ctx context.Context, limit int) ([]GenerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, domain, COALESCE(model, ''), outcome, COALESCE(error_kind, ''),
		       relationship_count, elapsed_ms, cached, created_at
		FROM generation_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GenerationLog
	for rows.Next() {
		var (
			g         GenerationLog
			elapsedMS int64
			created   int64
		)
		if err := rows.Scan(&g.RequestID, &g.Domain, &g.Model, &g.Outcome, &g.ErrorKind,
			&g.RelationshipCount, &elapsedMS, &g.Cached, &created); err != nil {
			return nil, err
		}
		g.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		g.CreatedAt = time.UnixMilli(created)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Stats returns counts over both tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	now := s.now().UnixMilli()
	queries := []struct {
		sql  string
		args []any
		dest *int
	}{
		{"SELECT COUNT(*) FROM ontologies WHERE expires_at IS NULL OR expires_at > ?", []any{now}, &st.Entries},
		{"SELECT COUNT(*) FROM ontologies WHERE expires_at IS NOT NULL AND expires_at <= ?", []any{now}, &st.Expired},
		{"SELECT COUNT(*) FROM generation_log", nil, &st.Generations},
		{"SELECT COUNT(*) FROM generation_log WHERE outcome != 'ok'", nil, &st.Failures},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql, q.args...).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("store.Stats: %w", err)
		}
	}
	return &st, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
