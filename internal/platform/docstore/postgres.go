package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Postgres implements Store on top of a documents table with a version
// column and an append-only journal_records table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs the Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get returns the document stored under key.
func (s *Postgres) Get(ctx context.Context, key string) (Document, error) {
	var doc Document
	doc.Key = key
	err := s.pool.QueryRow(ctx,
		`SELECT value, version FROM documents WHERE key = $1`, key,
	).Scan(&doc.Value, &doc.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("docstore: get %s: %w", key, err)
	}
	return doc, nil
}

// Put writes value under key, enforcing the expected version.
func (s *Postgres) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	switch {
	case expectedVersion == VersionAny:
		var version int64
		err := s.pool.QueryRow(ctx,
			`INSERT INTO documents (key, value, version) VALUES ($1, $2, 1)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = documents.version + 1
			 RETURNING version`, key, value,
		).Scan(&version)
		if err != nil {
			return 0, fmt.Errorf("docstore: put %s: %w", key, err)
		}
		return version, nil
	case expectedVersion == 0:
		_, err := s.pool.Exec(ctx,
			`INSERT INTO documents (key, value, version) VALUES ($1, $2, 1)`, key, value)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return 0, ErrVersionConflict
			}
			return 0, fmt.Errorf("docstore: put %s: %w", key, err)
		}
		return 1, nil
	default:
		tag, err := s.pool.Exec(ctx,
			`UPDATE documents SET value = $2, version = version + 1 WHERE key = $1 AND version = $3`,
			key, value, expectedVersion)
		if err != nil {
			return 0, fmt.Errorf("docstore: put %s: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return 0, ErrVersionConflict
		}
		return expectedVersion + 1, nil
	}
}

// Delete removes the document stored under key, if any.
func (s *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", key, err)
	}
	return nil
}

// ListPrefix returns all documents whose key starts with prefix, key-ordered.
func (s *Postgres) ListPrefix(ctx context.Context, prefix string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value, version FROM documents WHERE key LIKE $1 || '%' ORDER BY key`, prefix)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", prefix, err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Key, &doc.Value, &doc.Version); err != nil {
			return nil, fmt.Errorf("docstore: list %s: %w", prefix, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Append adds a record to the named journal.
func (s *Postgres) Append(ctx context.Context, journal string, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO journal_records (journal, id, at, value) VALUES ($1, $2, $3, $4)`,
		journal, rec.ID, rec.At, rec.Value)
	if err != nil {
		return fmt.Errorf("docstore: append %s: %w", journal, err)
	}
	return nil
}

// Range returns journal records within [from, to] ordered by (at, id).
func (s *Postgres) Range(ctx context.Context, journal string, from, to time.Time) ([]Record, error) {
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, at, value FROM journal_records
		 WHERE journal = $1 AND at >= $2 AND at <= $3 ORDER BY at, id`,
		journal, from, to)
	if err != nil {
		return nil, fmt.Errorf("docstore: range %s: %w", journal, err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Value); err != nil {
			return nil, fmt.Errorf("docstore: range %s: %w", journal, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
