package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arabica-erp/arabica-erp/internal/platform/db"
)

// PutAppend applies the versioned put and the journal append inside one
// database transaction.
func (s *Postgres) PutAppend(ctx context.Context, key string, value []byte, expectedVersion int64, journal string, rec Record) (int64, error) {
	var version int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		switch {
		case expectedVersion == VersionAny:
			if err := tx.QueryRow(ctx,
				`INSERT INTO documents (key, value, version) VALUES ($1, $2, 1)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = documents.version + 1
				 RETURNING version`, key, value,
			).Scan(&version); err != nil {
				return fmt.Errorf("docstore: put %s: %w", key, err)
			}
		case expectedVersion == 0:
			if _, err := tx.Exec(ctx,
				`INSERT INTO documents (key, value, version) VALUES ($1, $2, 1)`, key, value); err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
					return ErrVersionConflict
				}
				return fmt.Errorf("docstore: put %s: %w", key, err)
			}
			version = 1
		default:
			tag, err := tx.Exec(ctx,
				`UPDATE documents SET value = $2, version = version + 1 WHERE key = $1 AND version = $3`,
				key, value, expectedVersion)
			if err != nil {
				return fmt.Errorf("docstore: put %s: %w", key, err)
			}
			if tag.RowsAffected() == 0 {
				return ErrVersionConflict
			}
			version = expectedVersion + 1
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO journal_records (journal, id, at, value) VALUES ($1, $2, $3, $4)`,
			journal, rec.ID, rec.At, rec.Value); err != nil {
			return fmt.Errorf("docstore: append %s: %w", journal, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}
