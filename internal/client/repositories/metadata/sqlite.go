// Package metadata stores small key/value records in the local sqlite
// database. Two tables share the schema: the primary credential table and
// the legacy table kept for clients that predate it.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/reviewdesk/internal/dbx"
)

// Table selects one of the key/value tables created by the migrations.
type Table string

const (
	PrimaryTable Table = "metadata"
	LegacyTable  Table = "legacy_storage"
)

type SQLiteRepository struct {
	db    dbx.DBTX
	table Table
}

// NewSQLiteRepository binds a repository to one of the known tables.
// Any other table name panics: names are interpolated into SQL.
func NewSQLiteRepository(db dbx.DBTX, table Table) *SQLiteRepository {
	switch table {
	case PrimaryTable, LegacyTable:
	default:
		panic(fmt.Sprintf("metadata: unknown table %q", table))
	}
	return &SQLiteRepository{db: db, table: table}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	q := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, r.table)
	err := r.db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s[%s]: %w", r.table, key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`
		INSERT INTO %s (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, r.table)
	if _, err := r.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("failed to set %s[%s]: %w", r.table, key, err)
	}
	return nil
}

// SetMany writes all values in one transaction when the handle can begin
// one, so readers never see a half-written token pair.
func (r *SQLiteRepository) SetMany(ctx context.Context, values map[string][]byte) error {
	beginner, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return r.setEach(ctx, r, values)
	}
	return dbx.WithTx(ctx, beginner, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return r.setEach(ctx, &SQLiteRepository{db: tx, table: r.table}, values)
	})
}

func (r *SQLiteRepository) setEach(ctx context.Context, repo *SQLiteRepository, values map[string][]byte) error {
	for k, v := range values {
		if err := repo.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, keys ...string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, r.table)
	for _, key := range keys {
		if _, err := r.db.ExecContext(ctx, q, key); err != nil {
			return fmt.Errorf("failed to delete %s[%s]: %w", r.table, key, err)
		}
	}
	return nil
}
