package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/embedstore/storage"
)

// Backend stores rows in a SQLite table shared by all embedding tables.
// Each batch runs in one transaction.
type Backend struct {
	db           *sql.DB
	rowSize      int
	embeddingKey int32
	closed       atomic.Bool
}

// Open opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string, rowSize int, embeddingKey int32) (*Backend, error) {
	if rowSize <= 0 {
		return nil, fmt.Errorf("%w: row size %d", storage.ErrBatchShape, rowSize)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Backend{db: db, rowSize: rowSize, embeddingKey: embeddingKey}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embedding_rows (
		embedding_key INTEGER NOT NULL,
		row_key INTEGER NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (embedding_key, row_key)
	) WITHOUT ROWID;
	`
	_, err := db.Exec(schema)
	return err
}

// Keys are stored as their int64 bit pattern: the driver rejects uint64
// values with the high bit set.
func sqlKey(k uint64) int64 { return int64(k) }

func (b *Backend) Write(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO embedding_rows (embedding_key, row_key, value) VALUES (?, ?, ?)
			 ON CONFLICT (embedding_key, row_key) DO UPDATE SET value = excluded.value`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, k := range keys {
			if _, err := stmt.ExecContext(ctx, b.embeddingKey, sqlKey(k), storage.Row(values, b.rowSize, i)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) Read(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return b.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`SELECT value FROM embedding_rows WHERE embedding_key = ? AND row_key = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		var v []byte
		for i, k := range keys {
			err := stmt.QueryRowContext(ctx, b.embeddingKey, sqlKey(k)).Scan(&v)
			if errors.Is(err, sql.ErrNoRows) {
				return &storage.NotFoundError{Key: k}
			}
			if err != nil {
				return err
			}
			if len(v) != b.rowSize {
				return fmt.Errorf("%w: key %d has %d bytes", storage.ErrCorrupt, k, len(v))
			}
			copy(storage.Row(values, b.rowSize, i), v)
		}
		return nil
	})
}

func (b *Backend) Delete(ctx context.Context, keys []uint64) error {
	return b.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`DELETE FROM embedding_rows WHERE embedding_key = ? AND row_key = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, b.embeddingKey, sqlKey(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) Len(ctx context.Context) (int, error) {
	if b.closed.Load() {
		return 0, storage.ErrClosed
	}
	var n int
	err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embedding_rows WHERE embedding_key = ?`, b.embeddingKey,
	).Scan(&n)
	return n, err
}

func (b *Backend) Keys(ctx context.Context) ([]uint64, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT row_key FROM embedding_rows WHERE embedding_key = ?`, b.embeddingKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []uint64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, uint64(k))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Close closes the database. It is idempotent.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
