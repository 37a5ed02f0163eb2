package vaultserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists vault proofs in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	// pragmas via DSN
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate vault database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS vault_proofs (
	account_id TEXT PRIMARY KEY,
	salt TEXT NOT NULL,
	verifier TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create implements Store
func (s *SQLiteStore) Create(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var salt, verifier string
	err = tx.QueryRowContext(ctx,
		`SELECT salt, verifier FROM vault_proofs WHERE account_id = ?`, rec.AccountID,
	).Scan(&salt, &verifier)
	switch {
	case err == nil:
		if salt == rec.Salt && verifier == rec.Verifier {
			return nil
		}
		return ErrConflict
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	rec = stamp(rec)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vault_proofs (account_id, salt, verifier, updated_at) VALUES (?, ?, ?, ?)`,
		rec.AccountID, rec.Salt, rec.Verifier, rec.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace implements Store
func (s *SQLiteStore) Replace(ctx context.Context, rec Record) error {
	rec = stamp(rec)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vault_proofs (account_id, salt, verifier, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET
	salt = excluded.salt,
	verifier = excluded.verifier,
	updated_at = excluded.updated_at`,
		rec.AccountID, rec.Salt, rec.Verifier, rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// Get implements Store
func (s *SQLiteStore) Get(ctx context.Context, accountID string) (Record, error) {
	rec := Record{AccountID: accountID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT salt, verifier, updated_at FROM vault_proofs WHERE account_id = ?`, accountID,
	).Scan(&rec.Salt, &rec.Verifier, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return Record{}, fmt.Errorf("invalid updated_at for %s: %w", accountID, err)
	}
	return rec, nil
}
