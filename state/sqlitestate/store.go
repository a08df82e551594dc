// Package sqlitestate is the SQLite-backed state store.
package sqlitestate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/viant/entangle/db/sqliteutil"
	"github.com/viant/entangle/state"

	_ "modernc.org/sqlite"
)

// Store persists pass state in a SQLite database.
type Store struct {
	db            *sql.DB
	dsn           string
	ensureSchema  bool
	busyTimeoutMS int
	openedLocally bool
}

// Option configures the store.
type Option func(*Store)

// WithDB sets an existing *sql.DB to use.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithDSN sets the SQLite DSN to open (e.g. /path/to/state.db).
func WithDSN(dsn string) Option {
	return func(s *Store) { s.dsn = dsn }
}

// WithEnsureSchema controls whether tables are created automatically.
func WithEnsureSchema(enabled bool) Option {
	return func(s *Store) { s.ensureSchema = enabled }
}

// WithBusyTimeout sets the busy_timeout pragma in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(s *Store) { s.busyTimeoutMS = ms }
}

// New opens/initializes a SQLite state store.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		ensureSchema:  true,
		busyTimeoutMS: 5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.db == nil {
		if s.dsn == "" {
			return nil, fmt.Errorf("sqlitestate: dsn required")
		}
		db, err := sql.Open("sqlite", sqliteutil.EnsurePragmas(s.dsn, true, s.busyTimeoutMS))
		if err != nil {
			return nil, err
		}
		s.db = db
		s.db.SetMaxOpenConns(1)
		s.openedLocally = true
	}
	if s.ensureSchema {
		if err := s.ensureSchemaDDL(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying DB if the store opened it.
func (s *Store) Close() error {
	if s.openedLocally && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Load reads the full recorded state.
func (s *Store) Load(ctx context.Context) (*state.Snapshot, error) {
	snapshot := state.NewSnapshot()
	rows, err := s.db.QueryContext(ctx, `SELECT path, hash FROM ent_document`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		var hash int64
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		snapshot.Documents[path] = uint64(hash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	blockRows, err := s.db.QueryContext(ctx, `SELECT document, name, part, hash FROM ent_block`)
	if err != nil {
		return nil, err
	}
	defer blockRows.Close()
	for blockRows.Next() {
		var key state.BlockKey
		var hash int64
		if err := blockRows.Scan(&key.Document, &key.Name, &key.Part, &hash); err != nil {
			return nil, err
		}
		snapshot.Blocks[key] = uint64(hash)
	}
	if err := blockRows.Err(); err != nil {
		return nil, err
	}

	targetRows, err := s.db.QueryContext(ctx, `SELECT path, document, hash, content, provenance FROM ent_target`)
	if err != nil {
		return nil, err
	}
	defer targetRows.Close()
	for targetRows.Next() {
		var path string
		var target state.TargetState
		var hash int64
		if err := targetRows.Scan(&path, &target.Document, &hash, &target.Content, &target.Provenance); err != nil {
			return nil, err
		}
		target.Hash = uint64(hash)
		snapshot.Targets[path] = target
	}
	return snapshot, targetRows.Err()
}

// Save replaces everything recorded for the document in one transaction.
func (s *Store) Save(ctx context.Context, documentPath string, docState *state.DocumentState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO ent_document(path, hash) VALUES(?, ?)
ON CONFLICT(path) DO UPDATE SET hash=excluded.hash`, documentPath, int64(docState.Hash)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ent_block WHERE document = ?`, documentPath); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ent_target WHERE document = ?`, documentPath); err != nil {
		return err
	}
	for key, hash := range docState.Blocks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ent_block(document, name, part, hash) VALUES(?, ?, ?, ?)`,
			documentPath, key.Name, key.Part, int64(hash)); err != nil {
			return err
		}
	}
	for path, target := range docState.Targets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ent_target(path, document, hash, content, provenance) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET document=excluded.document, hash=excluded.hash, content=excluded.content, provenance=excluded.provenance`,
			path, documentPath, int64(target.Hash), target.Content, target.Provenance); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes everything recorded for the document.
func (s *Store) Delete(ctx context.Context, documentPath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM ent_block WHERE document = ?`,
		`DELETE FROM ent_target WHERE document = ?`,
		`DELETE FROM ent_document WHERE path = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, documentPath); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ensureSchemaDDL(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ent_document (
			path TEXT PRIMARY KEY,
			hash INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ent_block (
			document TEXT NOT NULL,
			name     TEXT NOT NULL,
			part     INTEGER NOT NULL,
			hash     INTEGER NOT NULL,
			PRIMARY KEY (document, name, part)
		);`,
		`CREATE TABLE IF NOT EXISTS ent_target (
			path       TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			hash       INTEGER NOT NULL,
			content    BLOB,
			provenance BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ent_target_document ON ent_target(document);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
