// SQLStore's schema and upsert idiom are grounded directly on the
// teacher's pkg/storage/storage.go/models.go: same database/sql +
// github.com/mattn/go-sqlite3 driver, same sql.Open("sqlite3", ...)
// pattern, same INSERT ... ON CONFLICT DO ... upsert shape. The
// teacher's three tables (dids, operations, sync_state) collapse into
// one anchored_operations table plus a small cursors table, since the
// spec's store contract is a pure operation multimap, not a
// materialized-DID-state cache — the teacher's dids table was the
// teacher's own resolved-state cache, which in this design is
// pkg/resolver's job, not the store's.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/didresolve/sidetree-resolver/pkg/operation"
)

// SQLStore is a SQLite-backed OperationStore.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens dbPath and runs migrations, matching the teacher's
// NewStore.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS anchored_operations (
		did_suffix TEXT NOT NULL,
		kind TEXT NOT NULL CHECK(kind IN ('create', 'update', 'recover', 'deactivate')),
		transaction_time INTEGER NOT NULL,
		transaction_number INTEGER NOT NULL,
		operation_index INTEGER NOT NULL,
		operation_bytes BLOB NOT NULL,
		PRIMARY KEY (did_suffix, transaction_time, transaction_number, operation_index)
	);

	CREATE INDEX IF NOT EXISTS idx_anchored_operations_did ON anchored_operations(did_suffix);

	CREATE TABLE IF NOT EXISTS cursors (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts ops, relying on the primary key to make repeated puts of
// the same anchor key a no-op — the idempotency spec.md §4.6 requires.
func (s *SQLStore) Put(ops []*operation.AnchoredOperation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO anchored_operations
			(did_suffix, kind, transaction_time, transaction_number, operation_index, operation_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(did_suffix, transaction_time, transaction_number, operation_index) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, op := range ops {
		if _, err := stmt.Exec(
			op.DidSuffix, string(op.Kind),
			op.AnchorKey.TransactionTime, op.AnchorKey.TransactionNumber, op.AnchorKey.OperationIndex,
			op.OperationBytes,
		); err != nil {
			return fmt.Errorf("insert operation: %w", err)
		}
	}

	return tx.Commit()
}

// Get loads every operation stored for didSuffix and re-parses each from
// its stored operation_bytes, which is the one piece of state this store
// persists (spec.md §3: "AnchoredOperation is immutable once stored").
func (s *SQLStore) Get(didSuffix operation.DidSuffix) ([]*operation.AnchoredOperation, error) {
	rows, err := s.db.Query(`
		SELECT kind, transaction_time, transaction_number, operation_index, operation_bytes
		FROM anchored_operations WHERE did_suffix = ?
	`, didSuffix)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var out []*operation.AnchoredOperation
	for rows.Next() {
		var kind string
		var anchorKey operation.AnchorKey
		var raw []byte
		if err := rows.Scan(&kind, &anchorKey.TransactionTime, &anchorKey.TransactionNumber, &anchorKey.OperationIndex, &raw); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op, err := operation.ParseOperation(raw, anchorKey)
		if err != nil {
			return nil, fmt.Errorf("reparse stored operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// DeleteUpdatesEarlierThan removes Update operations anchored before
// transactionTime, across every DID.
func (s *SQLStore) DeleteUpdatesEarlierThan(transactionTime uint64) error {
	_, err := s.db.Exec(`
		DELETE FROM anchored_operations WHERE kind = 'update' AND transaction_time < ?
	`, transactionTime)
	return err
}

// SetCursor persists an opaque resolved-up-to marker — the supplemented
// feature of SPEC_FULL.md §7, grounded on the teacher's
// GetSyncState/SetSyncState, generalized from "last synced ballot" to any
// caller-defined key.
func (s *SQLStore) SetCursor(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO cursors (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetCursor reads back a cursor previously set with SetCursor, returning
// "" if it was never set.
func (s *SQLStore) GetCursor(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM cursors WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Stats is the read-only introspection supplement of SPEC_FULL.md §7,
// grounded on the teacher's GetDIDCount/GetOperationCount/GetAllDIDs.
type Stats struct {
	DidCount       int
	OperationCount int
}

// Stats computes aggregate counts over the store, for the demo CLI's
// status subcommand — never on the hot resolve path.
func (s *SQLStore) Stats() (Stats, error) {
	var stats Stats
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT did_suffix) FROM anchored_operations`).Scan(&stats.DidCount); err != nil {
		return stats, fmt.Errorf("count dids: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM anchored_operations`).Scan(&stats.OperationCount); err != nil {
		return stats, fmt.Errorf("count operations: %w", err)
	}
	return stats, nil
}
