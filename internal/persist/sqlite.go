package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"google.golang.org/protobuf/types/known/structpb"
)

const recordsSchema = `CREATE TABLE IF NOT EXISTS records (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database only lives as long as its connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Get reads a record.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*structpb.Struct, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	rec := &structpb.Struct{}
	if err := unmarshalOpts.Unmarshal([]byte(body), rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return rec, nil
}

// Put writes a record, replacing any previous version.
func (s *SQLiteStore) Put(ctx context.Context, name string, rec *structpb.Struct) error {
	return s.PutAll(ctx, map[string]*structpb.Struct{name: rec})
}

// PutAll writes every record in one transaction. Nothing is written if any
// record fails.
func (s *SQLiteStore) PutAll(ctx context.Context, recs map[string]*structpb.Struct) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.putAllTx(ctx, tx, recs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) putAllTx(ctx context.Context, tx *sql.Tx, recs map[string]*structpb.Struct) error {
	stamp := s.now().Unix()
	for name, rec := range recs {
		body, err := marshalOpts.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO records (name, body, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
			name, string(body), stamp)
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
