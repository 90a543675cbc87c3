package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteOpTimeout = 5 * time.Second

// SQLiteStore is the embedded backend: the same table layout as the
// postgres store, with AUTOINCREMENT carrying the insertion sequence and
// the json1 extension serving field filters.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent CAS retries.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	for _, col := range KnownCollections {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				seq  INTEGER PRIMARY KEY AUTOINCREMENT,
				id   TEXT NOT NULL UNIQUE,
				rev  INTEGER NOT NULL DEFAULT 1,
				data TEXT NOT NULL
			)
		`, tableName(col))
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("ensure table for %s: %w", col, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	doc := Document{ID: id}
	err = s.db.QueryRowContext(queryCtx,
		fmt.Sprintf("SELECT rev, seq, data FROM %s WHERE id = ?", table), id,
	).Scan(&doc.Rev, &doc.Seq, &doc.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, collection, id string, data []byte) (int64, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	res, err := s.db.ExecContext(queryCtx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (id, rev, data) VALUES (?, 1, ?)", table),
		id, string(data))
	if err != nil {
		return 0, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return 0, ErrConflict
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return seq, nil
}

func (s *SQLiteStore) Replace(ctx context.Context, collection, id string, data []byte, expectRev int64) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	res, err := s.db.ExecContext(queryCtx,
		fmt.Sprintf("UPDATE %s SET data = ?, rev = rev + 1 WHERE id = ? AND rev = ?", table),
		string(data), id, expectRev)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(queryCtx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)", table), id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *SQLiteStore) List(ctx context.Context, collection, field, value string, limit int) ([]*Document, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT id, rev, seq, data FROM %s", table)
	args := []interface{}{}
	if field != "" {
		query += " WHERE json_extract(data, ?) = ?"
		args = append(args, "$."+field, value)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		var doc Document
		var data string
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Seq, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc.Data = []byte(data)
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Collections(ctx context.Context) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	var out []string
	for _, col := range KnownCollections {
		var exists bool
		err := s.db.QueryRowContext(queryCtx,
			"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)",
			tableName(col),
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		if exists {
			out = append(out, col)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()
	return s.db.PingContext(queryCtx)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
