package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgOpTimeout = 5 * time.Second

// PostgresStore keeps each collection in its own table with the document
// body as jsonb. The revision column carries the optimistic-concurrency
// check; seq is a bigserial so insertion order survives restarts.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// EnsureSchema creates the per-collection tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, col := range KnownCollections {
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id   text PRIMARY KEY,
				rev  bigint NOT NULL DEFAULT 1,
				seq  bigserial,
				data jsonb NOT NULL
			)
		`, tableName(col))
		if _, err := s.Pool.Exec(queryCtx, ddl); err != nil {
			return fmt.Errorf("ensure table for %s: %w", col, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	doc := Document{ID: id}
	err = s.Pool.QueryRow(queryCtx,
		fmt.Sprintf("SELECT rev, seq, data FROM %s WHERE id = $1", table), id,
	).Scan(&doc.Rev, &doc.Seq, &doc.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (s *PostgresStore) Insert(ctx context.Context, collection, id string, data []byte) (int64, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return 0, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	var seq int64
	err = s.Pool.QueryRow(queryCtx,
		fmt.Sprintf(`
			INSERT INTO %s (id, rev, data) VALUES ($1, 1, $2)
			ON CONFLICT (id) DO NOTHING
			RETURNING seq
		`, table), id, data,
	).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// DO NOTHING returned no row: the ID is already taken.
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return seq, nil
}

func (s *PostgresStore) Replace(ctx context.Context, collection, id string, data []byte, expectRev int64) error {
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}

	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(queryCtx,
		fmt.Sprintf("UPDATE %s SET data = $2, rev = rev + 1 WHERE id = $1 AND rev = $3", table),
		id, data, expectRev)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// The conditional update matched nothing: decide between a missing
	// document and a revision conflict.
	var exists bool
	err = s.Pool.QueryRow(queryCtx,
		fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table), id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *PostgresStore) List(ctx context.Context, collection, field, value string, limit int) ([]*Document, error) {
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT id, rev, seq, data FROM %s", table)
	args := []interface{}{}
	if field != "" {
		query += " WHERE data->>$1 = $2"
		args = append(args, field, value)
	}
	query += " ORDER BY seq DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.Pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Seq, &doc.Data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, &doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Collections(ctx context.Context) ([]string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	var out []string
	for _, col := range KnownCollections {
		var exists bool
		err := s.Pool.QueryRow(queryCtx,
			"SELECT EXISTS(SELECT 1 FROM pg_tables WHERE tablename = $1)", tableName(col),
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()
	return s.Pool.Ping(queryCtx)
}

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

func tableName(collection string) string { return "doc_" + collection }

// collectionTable refuses unknown collection names so they can never reach
// the SQL text.
func collectionTable(collection string) (string, error) {
	if !knownCollection(collection) {
		return "", fmt.Errorf("unknown collection %q", collection)
	}
	return tableName(collection), nil
}
