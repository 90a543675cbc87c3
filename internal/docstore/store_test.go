package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every backend is held to the same contract; the suite runs once per
// backend so a divergence shows up by name.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, Customers, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("insert and get", func(t *testing.T) {
		seq, err := store.Insert(ctx, Customers, "c1", []byte(`{"full_name":"Ada"}`))
		require.NoError(t, err)
		assert.Greater(t, seq, int64(0))

		doc, err := store.Get(ctx, Customers, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", doc.ID)
		assert.Equal(t, int64(1), doc.Rev)
		assert.Equal(t, seq, doc.Seq)
		assert.JSONEq(t, `{"full_name":"Ada"}`, string(doc.Data))
	})

	t.Run("duplicate insert conflicts", func(t *testing.T) {
		_, err := store.Insert(ctx, Customers, "c1", []byte(`{}`))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("seq is strictly increasing", func(t *testing.T) {
		var prev int64
		for i := 0; i < 3; i++ {
			seq, err := store.Insert(ctx, Customers, fmt.Sprintf("seq-%d", i), []byte(`{}`))
			require.NoError(t, err)
			assert.Greater(t, seq, prev)
			prev = seq
		}
	})

	t.Run("replace bumps revision", func(t *testing.T) {
		_, err := store.Insert(ctx, Accounts, "a1", []byte(`{"balance":"10"}`))
		require.NoError(t, err)

		err = store.Replace(ctx, Accounts, "a1", []byte(`{"balance":"20"}`), 1)
		require.NoError(t, err)

		doc, err := store.Get(ctx, Accounts, "a1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), doc.Rev)
		assert.JSONEq(t, `{"balance":"20"}`, string(doc.Data))
	})

	t.Run("replace with stale revision conflicts", func(t *testing.T) {
		err := store.Replace(ctx, Accounts, "a1", []byte(`{"balance":"99"}`), 1)
		assert.ErrorIs(t, err, ErrConflict)

		// The losing write must not have landed.
		doc, err := store.Get(ctx, Accounts, "a1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"balance":"20"}`, string(doc.Data))
	})

	t.Run("replace missing document", func(t *testing.T) {
		err := store.Replace(ctx, Accounts, "ghost", []byte(`{}`), 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("t-%d", i)
			data := fmt.Sprintf(`{"account_id":"acc-a","n":%d}`, i)
			_, err := store.Insert(ctx, Transactions, id, []byte(data))
			require.NoError(t, err)
		}
		_, err := store.Insert(ctx, Transactions, "t-other", []byte(`{"account_id":"acc-b"}`))
		require.NoError(t, err)

		docs, err := store.List(ctx, Transactions, "account_id", "acc-a", 10)
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "t-2", docs[0].ID)
		assert.Equal(t, "t-0", docs[2].ID)

		docs, err = store.List(ctx, Transactions, "account_id", "acc-a", 2)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "t-2", docs[0].ID)

		all, err := store.List(ctx, Transactions, "", "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})

	t.Run("collections lists known collections", func(t *testing.T) {
		cols, err := store.Collections(ctx)
		require.NoError(t, err)
		assert.Contains(t, cols, Customers)
		assert.Contains(t, cols, Accounts)
		assert.Contains(t, cols, Transactions)
	})

	t.Run("unknown collection rejected", func(t *testing.T) {
		_, err := store.Insert(ctx, "secrets", "x", []byte(`{}`))
		assert.Error(t, err)

		_, err = store.Get(ctx, "secrets", "x")
		assert.Error(t, err)

		err = store.Replace(ctx, "secrets", "x", []byte(`{}`), 1)
		assert.Error(t, err)

		_, err = store.List(ctx, "secrets", "", "", 10)
		assert.Error(t, err)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreContract(t, store)
}

func TestSQLiteStoreContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() {
		for _, col := range KnownCollections {
			_, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS doc_"+col)
		}
	})
	runStoreContract(t, store)
}

func TestMemoryStoreDataIsCopied(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	payload := []byte(`{"k":"v"}`)
	_, err := store.Insert(ctx, Customers, "c", payload)
	require.NoError(t, err)
	payload[2] = 'X'

	doc, err := store.Get(ctx, Customers, "c")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(doc.Data))

	doc.Data[2] = 'X'
	again, err := store.Get(ctx, Customers, "c")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(again.Data))
}
