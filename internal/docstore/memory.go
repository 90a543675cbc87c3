package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps all documents in process memory. It implements the same
// contract as the durable backends, including revision conflicts, so the
// core's concurrency behavior can be exercised without a server.
type MemoryStore struct {
	mu   sync.Mutex
	seq  int64
	cols map[string]map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	cols := make(map[string]map[string]*Document, len(KnownCollections))
	for _, c := range KnownCollections {
		cols[c] = make(map[string]*Document)
	}
	return &MemoryStore{cols: cols}
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !knownCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.cols[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	cp.Data = append([]byte(nil), doc.Data...)
	return &cp, nil
}

func (m *MemoryStore) Insert(ctx context.Context, collection, id string, data []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if !knownCollection(collection) {
		return 0, fmt.Errorf("unknown collection %q", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.cols[collection]
	if _, exists := col[id]; exists {
		return 0, ErrConflict
	}

	m.seq++
	col[id] = &Document{
		ID:   id,
		Rev:  1,
		Seq:  m.seq,
		Data: append([]byte(nil), data...),
	}
	return m.seq, nil
}

func (m *MemoryStore) Replace(ctx context.Context, collection, id string, data []byte, expectRev int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !knownCollection(collection) {
		return fmt.Errorf("unknown collection %q", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.cols[collection][id]
	if !ok {
		return ErrNotFound
	}
	if doc.Rev != expectRev {
		return ErrConflict
	}

	doc.Rev++
	doc.Data = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection, field, value string, limit int) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !knownCollection(collection) {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Document
	for _, doc := range m.cols[collection] {
		if field != "" && !fieldEquals(doc.Data, field, value) {
			continue
		}
		cp := *doc
		cp.Data = append([]byte(nil), doc.Data...)
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.cols))
	for name := range m.cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() error { return nil }

func fieldEquals(data []byte, field, value string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	raw, ok := fields[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == value
}
