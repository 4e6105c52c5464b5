package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage"
)

// rowIDCol orders rows by insertion inside a table.
const rowIDCol = "row_id"

type rowKey struct {
	sourceID int64
	chain    string
	address  string
}

type table struct {
	rows  []coalesce.Fields
	index map[rowKey]int
}

func newTable() *table {
	return &table{index: make(map[rowKey]int)}
}

func (t *table) reindex() {
	clear(t.index)
	for i, r := range t.rows {
		t.index[keyOf(r)] = i
	}
}

// Backend holds the data of an in-memory knowledge base. Data survives
// across Store handles so that close-and-reopen behaves like a database.
type Backend struct {
	mu        sync.Mutex
	sources   []domain.DataSource
	tables    map[string]*table
	nextRowID int64
	failNext  error
}

// NewBackend creates an empty backend with no tables.
func NewBackend() *Backend {
	return &Backend{tables: make(map[string]*table)}
}

// Open returns a new handle. It satisfies storage.Opener.
func (b *Backend) Open(_ context.Context) (storage.Store, error) {
	return &Store{b: b}, nil
}

// FailNext makes the next store operation return err.
func (b *Backend) FailNext(err error) {
	b.mu.Lock()
	b.failNext = err
	b.mu.Unlock()
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	b      *Backend
	closed bool
}

var _ storage.Store = (*Store)(nil)

// lock acquires the backend and reports closed handles and injected faults.
func (s *Store) lock() error {
	s.b.mu.Lock()
	if s.closed {
		s.b.mu.Unlock()
		return storage.ErrClosed
	}
	if err := s.b.failNext; err != nil {
		s.b.failNext = nil
		s.b.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) table(schema domain.Schema) (*table, error) {
	t, ok := s.b.tables[schema.Table]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", schema.Table)
	}
	return t, nil
}

// CreateSchema creates the wallets and tokens tables if absent.
func (s *Store) CreateSchema(_ context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.b.mu.Unlock()

	for _, schema := range []domain.Schema{domain.WalletSchema, domain.TokenSchema} {
		if _, ok := s.b.tables[schema.Table]; !ok {
			s.b.tables[schema.Table] = newTable()
		}
	}
	return nil
}

// DropSchema drops every table, including data sources.
func (s *Store) DropSchema(_ context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.b.mu.Unlock()

	clear(s.b.tables)
	s.b.sources = nil
	return nil
}

// ListDataSources returns every source ordered by id.
func (s *Store) ListDataSources(_ context.Context) ([]domain.DataSource, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.b.mu.Unlock()

	return slices.Clone(s.b.sources), nil
}

// InsertDataSource adds a source. Returns ErrDuplicateKey if the name exists.
func (s *Store) InsertDataSource(_ context.Context, name string, createdAt time.Time) (int64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.b.mu.Unlock()

	for _, ds := range s.b.sources {
		if ds.Name == name {
			return 0, storage.ErrDuplicateKey
		}
	}
	id := int64(len(s.b.sources) + 1)
	s.b.sources = append(s.b.sources, domain.DataSource{ID: id, Name: name, CreatedAt: createdAt})
	return id, nil
}

// CountBySource counts rows owned by sourceID.
func (s *Store) CountBySource(_ context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.b.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range t.rows {
		if sourceOf(r) == sourceID {
			n++
		}
	}
	return n, nil
}

// DeleteBySource removes rows owned by sourceID.
func (s *Store) DeleteBySource(_ context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.b.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return 0, err
	}
	before := len(t.rows)
	t.rows = slices.DeleteFunc(t.rows, func(r coalesce.Fields) bool {
		return sourceOf(r) == sourceID
	})
	t.reindex()
	return int64(before - len(t.rows)), nil
}

// InsertBulk adds rows atomically. Fails entire batch on any duplicate,
// including duplicates within the batch.
func (s *Store) InsertBulk(_ context.Context, schema domain.Schema, rows []coalesce.Fields) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.lock(); err != nil {
		return err
	}
	defer s.b.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return err
	}

	seen := make(map[rowKey]struct{}, len(rows))
	for _, r := range rows {
		k := keyOf(r)
		if _, exists := t.index[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range rows {
		s.appendRow(t, schema, r)
	}
	return nil
}

// InsertRow adds one row, or reports the stored row holding its key.
func (s *Store) InsertRow(_ context.Context, schema domain.Schema, row coalesce.Fields) (storage.InsertResult, error) {
	if err := s.lock(); err != nil {
		return storage.InsertResult{}, err
	}
	defer s.b.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return storage.InsertResult{}, err
	}

	if i, exists := t.index[keyOf(row)]; exists {
		return storage.InsertResult{Outcome: storage.Conflict, Existing: project(schema, t.rows[i])}, nil
	}
	s.appendRow(t, schema, row)
	return storage.InsertResult{Outcome: storage.Inserted}, nil
}

// LoadAll returns every row ordered by data source id then insertion order.
func (s *Store) LoadAll(_ context.Context, schema domain.Schema) ([]coalesce.Fields, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.b.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(s.b.sources))
	for _, ds := range s.b.sources {
		names[ds.ID] = ds.Name
	}

	sorted := slices.Clone(t.rows)
	slices.SortStableFunc(sorted, func(a, b coalesce.Fields) int {
		return cmp.Or(
			cmp.Compare(sourceOf(a), sourceOf(b)),
			cmp.Compare(a[rowIDCol].(int64), b[rowIDCol].(int64)),
		)
	})

	out := make([]coalesce.Fields, len(sorted))
	for i, r := range sorted {
		f := project(schema, r)
		f[domain.ColDataSource] = names[sourceOf(r)]
		out[i] = f
	}
	return out, nil
}

// Close releases the handle. Data stays in the backend.
func (s *Store) Close() error {
	s.b.mu.Lock()
	s.closed = true
	s.b.mu.Unlock()
	return nil
}

// appendRow stores a copy of r restricted to the schema columns. Caller holds the lock.
func (s *Store) appendRow(t *table, schema domain.Schema, r coalesce.Fields) {
	s.b.nextRowID++
	stored := project(schema, r)
	stored[rowIDCol] = s.b.nextRowID
	t.rows = append(t.rows, stored)
	t.index[keyOf(stored)] = len(t.rows) - 1
}

// project copies the schema columns of r; absent columns become NULL.
func project(schema domain.Schema, r coalesce.Fields) coalesce.Fields {
	out := make(coalesce.Fields, len(schema.Columns)+1)
	for _, col := range schema.Columns {
		out[col] = r[col]
	}
	return out
}

func keyOf(r coalesce.Fields) rowKey {
	return rowKey{sourceID: sourceOf(r), chain: r.String(domain.ColChain), address: r.String(domain.ColAddress)}
}

func sourceOf(r coalesce.Fields) int64 {
	id, _ := domain.ToInt64(r[domain.ColDataSourceID])
	return id
}
