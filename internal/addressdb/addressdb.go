// Package addressdb is the persistence layer of the address knowledge base.
//
// A DB owns one lazily opened storage connection. Each data source's rows
// are replaced wholesale on import, so reloading a source is idempotent, and
// bulk inserts that hit the unique (data_source_id, chain, address) index
// fall back to row-at-a-time inserts that classify every conflict as an
// identical row or a true collision.
package addressdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/observability"
	"chain-addresses/internal/storage"
)

// Options configures a DB.
type Options struct {
	Opener storage.Opener
	Logger *zap.Logger

	// SuppressCollisionWarnings silences the per-row collision diff log.
	// Collisions are still counted.
	SuppressCollisionWarnings bool

	// Now stamps extraction and creation times. Defaults to time.Now.
	Now func() time.Time
}

// DB is the knowledge-base persistence facade. It is safe for concurrent
// use, but operations are serialized: there is a single writer.
type DB struct {
	opener   storage.Opener
	logger   *zap.Logger
	suppress bool
	now      func() time.Time

	mu      sync.Mutex
	store   storage.Store
	sources map[string]int64 // data_sources snapshot; nil until read
}

// New creates a DB. No connection is opened until the first operation.
func New(opts Options) *DB {
	db := &DB{
		opener:   opts.Opener,
		logger:   opts.Logger,
		suppress: opts.SuppressCollisionWarnings,
		now:      opts.Now,
	}
	if db.logger == nil {
		db.logger = zap.NewNop()
	}
	if db.now == nil {
		db.now = time.Now
	}
	return db
}

// Bootstrap opens the connection if needed and creates missing tables and
// indexes. Callers should treat failure as fatal.
func (db *DB) Bootstrap(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn(ctx)
	return err
}

// DropAndRecreate drops every table and index and creates them empty.
// Rows are not migrated.
func (db *DB) DropAndRecreate(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := db.conn(ctx)
	if err != nil {
		return err
	}

	db.logger.Warn("dropping and recreating knowledge base tables")
	if err := s.DropSchema(ctx); err != nil {
		return db.fail("drop schema", err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		return db.fail("create schema", err)
	}
	db.sources = nil
	return nil
}

// IsConnected reports whether a storage connection is open.
func (db *DB) IsConnected() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store != nil
}

// Close releases the connection. The next operation reconnects.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.disconnect()
}

// DataSources returns every registered data source ordered by id.
func (db *DB) DataSources(ctx context.Context) ([]domain.DataSource, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := db.conn(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := s.ListDataSources(ctx)
	if err != nil {
		return nil, db.fail("list data sources", err)
	}
	return sources, nil
}

// GetOrCreateSourceID returns the id of the named data source, creating it
// on first use. Lookups are served from an in-memory snapshot of the
// data_sources table.
func (db *DB) GetOrCreateSourceID(ctx context.Context, name string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.sourceID(ctx, name)
}

// ReplaceSource deletes every row of schema owned by sourceID and returns how
// many were removed. Nothing is issued when the source owns no rows.
func (db *DB) ReplaceSource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.replaceSource(ctx, schema, sourceID)
}

// ClearSource deletes every row of schema owned by the named source. Unknown
// sources are not created and clear nothing.
func (db *DB) ClearSource(ctx context.Context, schema domain.Schema, name string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	id, ok, err := db.lookupSource(ctx, name)
	if err != nil || !ok {
		return 0, err
	}
	return db.replaceSource(ctx, schema, id)
}

// BulkInsert inserts rows in one atomic operation. When that hits the unique
// index it falls back to InsertOneAtATime.
func (db *DB) BulkInsert(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) (storage.InsertStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bulkInsert(ctx, schema, rows)
}

// InsertOneAtATime inserts rows individually. A row whose key is taken is
// compared with the stored row on every non-volatile column: a match counts
// as identical, a mismatch as a collision and is logged with its diff. The
// stored row is always kept.
func (db *DB) InsertOneAtATime(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) (storage.InsertStats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertOneAtATime(ctx, schema, rows)
}

// LoadRows returns every stored row of schema ordered by data source id then
// insertion order, with the source name in domain.ColDataSource.
func (db *DB) LoadRows(ctx context.Context, schema domain.Schema) ([]coalesce.Fields, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, err := db.conn(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.LoadAll(ctx, schema)
	observability.RecordDBQuery("load_"+schema.Table, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, db.fail("load "+schema.Table, err)
	}
	return rows, nil
}

// conn returns the open store, connecting and creating missing tables first
// if needed. Caller holds db.mu.
func (db *DB) conn(ctx context.Context) (storage.Store, error) {
	if db.store != nil {
		return db.store, nil
	}
	if db.opener == nil {
		return nil, errors.New("addressdb: no storage opener configured")
	}

	s, err := db.opener(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	observability.RecordConnect()
	db.logger.Debug("opened storage connection")
	db.store = s
	return s, nil
}

// disconnect closes the store and forgets the snapshot. Caller holds db.mu.
func (db *DB) disconnect() error {
	db.sources = nil
	if db.store == nil {
		return nil
	}
	err := db.store.Close()
	db.store = nil
	db.logger.Debug("closed storage connection")
	return err
}

// fail disconnects after a storage error and wraps err with op.
func (db *DB) fail(op string, err error) error {
	if closeErr := db.disconnect(); closeErr != nil {
		db.logger.Warn("close after storage error failed", zap.Error(closeErr))
	}
	db.logger.Error("storage error, disconnected", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (db *DB) sourceID(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty data source name", storage.ErrInvalidInput)
	}
	if id, ok, err := db.lookupSource(ctx, name); err != nil || ok {
		return id, err
	}

	s, err := db.conn(ctx)
	if err != nil {
		return 0, err
	}
	_, err = s.InsertDataSource(ctx, name, db.now().UTC())
	switch {
	case err == nil:
		observability.RecordDataSourceCreated()
		db.logger.Info("created data source", zap.String("data_source", name))
	case errors.Is(err, storage.ErrDuplicateKey):
		// created since the snapshot was taken
	default:
		return 0, db.fail("insert data source", err)
	}

	// Re-read so the id comes from storage.
	db.sources = nil
	id, ok, err := db.lookupSource(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("data source %q missing after insert: %w", name, storage.ErrNotFound)
	}
	return id, nil
}

func (db *DB) lookupSource(ctx context.Context, name string) (int64, bool, error) {
	if db.sources == nil {
		s, err := db.conn(ctx)
		if err != nil {
			return 0, false, err
		}
		list, err := s.ListDataSources(ctx)
		if err != nil {
			return 0, false, db.fail("list data sources", err)
		}
		db.sources = make(map[string]int64, len(list))
		for _, ds := range list {
			db.sources[ds.Name] = ds.ID
		}
	}
	id, ok := db.sources[name]
	return id, ok, nil
}

func (db *DB) replaceSource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	s, err := db.conn(ctx)
	if err != nil {
		return 0, err
	}

	n, err := s.CountBySource(ctx, schema, sourceID)
	if err != nil {
		return 0, db.fail("count "+schema.Table, err)
	}
	if n == 0 {
		return 0, nil
	}

	db.logger.Info("deleting rows before reload",
		zap.String("table", schema.Table),
		zap.Int64("data_source_id", sourceID),
		zap.Int64("rows", n),
	)
	start := time.Now()
	deleted, err := s.DeleteBySource(ctx, schema, sourceID)
	observability.RecordDBQuery("delete_"+schema.Table, time.Since(start).Seconds(), err)
	if err != nil {
		return 0, db.fail("delete "+schema.Table, err)
	}
	observability.RecordDelete(schema.Table, deleted)
	return deleted, nil
}

func (db *DB) bulkInsert(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) (storage.InsertStats, error) {
	if len(rows) == 0 {
		return storage.InsertStats{}, nil
	}

	s, err := db.conn(ctx)
	if err != nil {
		return storage.InsertStats{}, err
	}

	db.logger.Debug("bulk writing rows", zap.String("table", schema.Table), zap.Int("rows", len(rows)))
	start := time.Now()
	err = s.InsertBulk(ctx, schema, rows)
	observability.RecordDBQuery("bulk_insert_"+schema.Table, time.Since(start).Seconds(), err)

	switch {
	case err == nil:
		stats := storage.InsertStats{Written: len(rows)}
		observability.RecordInsert(schema.Table, stats.Written, 0, 0, false)
		return stats, nil
	case errors.Is(err, storage.ErrDuplicateKey):
		db.logger.Warn("bulk insert hit unique index, writing one row at a time",
			zap.String("table", schema.Table), zap.Int("rows", len(rows)))
		stats, err := db.insertOneAtATime(ctx, schema, rows)
		stats.FellBack = true
		if err == nil {
			observability.RecordInsert(schema.Table, 0, 0, 0, true)
		}
		return stats, err
	default:
		return storage.InsertStats{}, db.fail("bulk insert "+schema.Table, err)
	}
}

func (db *DB) insertOneAtATime(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) (storage.InsertStats, error) {
	var stats storage.InsertStats

	s, err := db.conn(ctx)
	if err != nil {
		return stats, err
	}

	for _, row := range rows {
		res, err := s.InsertRow(ctx, schema, row)
		if err != nil {
			return stats, db.fail("insert "+schema.Table+" row", err)
		}
		if res.Outcome == storage.Inserted {
			stats.Written++
			continue
		}

		diffs := storage.Diff(schema, res.Existing, row)
		if len(diffs) == 0 {
			stats.Identical++
			continue
		}
		stats.Collisions++
		if !db.suppress {
			db.logger.Warn("address collision, keeping stored row",
				zap.String("table", schema.Table),
				zap.String("chain", row.String(domain.ColChain)),
				zap.String("address", row.String(domain.ColAddress)),
				zap.Any("data_source_id", row[domain.ColDataSourceID]),
				zap.String("mismatched", storage.FormatDiff(diffs)),
			)
		}
	}

	observability.RecordInsert(schema.Table, stats.Written, stats.Identical, stats.Collisions, false)
	db.logger.Info("wrote rows one at a time",
		zap.String("table", schema.Table),
		zap.Int("written", stats.Written),
		zap.Int("identical", stats.Identical),
		zap.Int("collisions", stats.Collisions),
	)
	return stats, nil
}
