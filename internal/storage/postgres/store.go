package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage"
	"chain-addresses/internal/storage/migrations"
)

// Store implements storage.Store using PostgreSQL.
type Store struct {
	pool *Pool
}

// NewStore creates a new Store over an open pool. The store owns the pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Opener returns a storage.Opener that connects to dsn.
func Opener(dsn string) storage.Opener {
	return func(ctx context.Context) (storage.Store, error) {
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return NewStore(pool), nil
	}
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// CreateSchema applies the embedded migrations.
func (s *Store) CreateSchema(ctx context.Context) error {
	return migrations.RunPostgresMigrations(ctx, s.pool)
}

// DropSchema drops every knowledge-base table.
func (s *Store) DropSchema(ctx context.Context) error {
	return migrations.DropPostgresTables(ctx, s.pool)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ListDataSources returns every source ordered by id.
func (s *Store) ListDataSources(ctx context.Context) ([]domain.DataSource, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM data_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.DataSource
	for rows.Next() {
		var ds domain.DataSource
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan data source row: %w", err)
		}
		sources = append(sources, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data source rows: %w", err)
	}
	return sources, nil
}

// InsertDataSource adds a source. Returns ErrDuplicateKey if the name exists.
func (s *Store) InsertDataSource(ctx context.Context, name string, createdAt time.Time) (int64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO data_sources (name, created_at) VALUES ($1, $2) RETURNING id`,
		name, createdAt,
	).Scan(&id)
	if err != nil {
		if err := classify(err); errors.Is(err, storage.ErrDuplicateKey) {
			return 0, err
		}
		return 0, fmt.Errorf("insert data source: %w", err)
	}
	return id, nil
}

// CountBySource counts rows owned by sourceID.
func (s *Store) CountBySource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	var n int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE data_source_id = $1`, ident(schema.Table))
	if err := s.pool.QueryRow(ctx, query, sourceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s by source: %w", schema.Table, err)
	}
	return n, nil
}

// DeleteBySource removes rows owned by sourceID.
func (s *Store) DeleteBySource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE data_source_id = $1`, ident(schema.Table))
	tag, err := s.pool.Exec(ctx, query, sourceID)
	if err != nil {
		return 0, fmt.Errorf("delete %s by source: %w", schema.Table, err)
	}
	return tag.RowsAffected(), nil
}

// InsertBulk copies rows in one COPY statement. Fails entire batch on any duplicate.
func (s *Store) InsertBulk(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) error {
	if len(rows) == 0 {
		return nil
	}

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return values(schema, rows[i]), nil
	})
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{schema.Table}, schema.Columns, src)
	if err != nil {
		return fmt.Errorf("copy into %s: %w", schema.Table, classify(err))
	}
	return nil
}

// InsertRow inserts one row. On a key conflict the stored row is returned.
func (s *Store) InsertRow(ctx context.Context, schema domain.Schema, row coalesce.Fields) (storage.InsertResult, error) {
	placeholders := make([]string, len(schema.Columns))
	for i := range schema.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING RETURNING row_id`,
		ident(schema.Table), columnList(schema.Columns), strings.Join(placeholders, ", "), columnList(schema.Key),
	)

	var rowID int64
	err := s.pool.QueryRow(ctx, query, values(schema, row)...).Scan(&rowID)
	switch {
	case err == nil:
		return storage.InsertResult{Outcome: storage.Inserted}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return storage.InsertResult{}, fmt.Errorf("insert into %s: %w", schema.Table, classify(err))
	}

	existing, err := s.getByKey(ctx, schema, row)
	if err != nil {
		return storage.InsertResult{}, err
	}
	return storage.InsertResult{Outcome: storage.Conflict, Existing: existing}, nil
}

// LoadAll returns every row ordered by data source id then insertion order.
func (s *Store) LoadAll(ctx context.Context, schema domain.Schema) ([]coalesce.Fields, error) {
	cols := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[i] = "t." + ident(c)
	}
	query := fmt.Sprintf(`
		SELECT %s, ds.name AS data_source
		FROM %s t
		JOIN data_sources ds ON ds.id = t.data_source_id
		ORDER BY t.data_source_id ASC, t.row_id ASC
	`, strings.Join(cols, ", "), ident(schema.Table))

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", schema.Table, err)
	}
	defer rows.Close()

	return scanFields(rows)
}

func (s *Store) getByKey(ctx context.Context, schema domain.Schema, row coalesce.Fields) (coalesce.Fields, error) {
	where := make([]string, len(schema.Key))
	args := make([]any, len(schema.Key))
	for i, col := range schema.Key {
		where[i] = fmt.Sprintf("%s = $%d", ident(col), i+1)
		args[i] = row[col]
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`,
		columnList(schema.Columns), ident(schema.Table), strings.Join(where, " AND "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s by key: %w", schema.Table, err)
	}
	defer rows.Close()

	found, err := scanFields(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		// conflicting row deleted between insert and select
		return nil, storage.ErrNotFound
	}
	return found[0], nil
}

// scanFields turns result rows into field-maps keyed by result column name.
func scanFields(rows pgx.Rows) ([]coalesce.Fields, error) {
	descs := rows.FieldDescriptions()

	var out []coalesce.Fields
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row values: %w", err)
		}
		f := make(coalesce.Fields, len(descs))
		for i, d := range descs {
			f[d.Name] = vals[i]
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// values returns row's column values in schema order.
func values(schema domain.Schema, row coalesce.Fields) []any {
	vals := make([]any, len(schema.Columns))
	for i, col := range schema.Columns {
		v := row[col]
		if coalesce.IsEmpty(v) {
			v = nil
		}
		vals[i] = v
	}
	return vals
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
	}
	return strings.Join(quoted, ", ")
}
