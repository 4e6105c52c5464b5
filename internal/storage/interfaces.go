package storage

import (
	"context"
	"time"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
)

// DataSourceStore provides access to data_sources storage.
type DataSourceStore interface {
	// ListDataSources returns every source ordered by id.
	ListDataSources(ctx context.Context) ([]domain.DataSource, error)

	// InsertDataSource adds a source and returns its generated id.
	// Returns ErrDuplicateKey if the name exists.
	InsertDataSource(ctx context.Context, name string, createdAt time.Time) (int64, error)
}

// AddressStore provides access to the wallets and tokens tables. Rows are
// field-maps keyed by the schema's column names.
type AddressStore interface {
	// CountBySource counts rows owned by a data source.
	CountBySource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error)

	// DeleteBySource removes rows owned by a data source and returns how many.
	DeleteBySource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error)

	// InsertBulk adds rows atomically. Returns ErrDuplicateKey on any unique
	// violation, in which case nothing is persisted.
	InsertBulk(ctx context.Context, schema domain.Schema, rows []coalesce.Fields) error

	// InsertRow adds one row. A unique violation is not an error: the result
	// carries the stored row instead.
	InsertRow(ctx context.Context, schema domain.Schema, row coalesce.Fields) (InsertResult, error)

	// LoadAll returns every row ordered by data source id then insertion
	// order, with the source name joined in as ColDataSource.
	LoadAll(ctx context.Context, schema domain.Schema) ([]coalesce.Fields, error)
}

// Store is one open connection to a knowledge-base backend.
type Store interface {
	DataSourceStore
	AddressStore

	// CreateSchema creates tables and unique indexes if absent.
	CreateSchema(ctx context.Context) error

	// DropSchema drops every table and index.
	DropSchema(ctx context.Context) error

	Close() error
}

// Opener opens a new Store connection.
type Opener func(ctx context.Context) (Store, error)

// LabelExportStore receives the coalesced label view for downstream analytics.
type LabelExportStore interface {
	// ExportLabels writes labels stamped with exportedAt. Re-exporting the
	// same (chain, address) replaces the earlier row.
	ExportLabels(ctx context.Context, labels []domain.Label, exportedAt time.Time) error

	// CountLabels returns the number of distinct exported addresses on chain,
	// or on every chain when chain is empty.
	CountLabels(ctx context.Context, chain string) (uint64, error)
}
