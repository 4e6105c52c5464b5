package addressdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage"
)

// InsertTokens replaces the tokens of the records' data source with records.
// All records must share one data source.
func (db *DB) InsertTokens(ctx context.Context, tokens []domain.Token) (storage.InsertStats, error) {
	return insertRecords(ctx, db, domain.TokenSchema, tokens,
		func(t *domain.Token) *domain.Address { return &t.Address },
		func(t *domain.Token) coalesce.Fields { return t.Fields() },
	)
}

// InsertWallets replaces the wallets of the records' data source with records.
// All records must share one data source.
func (db *DB) InsertWallets(ctx context.Context, wallets []domain.Wallet) (storage.InsertStats, error) {
	return insertRecords(ctx, db, domain.WalletSchema, wallets,
		func(w *domain.Wallet) *domain.Address { return &w.Address },
		func(w *domain.Wallet) coalesce.Fields { return w.Fields() },
	)
}

// insertRecords stamps records with their data source id and extraction
// time, deletes the source's previous rows and bulk inserts the new ones.
func insertRecords[T any](
	ctx context.Context,
	db *DB,
	schema domain.Schema,
	records []T,
	base func(*T) *domain.Address,
	fields func(*T) coalesce.Fields,
) (storage.InsertStats, error) {
	if len(records) == 0 {
		db.logger.Debug("nothing to write", zap.String("table", schema.Table))
		return storage.InsertStats{}, nil
	}

	source := base(&records[0]).DataSource
	if source == "" {
		return storage.InsertStats{}, fmt.Errorf("%w: %s record without data source", storage.ErrInvalidInput, schema.Table)
	}
	for i := range records {
		if ds := base(&records[i]).DataSource; ds != source {
			return storage.InsertStats{}, fmt.Errorf("%w: mismatched data sources %q and %q", storage.ErrInvalidInput, source, ds)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	sourceID, err := db.sourceID(ctx, source)
	if err != nil {
		return storage.InsertStats{}, err
	}

	extractedAt := db.now().UTC()
	rows := make([]coalesce.Fields, len(records))
	for i := range records {
		a := base(&records[i])
		a.DataSourceID = sourceID
		if a.ExtractedAt.IsZero() {
			a.ExtractedAt = extractedAt
		}
		rows[i] = fields(&records[i])
	}

	if _, err := db.replaceSource(ctx, schema, sourceID); err != nil {
		return storage.InsertStats{}, err
	}

	stats, err := db.bulkInsert(ctx, schema, rows)
	if err != nil {
		return stats, err
	}
	db.logger.Info("finished writing rows",
		zap.String("table", schema.Table),
		zap.String("data_source", source),
		zap.Int("rows", len(rows)),
		zap.Int("written", stats.Written),
	)
	return stats, nil
}
