package clickhouse

import (
	"context"
	"fmt"
	"time"

	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage"
)

// LabelExportStore implements storage.LabelExportStore using ClickHouse.
// address_labels is a ReplacingMergeTree keyed by (chain, address), so
// re-exports converge to the newest row once parts merge.
type LabelExportStore struct {
	conn *Conn
}

// NewLabelExportStore creates a new LabelExportStore.
func NewLabelExportStore(conn *Conn) *LabelExportStore {
	return &LabelExportStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LabelExportStore = (*LabelExportStore)(nil)

// ExportLabels appends labels in a single batch.
func (s *LabelExportStore) ExportLabels(ctx context.Context, labels []domain.Label, exportedAt time.Time) error {
	if len(labels) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO address_labels (
			chain, address, label, category, organization, data_source, exported_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, l := range labels {
		if l.Chain == "" || l.Address == "" {
			batch.Abort()
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			l.Chain, l.Address, l.Label, l.Category, l.Organization, l.DataSource, exportedAt.UTC(),
		)
		if err != nil {
			batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// CountLabels counts distinct exported addresses.
func (s *LabelExportStore) CountLabels(ctx context.Context, chain string) (uint64, error) {
	query := `SELECT uniqExact(chain, address) FROM address_labels`
	var args []any
	if chain != "" {
		query += ` WHERE chain = ?`
		args = append(args, chain)
	}

	var n uint64
	if err := s.conn.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count labels: %w", err)
	}
	return n, nil
}

// GetLabel returns the newest exported label for (chain, address).
// Returns ErrNotFound if it was never exported.
func (s *LabelExportStore) GetLabel(ctx context.Context, chain, address string) (*domain.Label, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT chain, address, label, category, organization, data_source
		FROM address_labels FINAL
		WHERE chain = ? AND address = ?
	`, chain, address)
	if err != nil {
		return nil, fmt.Errorf("get label: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate label rows: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	var l domain.Label
	if err := rows.Scan(&l.Chain, &l.Address, &l.Label, &l.Category, &l.Organization, &l.DataSource); err != nil {
		return nil, fmt.Errorf("scan label row: %w", err)
	}
	return &l, nil
}
