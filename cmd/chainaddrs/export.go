package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chain-addresses/internal/storage/clickhouse"
	"chain-addresses/internal/storage/migrations"
)

const exportBatchSize = 10000

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy the coalesced wallet labels to ClickHouse",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		if a.cfg.Database.ClickhouseDSN == "" {
			return errors.New("database.clickhouse_dsn (or CLICKHOUSE_DSN) is required for export")
		}

		labels, err := a.lookup().Labels(ctx)
		if err != nil {
			return err
		}

		conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.Database.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		store := clickhouse.NewLabelExportStore(conn)
		exportedAt := time.Now().UTC()
		for start := 0; start < len(labels); start += exportBatchSize {
			end := min(start+exportBatchSize, len(labels))
			if err := store.ExportLabels(ctx, labels[start:end], exportedAt); err != nil {
				return fmt.Errorf("export labels %d-%d: %w", start, end, err)
			}
		}

		total, err := store.CountLabels(ctx, "")
		if err != nil {
			return err
		}
		a.logger.Info("exported labels", zap.Int("labels", len(labels)), zap.Uint64("stored", total))
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d labels\n", len(labels))
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
