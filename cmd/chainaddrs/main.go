// Command chainaddrs builds and queries the blockchain address knowledge
// base.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chain-addresses/internal/addressdb"
	"chain-addresses/internal/chains"
	"chain-addresses/internal/config"
	"chain-addresses/internal/importer"
	"chain-addresses/internal/logging"
	"chain-addresses/internal/lookup"
	"chain-addresses/internal/storage"
	"chain-addresses/internal/storage/memory"
	pgstore "chain-addresses/internal/storage/postgres"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "chainaddrs",
	Short:         "Blockchain address knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CHAINADDRS_CONFIG"), "path to YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app holds the components shared by every command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	reg    *chains.Registry
	db     *addressdb.DB
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	reg.SetLogger(logger.Named("chains"))

	var opener storage.Opener
	if cfg.Database.UseMemory {
		logger.Warn("using in-memory storage, data is lost on exit")
		opener = memory.NewBackend().Open
	} else {
		opener = pgstore.Opener(cfg.Database.PostgresDSN)
	}

	db := addressdb.New(addressdb.Options{
		Opener:                    opener,
		Logger:                    logger.Named("addressdb"),
		SuppressCollisionWarnings: cfg.SuppressCollisionWarnings,
	})
	return &app{cfg: cfg, logger: logger, reg: reg, db: db}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) runner() *importer.Runner {
	return importer.NewRunner(importer.Options{
		Writer:    a.db,
		Registry:  a.reg,
		Importers: a.cfg.Importers(),
		Priority:  a.cfg.SourcePriority(),
		Policy:    a.cfg.Policy(),
		Logger:    a.logger.Named("importer"),
	})
}

func (a *app) lookup() *lookup.Service {
	return lookup.NewService(a.db, a.reg, lookup.Options{
		SkipLoad: a.cfg.SkipLoad,
		Priority: a.cfg.SourcePriority(),
		Logger:   a.logger.Named("lookup"),
	})
}

// withApp builds the app for a command and closes it afterwards.
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd, args, a)
	}
}
