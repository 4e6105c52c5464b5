package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chain-addresses/internal/server"
)

var (
	serveAddr    string
	serveRebuild bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups and metrics over HTTP",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		if serveRebuild {
			if _, err := a.runner().Rebuild(ctx); err != nil {
				return err
			}
		}
		if err := a.db.Bootstrap(ctx); err != nil {
			return err
		}

		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		a.logger.Info("serving knowledge base", zap.String("addr", addr), zap.Bool("skip_load", a.cfg.SkipLoad))
		return server.New(a.lookup(), a.reg, a.logger.Named("server")).Run(ctx, addr)
	}),
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveRebuild, "rebuild", false, "rebuild the knowledge base before serving")
	rootCmd.AddCommand(serveCmd)
}
