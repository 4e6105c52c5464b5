package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"chain-addresses/internal/config"
	"chain-addresses/internal/importer"
	"chain-addresses/internal/importer/sources"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Drop the knowledge base and reimport every configured source",
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		res, err := a.runner().Rebuild(cmd.Context())
		if res != nil {
			printResults(cmd, res.Results)
		}
		if err != nil {
			return err
		}
		if failed := res.Failed(); len(failed) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d source(s) failed, run %s\n", len(failed), res.RunID)
		}
		return nil
	}),
}

var (
	importKind string
	importName string
)

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import a single source, replacing only its own rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		imp, err := singleImporter(importKind, importName, path)
		if err != nil {
			return err
		}
		res, err := a.runner().Import(cmd.Context(), imp)
		printResults(cmd, []importer.Result{*res})
		return err
	}),
}

func singleImporter(kind, name, path string) (importer.Importer, error) {
	switch kind {
	case config.SourceHardcoded:
		return sources.NewHardcoded(), nil
	case config.SourceTokenCorrections:
		return sources.NewTokenCorrections(), nil
	case config.SourceCSV, config.SourceYAML:
		if path == "" {
			return nil, fmt.Errorf("%s import needs a path", kind)
		}
		if kind == config.SourceCSV {
			return sources.NewCSV(name, path), nil
		}
		return sources.NewYAML(name, path), nil
	case "":
		return nil, errors.New("--kind is required")
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

func printResults(cmd *cobra.Command, results []importer.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s %8s %8s %8s %10s %8s  %s\n", "SOURCE", "TOKENS", "WALLETS", "INVALID", "COLLISIONS", "TIME", "ERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(out, "%-24s %8d %8d %8d %10d %8s  %s\n",
			r.Source,
			r.Tokens.Written,
			r.Wallets.Written,
			r.Invalid,
			r.Tokens.Collisions+r.Wallets.Collisions,
			r.Duration.Round(1e6),
			errText,
		)
	}
}

func init() {
	importCmd.Flags().StringVar(&importKind, "kind", "", "source kind: hardcoded, token_corrections, csv, yaml")
	importCmd.Flags().StringVar(&importName, "name", "", "data source name (defaults to the file name)")
	rootCmd.AddCommand(rebuildCmd, importCmd)
}
