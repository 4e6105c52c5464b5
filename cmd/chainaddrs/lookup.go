package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chain-addresses/internal/chains"
)

var labelCmd = &cobra.Command{
	Use:   "label <chain> <address>",
	Short: "Show the coalesced label of an address",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		w, err := a.lookup().Wallet(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if w == nil {
			fmt.Fprintln(out, "not found")
			return nil
		}
		fmt.Fprintf(out, "chain:        %s\n", w.Chain)
		fmt.Fprintf(out, "address:      %s\n", w.Address.Address)
		fmt.Fprintf(out, "label:        %s\n", w.LabelOrUnknown())
		fmt.Fprintf(out, "category:     %s\n", w.CategoryOrUnknown())
		if w.Organization != nil {
			fmt.Fprintf(out, "organization: %s\n", *w.Organization)
		}
		fmt.Fprintf(out, "data source:  %s\n", w.DataSource)
		return nil
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token <chain> <symbol>",
	Short: "Show the address and decimals of a token symbol",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		svc := a.lookup()
		addr, err := svc.TokenAddress(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		decimals, err := svc.TokenDecimals(cmd.Context(), args[0], addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  decimals=%d\n", addr, decimals)
		return nil
	}),
}

var guessCmd = &cobra.Command{
	Use:   "guess <address>",
	Short: "Guess which chain an address belongs to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		d, ok := a.reg.Guess(strings.TrimSpace(args[0]))
		if !ok {
			return fmt.Errorf("no chain matches %q", args[0])
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", d.ChainString(), d.Name)
		if d.ID == chains.Solana {
			if kind, err := chains.SolanaAccountKind(strings.TrimSpace(args[0])); err == nil {
				fmt.Fprintf(out, "account kind: %s\n", kind)
			}
		}
		return nil
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Fuzzy search wallet labels",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		matches, err := a.lookup().Search(cmd.Context(), strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%8s  %-12s %-44s %s\n", "SCORE", "CHAIN", "ADDRESS", "LABEL")
		for _, m := range matches {
			fmt.Fprintf(out, "%8d  %-12s %-44s %s\n", m.Score, m.Wallet.Chain, m.Wallet.Address.Address, m.Wallet.LabelOrUnknown())
		}
		return nil
	}),
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of matches")
	rootCmd.AddCommand(labelCmd, tokenCmd, guessCmd, searchCmd)
}
