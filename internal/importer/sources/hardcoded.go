// Package sources holds the built-in importers.
package sources

import (
	"context"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/importer"
)

// Hardcoded is the data source name of the native asset placeholders.
const Hardcoded = "hardcoded"

// NativeAssetAddress stands in for a chain's native asset, which has no
// contract address of its own.
const NativeAssetAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

type nativeAsset struct {
	chain    string
	symbol   string
	name     string
	decimals int
}

var nativeAssets = []nativeAsset{
	{chains.Ethereum, "ETH", "Ether", 18},
	{chains.BSC, "BNB", "BNB", 18},
	{chains.Polygon, "MATIC", "Polygon", 18},
	{chains.Arbitrum, "ETH", "Ether", 18},
	{chains.Optimism, "ETH", "Ether", 18},
	{chains.Fantom, "FTM", "Fantom", 18},
	{chains.AvalancheC, "AVAX", "Avalanche", 18},
}

type hardcodedImporter struct{}

// NewHardcoded returns the importer for native asset placeholder tokens.
func NewHardcoded() importer.Importer {
	return hardcodedImporter{}
}

func (hardcodedImporter) Name() string { return Hardcoded }

func (hardcodedImporter) Fetch(context.Context) (*importer.Batch, error) {
	batch := &importer.Batch{Tokens: make([]domain.Token, 0, len(nativeAssets))}
	for _, a := range nativeAssets {
		symbol, name, decimals := a.symbol, a.name, a.decimals
		tokenType := "native"
		batch.Tokens = append(batch.Tokens, domain.Token{
			Address: domain.Address{
				Chain:      a.chain,
				Address:    NativeAssetAddress,
				Name:       &name,
				DataSource: Hardcoded,
			},
			Symbol:    &symbol,
			Decimals:  &decimals,
			TokenType: &tokenType,
		})
	}
	return batch, nil
}
