package sources

import (
	"context"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/importer"
)

// TokenCorrections is the data source name of manual fixes. It is meant to
// be declared first in the source priority so its values win every merge.
const TokenCorrections = "token_corrections"

const heco = "heco"

type tokenRename struct {
	chain, address, name string
}

type decimalFix struct {
	chain, address string
	decimals       int
}

var tokenRenames = []tokenRename{
	{chains.BSC, "0x14016e85a25aeb13065688cafb43044c2ef86784", "BinancePeg-TUSD"},
	{chains.BSC, "0x0e09fabb73bd3ade0a17ecc321fd13a19e81ce82", "CAKE"},
	{heco, "0x0298c2b32eae4da002a15f36fdf7615bea3da047", "HecoPeg-HUSD"},
	{chains.Ethereum, "0xae78736cd615f374d3085123a210448e74fc6393", "rETH"},
	{chains.Ethereum, "0xccf4429db6322d5c611ee964527d42e5d685dd6a", "cWBTC"},
	{chains.Ethereum, "0x1a7e4e63778b4f12a199c062f3efdd288afcbce8", "agEUR"},
	{chains.Ethereum, "0xE95A203B1a91a908F9B9CE46459d101078c2c3cb", "ankrETH"},
	{chains.Ethereum, "0xbe9895146f7af43049ca1c1ae358b0541ea49704", "cbETH"},
	{chains.Ethereum, "0x3231cb76718cdef2155fc47b5286d82e6eda273f", "EURe"},
	{chains.Ethereum, "0x87611ca3403a3878dfef0da2a786e209abfc1eff", "eUSD"},
	{chains.Ethereum, "0x514910771af9ca656af840dff83e8264ecf986ca", "LINK"},
	{chains.Ethereum, "0x8e870d67f660d95d5be530380d0ec0bd388289e1", "USDP"},
	{chains.Ethereum, "0x7f39c581f595b53c5cb19bd0b3f8da6c935e2ca0", "wstETH"},
	{chains.Ethereum, "0x1456688345527bE1f37E9e627DA0837D6f08C925", "Unit-USDP"},
	{chains.Polygon, "0xe0b52e49357fd4daf2c15e02058dce6bc0057db4", "agEUR"},
}

var decimalFixes = []decimalFix{
	{chains.BSC, "0xa5ac8f8e90762380cce6c16aba17ed6d2cf75888", 9},
	{heco, "0x0298c2b32eae4da002a15f36fdf7615bea3da047", 8},
	{chains.Tron, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", 6},
}

var burnAddresses = map[string]string{
	chains.Ethereum: "0x0000000000000000000000000000000000000000",
	chains.BSC:      "0x0000000000000000000000000000000000000000",
	heco:            "0x0000000000000000000000000000000000000000",
	chains.Tron:     "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
}

type correctionsImporter struct{}

// NewTokenCorrections returns the importer for manual token renames,
// decimal fixes and burn address labels. Each correction only sets the
// fields it fixes and leaves the rest to lower-priority sources.
func NewTokenCorrections() importer.Importer {
	return correctionsImporter{}
}

func (correctionsImporter) Name() string { return TokenCorrections }

func (correctionsImporter) Fetch(context.Context) (*importer.Batch, error) {
	batch := &importer.Batch{}

	// renames and decimal fixes for the same token collapse into one record
	index := make(map[[2]string]int)
	tokenAt := func(chain, address string) *domain.Token {
		k := [2]string{chain, address}
		if i, ok := index[k]; ok {
			return &batch.Tokens[i]
		}
		index[k] = len(batch.Tokens)
		batch.Tokens = append(batch.Tokens, domain.Token{Address: domain.Address{
			Chain:      chain,
			Address:    address,
			DataSource: TokenCorrections,
		}})
		return &batch.Tokens[len(batch.Tokens)-1]
	}

	for _, r := range tokenRenames {
		name := r.name
		tokenAt(r.chain, r.address).Name = &name
	}
	for _, f := range decimalFixes {
		decimals := f.decimals
		tokenAt(f.chain, f.address).Decimals = &decimals
	}

	for _, chain := range []string{chains.Ethereum, chains.BSC, heco, chains.Tron} {
		name, category := "Burn address", "burn"
		batch.Wallets = append(batch.Wallets, domain.Wallet{Address: domain.Address{
			Chain:      chain,
			Address:    burnAddresses[chain],
			Name:       &name,
			Category:   &category,
			DataSource: TokenCorrections,
		}})
	}
	return batch, nil
}
