package domain

import "slices"

// Schema declares how an entity is stored: its table, insert columns, unique
// key and the volatile columns ignored when classifying insert conflicts.
type Schema struct {
	Table    string
	Columns  []string
	Key      []string
	Volatile []string
}

// IsVolatile reports whether col is excluded from conflict diffs.
func (s Schema) IsVolatile(col string) bool {
	return slices.Contains(s.Volatile, col)
}

var addressColumns = []string{
	ColDataSourceID, ColChain, ColAddress, ColName, ColCategory, ColOrganization, ColExtractedAt,
}

var uniqueKey = []string{ColDataSourceID, ColChain, ColAddress}

// WalletSchema describes the wallets table.
var WalletSchema = Schema{
	Table:    "wallets",
	Columns:  addressColumns,
	Key:      uniqueKey,
	Volatile: []string{ColExtractedAt},
}

// TokenSchema describes the tokens table.
var TokenSchema = Schema{
	Table: "tokens",
	Columns: append(slices.Clone(addressColumns),
		ColSymbol, ColDecimals, ColTokenType, ColIsActive, ColIsScam, ColURLExplorer, ColLaunchedAt, ColExtraFields),
	Key:      uniqueKey,
	Volatile: []string{ColExtraFields, ColExtractedAt},
}
