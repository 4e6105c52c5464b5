package chains

// Canonical identifiers of the built-in chains.
const (
	Ethereum     = "ethereum"
	BSC          = "bsc"
	Polygon      = "polygon"
	Arbitrum     = "arbitrum"
	Optimism     = "optimism"
	Fantom       = "fantom"
	AvalancheC   = "avax-c"
	AvalancheP   = "avax-p"
	AvalancheX   = "avax-x"
	Bitcoin      = "bitcoin"
	BitcoinCash  = "bitcoin_cash"
	Litecoin     = "litecoin"
	Tron         = "tron"
	Ripple       = "ripple"
	Cardano      = "cardano"
	Solana       = "solana"
	evmAddrLen   = 42
	tronAddrLen  = 34
	solanaKeyLen = 32
)

// Known is the declarative table of built-in chains, in guessing order.
var Known = []Descriptor{
	{Name: "Ethereum", ID: Ethereum, ShortName: "eth", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 1, ScannerURL: "https://etherscan.io/"},
	{Name: "Binance Smart Chain", ID: BSC, ShortName: "bsc", Prefixes: []string{"bnb", "0x"}, ExactLength: evmAddrLen, EVMChainID: 56, ScannerURL: "https://bscscan.com/"},
	{Name: "Polygon", ID: Polygon, ShortName: "matic", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 137, ScannerURL: "https://polygonscan.com/"},
	{Name: "Arbitrum", ID: Arbitrum, ShortName: "arb", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 42161, ScannerURL: "https://arbiscan.io/"},
	{Name: "Optimism", ID: Optimism, ShortName: "op", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 10},
	{Name: "Fantom", ID: Fantom, ShortName: "ftm", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 250},
	{Name: "Avalanche C-Chain", ID: AvalancheC, ShortName: "avax", Prefixes: []string{"0x"}, ExactLength: evmAddrLen, Encoding: EncodingEVM, EVMChainID: 43114},
	{Name: "Avalanche P-Chain", ID: AvalancheP, Prefixes: []string{"P-avax"}},
	{Name: "Avalanche X-Chain", ID: AvalancheX, Prefixes: []string{"X-avax"}},
	{Name: "Bitcoin", ID: Bitcoin, ShortName: "btc", Prefixes: []string{"1", "3", "bc1", "lnbc"}, CaseSensitive: true},
	{Name: "Litecoin", ID: Litecoin, ShortName: "ltc", Prefixes: []string{"L", "M", "ltc1"}, CaseSensitive: true},
	{Name: "Bitcoin Cash", ID: BitcoinCash, ShortName: "bch", Prefixes: []string{"bitcoincash:", "q", "p"}},
	{Name: "Tron", ID: Tron, ShortName: "trx", Prefixes: []string{"T"}, ExactLength: tronAddrLen, Encoding: EncodingBase58, CaseSensitive: true, ScannerURL: "https://tronscan.org/#/"},
	{Name: "Ripple", ID: Ripple, ShortName: "xrp", Prefixes: []string{"r"}, CaseSensitive: true},
	{Name: "Cardano", ID: Cardano, ShortName: "ada", Prefixes: []string{"addr1", "Ae2", "DdzFF"}, CaseSensitive: true},
	{Name: "Solana", ID: Solana, ShortName: "sol", Encoding: EncodingBase58, DecodedLength: solanaKeyLen, CaseSensitive: true},
}

// knownAliases maps tags seen in source data to canonical identifiers.
var knownAliases = map[string]string{
	"eth":                      Ethereum,
	"binance smart chain":      BSC,
	"binance_smart_chain":      BSC,
	"bnb smart chain":          BSC,
	"matic":                    Polygon,
	"avalanche":                AvalancheC,
	"avalanche contract chain": AvalancheC,
	"avax":                     AvalancheC,
	"btc":                      Bitcoin,
	"bch":                      BitcoinCash,
	"ltc":                      Litecoin,
	"trx":                      Tron,
	"xrp":                      Ripple,
	"sol":                      Solana,
}

// Default returns a fresh registry holding the Known chains with Ethereum as
// the default hex chain.
func Default() *Registry {
	r, err := NewRegistry(Ethereum, Known...)
	if err != nil {
		panic(err) // Known is static
	}
	for tag, id := range knownAliases {
		r.Alias(tag, id)
	}
	return r
}
