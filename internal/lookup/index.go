package lookup

import (
	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
)

type tokenIndex struct {
	all      []*domain.Token
	byKey    map[coalesce.Key]*domain.Token
	bySymbol map[string]map[string]*domain.Token // chain -> symbol

	// views holds the wallet view of every stored token row, unmerged and
	// tagged with its row's data source.
	views []coalesce.Fields
}

func newTokenIndex(merged []coalesce.Fields) *tokenIndex {
	idx := &tokenIndex{
		byKey:    make(map[coalesce.Key]*domain.Token, len(merged)),
		bySymbol: make(map[string]map[string]*domain.Token),
	}
	for _, f := range merged {
		t := domain.TokenFromFields(f)
		if t.Chain == "" || t.Address.Address == "" {
			continue
		}
		tok := &t
		idx.all = append(idx.all, tok)
		idx.byKey[tok.Key()] = tok

		if tok.Symbol == nil {
			continue
		}
		symbols := idx.bySymbol[tok.Chain]
		if symbols == nil {
			symbols = make(map[string]*domain.Token)
			idx.bySymbol[tok.Chain] = symbols
		}
		// merged rows are in priority order, so the first token claiming a
		// symbol wins
		if _, taken := symbols[*tok.Symbol]; !taken {
			symbols[*tok.Symbol] = tok
		}
	}
	return idx
}

type walletIndex struct {
	all   []*domain.Wallet
	byKey map[coalesce.Key]*domain.Wallet
}

func newWalletIndex(merged []coalesce.Fields) *walletIndex {
	idx := &walletIndex{byKey: make(map[coalesce.Key]*domain.Wallet, len(merged))}
	for _, f := range merged {
		w := domain.WalletFromFields(f)
		if w.Chain == "" || w.Address.Address == "" {
			continue
		}
		idx.all = append(idx.all, &w)
		idx.byKey[w.Key()] = &w
	}
	return idx
}

var (
	emptyTokens  = newTokenIndex(nil)
	emptyWallets = newWalletIndex(nil)
)
