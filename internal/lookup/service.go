// Package lookup answers label and token questions from the coalesced
// knowledge base. Each entity type is loaded once, on first use, by fetching
// every stored row, ordering rows by declared source priority and merging
// rows that share a (chain, address).
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/observability"
)

// ErrTokenNotFound is returned when no token on a chain has the symbol.
var ErrTokenNotFound = errors.New("token not found")

// RowSource supplies raw stored rows. Satisfied by *addressdb.DB.
type RowSource interface {
	LoadRows(ctx context.Context, schema domain.Schema) ([]coalesce.Fields, error)
}

// Options configures a Service.
type Options struct {
	// SkipLoad makes every lookup answer from empty caches without touching
	// storage. Used while the knowledge base itself is being rebuilt.
	SkipLoad bool

	// Priority orders data sources, highest trust first.
	Priority coalesce.Priority

	Logger *zap.Logger
}

// Service is the read side of the knowledge base.
type Service struct {
	src     RowSource
	reg     *chains.Registry
	opts    Options
	logger  *zap.Logger
	tokens  *Cache[*tokenIndex]
	wallets *Cache[*walletIndex]
}

// NewService creates a service. Nothing is loaded until the first lookup.
func NewService(src RowSource, reg *chains.Registry, opts Options) *Service {
	s := &Service{src: src, reg: reg, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.tokens = NewCache(s.loadTokens)
	s.wallets = NewCache(s.loadWallets)
	return s
}

// TokensLoaded reports whether the token cache is loaded.
func (s *Service) TokensLoaded() bool { return s.tokens.IsLoaded() }

// WalletsLoaded reports whether the wallet cache is loaded.
func (s *Service) WalletsLoaded() bool { return s.wallets.IsLoaded() }

// TokenAddress returns the address of the token with symbol on chain.
// Returns ErrTokenNotFound when there is none.
func (s *Service) TokenAddress(ctx context.Context, chain, symbol string) (string, error) {
	idx, err := s.tokenIndex(ctx)
	if err != nil {
		return "", err
	}
	chainID := s.chainKey(chain)
	tok, ok := idx.bySymbol[chainID][strings.TrimSpace(symbol)]
	if !ok {
		return "", fmt.Errorf("%w: no %q on %s", ErrTokenNotFound, symbol, chainID)
	}
	return tok.Address.Address, nil
}

// TokenSymbol returns the symbol of the token at address.
func (s *Service) TokenSymbol(ctx context.Context, chain, address string) (string, bool, error) {
	tok, err := s.Token(ctx, chain, address)
	if err != nil || tok == nil || tok.Symbol == nil {
		return "", false, err
	}
	return *tok.Symbol, true, nil
}

// TokenDecimals returns the decimals of the token at address, or the chain's
// default when the token or its decimals are unknown. Zero is a real value.
func (s *Service) TokenDecimals(ctx context.Context, chain, address string) (int, error) {
	tok, err := s.Token(ctx, chain, address)
	if err != nil {
		return 0, err
	}
	if tok != nil && tok.Decimals != nil {
		return *tok.Decimals, nil
	}
	if d, ok := s.reg.Get(chain); ok {
		return d.DefaultDecimals, nil
	}
	return 0, nil
}

// WalletLabel returns the label of the wallet at address.
func (s *Service) WalletLabel(ctx context.Context, chain, address string) (string, bool, error) {
	w, err := s.Wallet(ctx, chain, address)
	if err != nil || w == nil || w.Name == nil {
		return "", false, err
	}
	return *w.Name, true, nil
}

// WalletCategory returns the category of the wallet at address.
func (s *Service) WalletCategory(ctx context.Context, chain, address string) (string, bool, error) {
	w, err := s.Wallet(ctx, chain, address)
	if err != nil || w == nil || w.Category == nil {
		return "", false, err
	}
	return *w.Category, true, nil
}

// Token returns the coalesced token at address, or nil.
func (s *Service) Token(ctx context.Context, chain, address string) (*domain.Token, error) {
	idx, err := s.tokenIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.byKey[s.key(chain, address)], nil
}

// Wallet returns the coalesced wallet at address, or nil. Token addresses
// are wallets too.
func (s *Service) Wallet(ctx context.Context, chain, address string) (*domain.Wallet, error) {
	idx, err := s.walletIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.byKey[s.key(chain, address)], nil
}

// Tokens returns every coalesced token in load order.
func (s *Service) Tokens(ctx context.Context) ([]*domain.Token, error) {
	idx, err := s.tokenIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.all, nil
}

// Wallets returns every coalesced wallet, token views first.
func (s *Service) Wallets(ctx context.Context) ([]*domain.Wallet, error) {
	idx, err := s.walletIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.all, nil
}

// Labels returns the flattened label view of every wallet.
func (s *Service) Labels(ctx context.Context) ([]domain.Label, error) {
	ws, err := s.Wallets(ctx)
	if err != nil {
		return nil, err
	}
	labels := make([]domain.Label, len(ws))
	for i, w := range ws {
		labels[i] = w.Label()
	}
	return labels, nil
}

// IsValidAddress checks address against chain's rules. Unknown chains are
// checked against a permissive descriptor that is never registered.
func (s *Service) IsValidAddress(chain, address string) bool {
	return s.reg.Peek(chain).IsValidAddress(address)
}

// GuessChain returns the chain address most likely belongs to.
func (s *Service) GuessChain(address string) (*chains.Descriptor, bool) {
	return s.reg.Guess(strings.TrimSpace(address))
}

func (s *Service) tokenIndex(ctx context.Context) (*tokenIndex, error) {
	if s.opts.SkipLoad {
		return emptyTokens, nil
	}
	return s.tokens.EnsureLoaded(ctx)
}

func (s *Service) walletIndex(ctx context.Context) (*walletIndex, error) {
	if s.opts.SkipLoad {
		return emptyWallets, nil
	}
	return s.wallets.EnsureLoaded(ctx)
}

func (s *Service) loadTokens(ctx context.Context) (*tokenIndex, error) {
	rows, err := s.sortedRows(ctx, domain.TokenSchema)
	if err != nil {
		observability.RecordCacheLoad(domain.TokenSchema.Table, 0, err)
		return nil, err
	}
	idx := newTokenIndex(coalesce.Merge(rows, nil))
	idx.views = make([]coalesce.Fields, 0, len(rows))
	for _, row := range rows {
		tok := domain.TokenFromFields(row)
		view := tok.WalletView()
		idx.views = append(idx.views, view.Fields())
	}
	observability.RecordCacheLoad(domain.TokenSchema.Table, len(idx.all), nil)
	s.logger.Info("loaded tokens", zap.Int("rows", len(rows)), zap.Int("tokens", len(idx.all)))
	return idx, nil
}

// loadWallets merges the wallet view of every stored token row with the
// stored wallet rows. Each view keeps its token row's data source, so the
// declared priority decides between a token symbol and a wallet label.
func (s *Service) loadWallets(ctx context.Context) (*walletIndex, error) {
	tokens, err := s.tokens.EnsureLoaded(ctx)
	if err != nil {
		observability.RecordCacheLoad(domain.WalletSchema.Table, 0, err)
		return nil, err
	}
	rows, err := s.src.LoadRows(ctx, domain.WalletSchema)
	if err != nil {
		observability.RecordCacheLoad(domain.WalletSchema.Table, 0, err)
		return nil, fmt.Errorf("load %s: %w", domain.WalletSchema.Table, err)
	}

	all := make([]coalesce.Fields, 0, len(tokens.views)+len(rows))
	all = append(all, tokens.views...)
	all = append(all, rows...)
	s.sortRows(all)

	idx := newWalletIndex(coalesce.Merge(all, nil))
	observability.RecordCacheLoad(domain.WalletSchema.Table, len(idx.all), nil)
	s.logger.Info("loaded wallets", zap.Int("rows", len(rows)), zap.Int("wallets", len(idx.all)))
	return idx, nil
}

func (s *Service) sortedRows(ctx context.Context, schema domain.Schema) ([]coalesce.Fields, error) {
	rows, err := s.src.LoadRows(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", schema.Table, err)
	}
	s.sortRows(rows)
	return rows, nil
}

// sortRows stably orders rows by their data source's declared priority.
func (s *Service) sortRows(rows []coalesce.Fields) {
	s.opts.Priority.SortRows(rows, func(f coalesce.Fields) string {
		return f.String(domain.ColDataSource)
	})
}

// key normalizes a query the way stored records are normalized.
func (s *Service) key(chain, address string) coalesce.Key {
	address = strings.TrimSpace(address)
	if d, ok := s.reg.Get(chain); ok {
		return coalesce.Key{Chain: d.ChainString(), Address: d.Normalize(address)}
	}
	return coalesce.Key{Chain: s.chainKey(chain), Address: strings.ToLower(address)}
}

func (s *Service) chainKey(chain string) string {
	if d, ok := s.reg.Get(chain); ok {
		return d.ChainString()
	}
	return strings.ToLower(strings.TrimSpace(chain))
}
