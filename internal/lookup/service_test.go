package lookup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain-addresses/internal/addressdb"
	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage/memory"
)

const (
	addrA   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	usdtETH = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	fakeETH = "0x1111111111111111111111111111111111111111"
)

func ptr[T any](v T) *T {
	return &v
}

func wallet(source, chain, addr, name, category string) domain.Wallet {
	w := domain.Wallet{Address: domain.Address{Chain: chain, Address: addr, DataSource: source}}
	if name != "" {
		w.Name = ptr(name)
	}
	if category != "" {
		w.Category = ptr(category)
	}
	return w
}

func token(source, chain, addr, symbol string, decimals *int) domain.Token {
	t := domain.Token{Address: domain.Address{Chain: chain, Address: addr, DataSource: source}}
	t.Symbol = ptr(symbol)
	t.Decimals = decimals
	return t
}

// seed writes fixtures through the persistence layer and returns a fresh db
// handle for the service.
func seed(t *testing.T, tokens []domain.Token, wallets []domain.Wallet) *addressdb.DB {
	t.Helper()
	ctx := context.Background()
	backend := memory.NewBackend()
	db := addressdb.New(addressdb.Options{
		Opener: backend.Open,
		Now:    func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(func() { _ = db.Close() })

	bySource := func(source string) []domain.Token {
		var out []domain.Token
		for _, tk := range tokens {
			if tk.DataSource == source {
				out = append(out, tk)
			}
		}
		return out
	}
	seen := map[string]bool{}
	for _, tk := range tokens {
		if seen[tk.DataSource] {
			continue
		}
		seen[tk.DataSource] = true
		_, err := db.InsertTokens(ctx, bySource(tk.DataSource))
		require.NoError(t, err)
	}

	seen = map[string]bool{}
	for _, w := range wallets {
		if seen[w.DataSource] {
			continue
		}
		seen[w.DataSource] = true
		var batch []domain.Wallet
		for _, x := range wallets {
			if x.DataSource == w.DataSource {
				batch = append(batch, x)
			}
		}
		_, err := db.InsertWallets(ctx, batch)
		require.NoError(t, err)
	}
	return db
}

func TestService_WalletLabelCoalescesByPriority(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{
		wallet("low", "ethereum", addrA, "", "cex"),
		wallet("high", "ethereum", addrA, "Alice", ""),
	})
	svc := NewService(db, chains.Default(), Options{Priority: coalesce.Priority{"high", "low"}})
	ctx := context.Background()

	label, ok, err := svc.WalletLabel(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice", label)

	category, ok, err := svc.WalletCategory(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cex", category)
}

func TestService_HigherPriorityWinsConflicts(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{
		wallet("low", "ethereum", addrA, "Low Name", ""),
		wallet("high", "ethereum", addrA, "High Name", ""),
	})
	ctx := context.Background()

	svc := NewService(db, chains.Default(), Options{Priority: coalesce.Priority{"high", "low"}})
	label, _, err := svc.WalletLabel(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.Equal(t, "High Name", label)

	svc = NewService(db, chains.Default(), Options{Priority: coalesce.Priority{"low", "high"}})
	label, _, err = svc.WalletLabel(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.Equal(t, "Low Name", label)
}

func TestService_QueryIsNormalized(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{wallet("s", "ethereum", addrA, "Alice", "")})
	svc := NewService(db, chains.Default(), Options{})

	label, ok, err := svc.WalletLabel(context.Background(), " ETH ", "  0xAAAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice", label)
}

func TestService_UnknownWallet(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{wallet("s", "ethereum", addrA, "Alice", "")})
	svc := NewService(db, chains.Default(), Options{})

	_, ok, err := svc.WalletLabel(context.Background(), "ethereum", addrB)
	require.NoError(t, err)
	assert.False(t, ok)

	w, err := svc.Wallet(context.Background(), "ethereum", addrB)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestService_TokenLookups(t *testing.T) {
	db := seed(t, []domain.Token{
		token("hardcoded", "ethereum", usdtETH, "USDT", ptr(6)),
		token("scraped", "ethereum", fakeETH, "USDT", ptr(18)),
		token("scraped", "ethereum", addrB, "ZERO", ptr(0)),
		token("scraped", "ethereum", addrA, "NODEC", nil),
	}, nil)
	svc := NewService(db, chains.Default(), Options{Priority: coalesce.Priority{"hardcoded", "scraped"}})
	ctx := context.Background()

	addr, err := svc.TokenAddress(ctx, "ethereum", "USDT")
	require.NoError(t, err)
	assert.Equal(t, usdtETH, addr)

	_, err = svc.TokenAddress(ctx, "ethereum", "NOPE")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	sym, ok, err := svc.TokenSymbol(ctx, "ethereum", fakeETH)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "USDT", sym)

	dec, err := svc.TokenDecimals(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	assert.Equal(t, 6, dec)

	dec, err = svc.TokenDecimals(ctx, "ethereum", addrB)
	require.NoError(t, err)
	assert.Equal(t, 0, dec, "zero decimals are a value")

	dec, err = svc.TokenDecimals(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.Equal(t, 0, dec, "falls back to the chain default")
}

func TestService_TokenDecimalsUsesChainDefault(t *testing.T) {
	reg := chains.Default()
	d, ok := reg.Get("ethereum")
	require.True(t, ok)
	custom := *d
	custom.DefaultDecimals = 18
	reg.Replace(custom)

	db := seed(t, []domain.Token{token("s", "ethereum", addrA, "X", nil)}, nil)
	svc := NewService(db, reg, Options{})

	dec, err := svc.TokenDecimals(context.Background(), "ethereum", addrA)
	require.NoError(t, err)
	assert.Equal(t, 18, dec)

	dec, err = svc.TokenDecimals(context.Background(), "ethereum", addrB)
	require.NoError(t, err)
	assert.Equal(t, 18, dec)
}

func TestService_TokensAppearAsWallets(t *testing.T) {
	db := seed(t,
		[]domain.Token{token("t", "ethereum", usdtETH, "USDT", ptr(6))},
		[]domain.Wallet{wallet("w", "ethereum", addrA, "Alice", "")})
	svc := NewService(db, chains.Default(), Options{Priority: coalesce.Priority{"w", "t"}})
	ctx := context.Background()

	w, err := svc.Wallet(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "USDT", *w.Name)
	assert.Equal(t, domain.CategoryToken, *w.Category)
	assert.Equal(t, "t", w.DataSource)

	labels, err := svc.Labels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 2)
}

func TestService_WalletSourceOutranksTokenSource(t *testing.T) {
	tokens := []domain.Token{token("scraped", "ethereum", usdtETH, "USDT", ptr(6))}
	wallets := []domain.Wallet{wallet("curated", "ethereum", usdtETH, "Tether Treasury", "stablecoin")}
	ctx := context.Background()

	svc := NewService(seed(t, tokens, wallets), chains.Default(),
		Options{Priority: coalesce.Priority{"curated", "scraped"}})
	label, ok, err := svc.WalletLabel(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tether Treasury", label)
	category, _, err := svc.WalletCategory(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	assert.Equal(t, "stablecoin", category)

	svc = NewService(seed(t, tokens, wallets), chains.Default(),
		Options{Priority: coalesce.Priority{"scraped", "curated"}})
	label, _, err = svc.WalletLabel(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	assert.Equal(t, "USDT", label)
	category, _, err = svc.WalletCategory(ctx, "ethereum", usdtETH)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryToken, category)
}

func TestService_IsValidAddressDoesNotGrowRegistry(t *testing.T) {
	reg := chains.Default()
	svc := NewService(&failingSource{}, reg, Options{})
	before := len(reg.Descriptors())

	for i := 0; i < 100; i++ {
		assert.True(t, svc.IsValidAddress(fmt.Sprintf("junk-%d", i), "whatever123"))
	}
	assert.False(t, svc.IsValidAddress("ethereum", "whatever123"))
	assert.Len(t, reg.Descriptors(), before)
}

func TestService_SkipLoad(t *testing.T) {
	src := &failingSource{err: errors.New("must not be called")}
	svc := NewService(src, chains.Default(), Options{SkipLoad: true})
	ctx := context.Background()

	_, ok, err := svc.WalletLabel(ctx, "ethereum", addrA)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.TokenAddress(ctx, "ethereum", "USDT")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.Zero(t, src.calls)
	assert.False(t, svc.TokensLoaded())
	assert.False(t, svc.WalletsLoaded())
}

type failingSource struct {
	err   error
	calls int
}

func (s *failingSource) LoadRows(context.Context, domain.Schema) ([]coalesce.Fields, error) {
	s.calls++
	return nil, s.err
}

func TestService_LoadErrorLeavesCacheUnloaded(t *testing.T) {
	src := &failingSource{err: errors.New("db down")}
	svc := NewService(src, chains.Default(), Options{})

	_, _, err := svc.WalletLabel(context.Background(), "ethereum", addrA)
	require.Error(t, err)
	assert.False(t, svc.TokensLoaded())
	assert.False(t, svc.WalletsLoaded())

	_, _, err = svc.WalletLabel(context.Background(), "ethereum", addrA)
	require.Error(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestService_LoadsLazilyOnce(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{wallet("s", "ethereum", addrA, "Alice", "")})
	svc := NewService(db, chains.Default(), Options{})
	assert.False(t, svc.WalletsLoaded())

	for i := 0; i < 3; i++ {
		_, _, err := svc.WalletLabel(context.Background(), "ethereum", addrA)
		require.NoError(t, err)
	}
	assert.True(t, svc.WalletsLoaded())
	assert.True(t, svc.TokensLoaded())
}

func TestService_AddressHelpers(t *testing.T) {
	svc := NewService(&failingSource{}, chains.Default(), Options{})

	assert.True(t, svc.IsValidAddress("ethereum", addrA))
	assert.False(t, svc.IsValidAddress("ethereum", "0x12"))
	assert.True(t, svc.IsValidAddress("somechain", "anything-long-enough"))

	d, ok := svc.GuessChain(" " + addrA + " ")
	require.True(t, ok)
	assert.Equal(t, chains.Ethereum, d.ID)

	_, ok = svc.GuessChain("zz")
	assert.False(t, ok)
}

func TestService_Search(t *testing.T) {
	db := seed(t, nil, []domain.Wallet{
		wallet("s", "ethereum", addrA, "Binance Hot Wallet", "cex"),
		wallet("s", "ethereum", addrB, "Kraken", "cex"),
	})
	svc := NewService(db, chains.Default(), Options{})

	matches, err := svc.Search(context.Background(), "binance hot", 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, addrA, matches[0].Wallet.Address.Address)

	matches, err = svc.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
