package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRegistry_DuplicateID(t *testing.T) {
	_, err := NewRegistry("",
		Descriptor{Name: "Ethereum"},
		Descriptor{Name: "ETH Mainnet", ID: "Ethereum"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestNewRegistry_UnknownDefaultHex(t *testing.T) {
	_, err := NewRegistry("ethereum", Descriptor{Name: "Bitcoin"})
	require.Error(t, err)
}

func TestRegistry_GuessPrefersDefaultHex(t *testing.T) {
	// bsc is registered first and also accepts 0x addresses.
	r, err := NewRegistry(Ethereum,
		Descriptor{Name: "Binance Smart Chain", ID: BSC, Prefixes: []string{"bnb", "0x"}, ExactLength: 42},
		Descriptor{Name: "Ethereum", Prefixes: []string{"0x"}, ExactLength: 42, Encoding: EncodingEVM},
	)
	require.NoError(t, err)

	d, ok := r.Guess(usdtEthereum)
	require.True(t, ok)
	assert.Equal(t, Ethereum, d.ChainString())
}

func TestRegistry_GuessRegistrationOrder(t *testing.T) {
	r, err := NewRegistry("",
		Descriptor{Name: "First"},
		Descriptor{Name: "Second"},
	)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		d, ok := r.Guess("anything-goes")
		require.True(t, ok)
		assert.Equal(t, "first", d.ChainString())
	}
}

func TestDefault_Guess(t *testing.T) {
	r := Default()

	tests := []struct {
		addr string
		want string
	}{
		{"0x3d4E5C8a6ED4B7eB1E0F0e8A2a1D4B6dE3C4A2F1", Ethereum},
		{usdtEthereum, Ethereum},
		{"3DcTzg5Gyaj7JSAQu7gkqsoMztzUfwgT4u", Bitcoin},
		{"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", Bitcoin},
		{"T9zs7iRBoPzUFEjiDVwyghsoEnnzqbtrq2", Tron},
		{"ltc1qg82zrm2a6c4p9kd6amzd5apz6s3yzq7xxq4whk", Litecoin},
		{"X-avax1tzdcgj4ehsvhhgpl7zylwpw0gl2rxcg4r5afk5", AvalancheX},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			d, ok := r.Guess(tt.addr)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.ChainString())
		})
	}
}

func TestDefault_GuessRejectsShortValues(t *testing.T) {
	_, ok := Default().Guess("xyz")
	assert.False(t, ok)
}

func TestDefault_ExactLength(t *testing.T) {
	eth, ok := Default().Get(Ethereum)
	require.True(t, ok)

	assert.True(t, eth.IsValidAddress(usdtEthereum))
	assert.False(t, eth.IsValidAddress(usdtEthereum[:41]))
}

func TestRegistry_GetWithAlias(t *testing.T) {
	r := Default()

	d, ok := r.Get("Binance Smart Chain")
	require.True(t, ok)
	assert.Equal(t, BSC, d.ChainString())

	d, ok = r.Get(" AVALANCHE ")
	require.True(t, ok)
	assert.Equal(t, AvalancheC, d.ChainString())

	_, ok = r.Get("dogecoin")
	assert.False(t, ok)
}

func TestRegistry_ResolveSynthesizes(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := Default()
	r.SetLogger(zap.New(core))

	before := len(r.Descriptors())

	d := r.Resolve("Crypto Bro Chain")
	require.NotNil(t, d)
	assert.True(t, d.Synthesized)
	assert.Equal(t, "crypto bro chain", d.ChainString())
	assert.True(t, d.IsValidAddress("whatever-address"))
	assert.Equal(t, 1, logs.Len())

	// Second resolve returns the registered descriptor without warning again.
	again := r.Resolve("crypto bro chain")
	assert.Same(t, d, again)
	assert.Equal(t, 1, logs.Len())
	assert.Len(t, r.Descriptors(), before+1)
}

func TestRegistry_SynthesizedNotGuessed(t *testing.T) {
	r, err := NewRegistry("", Descriptor{Name: "Tron", Prefixes: []string{"T"}})
	require.NoError(t, err)
	r.Resolve("mystery")

	_, ok := r.Guess("0x0000000000000000000000000000000000000000")
	assert.False(t, ok)
}

func TestRegistry_ByEVMChainID(t *testing.T) {
	r := Default()

	d, ok := r.ByEVMChainID(56)
	require.True(t, ok)
	assert.Equal(t, BSC, d.ChainString())

	_, ok = r.ByEVMChainID(999999)
	assert.False(t, ok)
}

func TestRegistry_Replace(t *testing.T) {
	r := Default()
	r.Replace(Descriptor{Name: "Ethereum", Prefixes: []string{"0x"}, ExactLength: 42, DefaultDecimals: 18})

	d, ok := r.Get(Ethereum)
	require.True(t, ok)
	assert.Equal(t, 18, d.DefaultDecimals)
	assert.Len(t, r.Descriptors(), len(Known))
}

func TestRegistry_ReplaceLeavesHeldDescriptor(t *testing.T) {
	r := Default()
	held, ok := r.Get(Ethereum)
	require.True(t, ok)
	heldName := held.Name

	r.Replace(Descriptor{Name: "Ethereum Mainnet", ID: Ethereum, Prefixes: []string{"0x"}, ExactLength: 42, DefaultDecimals: 9})

	assert.Equal(t, heldName, held.Name)
	current, ok := r.Get(Ethereum)
	require.True(t, ok)
	assert.NotSame(t, held, current)
	assert.Equal(t, 9, current.DefaultDecimals)

	var inOrder *Descriptor
	for _, d := range r.Descriptors() {
		if d.ID == Ethereum {
			inOrder = d
		}
	}
	assert.Same(t, current, inOrder)
}

func TestRegistry_PeekDoesNotRegister(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := Default()
	r.SetLogger(zap.New(core))
	before := len(r.Descriptors())

	for _, tag := range []string{"junk-1", "junk-2", "Junk-1"} {
		d := r.Peek(tag)
		require.NotNil(t, d)
		assert.True(t, d.Synthesized)
		assert.True(t, d.IsValidAddress("whatever123"))
	}
	assert.Len(t, r.Descriptors(), before)
	assert.Zero(t, logs.Len())

	_, ok := r.Get("junk-1")
	assert.False(t, ok)

	d := r.Peek("ETH")
	assert.False(t, d.Synthesized)
	assert.Equal(t, Ethereum, d.ChainString())
}

func TestRegistry_SetDefaultHex(t *testing.T) {
	r := Default()
	require.NoError(t, r.SetDefaultHex("matic"))

	d, ok := r.Guess("0x52908400098527886E0F7030069857D2E4169EE7")
	require.True(t, ok)
	assert.Equal(t, Polygon, d.ID)

	assert.Error(t, r.SetDefaultHex("nope"))
}
