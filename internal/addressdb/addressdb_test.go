package addressdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/storage"
	"chain-addresses/internal/storage/memory"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccc"
	addrD = "0xdddddddddddddddddddddddddddddddddddddddd"
	addrE = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

// countingStore records calls that must not happen.
type countingStore struct {
	storage.Store
	deletes int
}

func (s *countingStore) DeleteBySource(ctx context.Context, schema domain.Schema, sourceID int64) (int64, error) {
	s.deletes++
	return s.Store.DeleteBySource(ctx, schema, sourceID)
}

type testEnv struct {
	db      *DB
	backend *memory.Backend
	logs    *observer.ObservedLogs
	opens   int
	last    *countingStore
}

func newTestEnv(t *testing.T, suppress bool) *testEnv {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	env := &testEnv{backend: memory.NewBackend(), logs: logs}
	env.db = New(Options{
		Opener: func(ctx context.Context) (storage.Store, error) {
			s, err := env.backend.Open(ctx)
			if err != nil {
				return nil, err
			}
			env.opens++
			env.last = &countingStore{Store: s}
			return env.last, nil
		},
		Logger:                    zap.New(core),
		SuppressCollisionWarnings: suppress,
		Now:                       func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = env.db.Close() })
	return env
}

func wallets(source string, addrs ...string) []domain.Wallet {
	out := make([]domain.Wallet, len(addrs))
	for i, a := range addrs {
		out[i] = domain.Wallet{Address: domain.Address{
			Chain:      "ethereum",
			Address:    a,
			Name:       ptr("wallet " + a[:6]),
			DataSource: source,
		}}
	}
	return out
}

func walletRow(sourceID int64, addr, name string) coalesce.Fields {
	w := domain.Wallet{Address: domain.Address{
		Chain:        "ethereum",
		Address:      addr,
		Name:         ptr(name),
		DataSourceID: sourceID,
		ExtractedAt:  fixedNow,
	}}
	return w.Fields()
}

func TestDB_LazyConnect(t *testing.T) {
	env := newTestEnv(t, false)

	assert.False(t, env.db.IsConnected())
	assert.Equal(t, 0, env.opens)

	require.NoError(t, env.db.Bootstrap(context.Background()))
	require.NoError(t, env.db.Bootstrap(context.Background()))

	assert.True(t, env.db.IsConnected())
	assert.Equal(t, 1, env.opens, "bootstrap opens the connection once")
}

func TestDB_BootstrapFailure(t *testing.T) {
	db := New(Options{Opener: func(context.Context) (storage.Store, error) {
		return nil, errors.New("connection refused")
	}})

	err := db.Bootstrap(context.Background())
	require.Error(t, err)
	assert.False(t, db.IsConnected())
}

func TestDB_GetOrCreateSourceIDIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := env.db.GetOrCreateSourceID(ctx, "hand_collated")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])

	sources, err := env.db.DataSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "hand_collated", sources[0].Name)
	assert.Equal(t, fixedNow, sources[0].CreatedAt)
}

func TestDB_GetOrCreateSourceIDAcrossReconnect(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	first, err := env.db.GetOrCreateSourceID(ctx, "hardcoded")
	require.NoError(t, err)
	require.NoError(t, env.db.Close())

	again, err := env.db.GetOrCreateSourceID(ctx, "hardcoded")
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestDB_ReplaceIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stats, err := env.db.InsertWallets(ctx, wallets("src", addrA, addrB, addrC))
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Written)
		assert.False(t, stats.FellBack)
	}

	rows, err := env.db.LoadRows(ctx, domain.WalletSchema)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "reloading a source replaces its rows")
}

func TestDB_ReplaceSourceSkipsDeleteWhenEmpty(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	id, err := env.db.GetOrCreateSourceID(ctx, "empty")
	require.NoError(t, err)

	n, err := env.db.ReplaceSource(ctx, domain.WalletSchema, id)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, env.last.deletes)

	_, err = env.db.InsertWallets(ctx, wallets("empty", addrA))
	require.NoError(t, err)
	n, err = env.db.ReplaceSource(ctx, domain.WalletSchema, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, env.last.deletes)
}

func TestDB_BulkFallbackIdentical(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	id, err := env.db.GetOrCreateSourceID(ctx, "src")
	require.NoError(t, err)
	_, err = env.db.BulkInsert(ctx, domain.WalletSchema, []coalesce.Fields{walletRow(id, addrC, "Carol")})
	require.NoError(t, err)

	incoming := walletRow(id, addrC, "Carol")
	incoming[domain.ColExtractedAt] = fixedNow.Add(time.Hour) // volatile

	stats, err := env.db.BulkInsert(ctx, domain.WalletSchema, []coalesce.Fields{
		walletRow(id, addrA, "Alice"),
		walletRow(id, addrB, "Bob"),
		incoming,
		walletRow(id, addrD, "Dave"),
		walletRow(id, addrE, "Eve"),
	})
	require.NoError(t, err)

	assert.Equal(t, storage.InsertStats{Written: 4, Identical: 1, FellBack: true}, stats)
	assert.Zero(t, env.logs.FilterMessage("address collision, keeping stored row").Len())
}

func TestDB_BulkFallbackCollision(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	id, err := env.db.GetOrCreateSourceID(ctx, "src")
	require.NoError(t, err)
	_, err = env.db.BulkInsert(ctx, domain.WalletSchema, []coalesce.Fields{walletRow(id, addrC, "Carol")})
	require.NoError(t, err)

	stats, err := env.db.BulkInsert(ctx, domain.WalletSchema, []coalesce.Fields{
		walletRow(id, addrA, "Alice"),
		walletRow(id, addrB, "Bob"),
		walletRow(id, addrC, "Not Carol"),
		walletRow(id, addrD, "Dave"),
		walletRow(id, addrE, "Eve"),
	})
	require.NoError(t, err)
	assert.Equal(t, storage.InsertStats{Written: 4, Collisions: 1, FellBack: true}, stats)

	collisions := env.logs.FilterMessage("address collision, keeping stored row").All()
	require.Len(t, collisions, 1)
	assert.Equal(t, "name: Carol -> Not Carol", collisions[0].ContextMap()["mismatched"])

	rows, err := env.db.LoadRows(ctx, domain.WalletSchema)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Carol", rows[0].String(domain.ColName), "stored row is kept")
}

func TestDB_CollisionWarningsSuppressed(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	rows := []coalesce.Fields{walletRow(1, addrA, "Alice"), walletRow(1, addrA, "Alicia")}
	stats, err := env.db.InsertOneAtATime(ctx, domain.WalletSchema, rows)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 1, stats.Collisions)
	assert.Zero(t, env.logs.FilterMessage("address collision, keeping stored row").Len())
}

func TestDB_DuplicatesWithinOneImport(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	stats, err := env.db.InsertWallets(ctx, wallets("src", addrA, addrB, addrA))
	require.NoError(t, err)

	assert.True(t, stats.FellBack)
	assert.Equal(t, 2, stats.Written)
	assert.Equal(t, 1, stats.Identical)
}

func TestDB_InsertStampsRecords(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	earlier := fixedNow.Add(-24 * time.Hour)
	ws := wallets("src", addrA, addrB)
	ws[1].ExtractedAt = earlier

	_, err := env.db.InsertWallets(ctx, ws)
	require.NoError(t, err)

	rows, err := env.db.LoadRows(ctx, domain.WalletSchema)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := domain.WalletFromFields(rows[0])
	second := domain.WalletFromFields(rows[1])
	assert.Equal(t, fixedNow, first.ExtractedAt)
	assert.Equal(t, earlier, second.ExtractedAt, "existing extraction time is kept")
	assert.NotZero(t, first.DataSourceID)
	assert.Equal(t, "src", first.DataSource)
}

func TestDB_InsertRejectsMixedSources(t *testing.T) {
	env := newTestEnv(t, false)

	ws := append(wallets("one", addrA), wallets("two", addrB)...)
	_, err := env.db.InsertWallets(context.Background(), ws)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = env.db.InsertWallets(context.Background(), wallets("", addrA))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	stats, err := env.db.InsertWallets(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, stats)
}

func TestDB_DisconnectsOnStorageError(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.db.GetOrCreateSourceID(ctx, "src")
	require.NoError(t, err)
	require.True(t, env.db.IsConnected())

	boom := errors.New("server closed the connection")
	env.backend.FailNext(boom)

	_, err = env.db.LoadRows(ctx, domain.TokenSchema)
	require.ErrorIs(t, err, boom)
	assert.False(t, env.db.IsConnected())

	// next call reconnects lazily
	_, err = env.db.LoadRows(ctx, domain.TokenSchema)
	require.NoError(t, err)
	assert.True(t, env.db.IsConnected())
	assert.Equal(t, 2, env.opens)
}

func TestDB_DropAndRecreate(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.db.InsertWallets(ctx, wallets("src", addrA))
	require.NoError(t, err)

	require.NoError(t, env.db.DropAndRecreate(ctx))

	rows, err := env.db.LoadRows(ctx, domain.WalletSchema)
	require.NoError(t, err)
	assert.Empty(t, rows)

	sources, err := env.db.DataSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestDB_EndToEndMerge(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.db.InsertWallets(ctx, []domain.Wallet{{Address: domain.Address{
		Chain: "ethereum", Address: addrA, Name: ptr("Alice"), DataSource: "A",
	}}})
	require.NoError(t, err)
	_, err = env.db.InsertWallets(ctx, []domain.Wallet{{Address: domain.Address{
		Chain: "ethereum", Address: addrA, Name: ptr("Bob"), Category: ptr("cex"), DataSource: "B",
	}}})
	require.NoError(t, err)

	rows, err := env.db.LoadRows(ctx, domain.WalletSchema)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	merged := coalesce.Merge(rows, nil)
	require.Len(t, merged, 1)
	w := domain.WalletFromFields(merged[0])
	assert.Equal(t, "Alice", w.LabelOrUnknown())
	assert.Equal(t, "cex", w.CategoryOrUnknown())

	// Reversed priority lets B's name win.
	coalesce.Priority{"B", "A"}.SortRows(rows, func(f coalesce.Fields) string { return f.String(domain.ColDataSource) })
	w = domain.WalletFromFields(coalesce.Merge(rows, nil)[0])
	assert.Equal(t, "Bob", w.LabelOrUnknown())
	assert.Equal(t, "cex", w.CategoryOrUnknown())
}

func TestDB_ClearSource(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.db.InsertWallets(ctx, wallets("list", addrA, addrB))
	require.NoError(t, err)

	n, err := env.db.ClearSource(ctx, domain.WalletSchema, "list")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = env.db.ClearSource(ctx, domain.WalletSchema, "never-imported")
	require.NoError(t, err)
	assert.Zero(t, n)

	sources, err := env.db.DataSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "list", sources[0].Name)
}
