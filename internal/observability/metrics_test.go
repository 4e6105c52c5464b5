package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsWith_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg, "test")

	m.RowsWritten.WithLabelValues("wallets").Add(3)
	m.CacheLoads.WithLabelValues("tokens", "success").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues("wallets")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestRecordInsert(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.Collisions.WithLabelValues("tokens"))
	fallbacks := testutil.ToFloat64(DefaultMetrics.BulkFallbacks.WithLabelValues("tokens"))

	RecordInsert("tokens", 4, 1, 2, true)

	assert.Equal(t, before+2, testutil.ToFloat64(DefaultMetrics.Collisions.WithLabelValues("tokens")))
	assert.Equal(t, fallbacks+1, testutil.ToFloat64(DefaultMetrics.BulkFallbacks.WithLabelValues("tokens")))
}

func TestRecordCacheLoad(t *testing.T) {
	errsBefore := testutil.ToFloat64(DefaultMetrics.CacheLoads.WithLabelValues("wallets", "error"))

	RecordCacheLoad("wallets", 0, errors.New("boom"))
	RecordCacheLoad("wallets", 12, nil)

	assert.Equal(t, errsBefore+1, testutil.ToFloat64(DefaultMetrics.CacheLoads.WithLabelValues("wallets", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(DefaultMetrics.CacheEntries.WithLabelValues("wallets")))
}
