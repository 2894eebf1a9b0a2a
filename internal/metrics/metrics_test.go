package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementInvoicesIssued()
	m.IncrementInvoicesIssued()
	m.IncrementPayments("card", "completed")
	m.IncrementSyncRuns("hosting", nil)
	m.IncrementSyncRuns("hosting", errors.New("boom"))
	m.IncrementEmailsSent(nil)
	m.ObserveHTTP("/api/v1/customers", "GET", "200", 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InvoicesIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsRecorded.WithLabelValues("card", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("hosting", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("hosting", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsSent.WithLabelValues("success")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementInvoicesIssued()
		m.IncrementPayments("manual", "completed")
		m.IncrementSyncRuns("tld_price", nil)
		m.IncrementEmailsSent(nil)
		m.IncrementDomainsRegistered()
		m.ObserveHTTP("/", "GET", "200", time.Second)
	})
}
