package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("erp_sync_invoice").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("erp_sync_invoice").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("erp_sync_invoice", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("erp_sync_invoice", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("erp_sync_invoice")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddLedgerDrift(3)
}

func TestAddLedgerDrift(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddLedgerDrift(0)
	m.AddLedgerDrift(2)
	require.Equal(t, 2.0, testutil.ToFloat64(m.drift))
}

func TestObserveSyncOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSyncOutcome("invoice", "Synced")
	m.ObserveSyncOutcome("invoice", "Sync Failed")
	m.ObserveSyncOutcome("", "Synced")
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("invoice", "Synced")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("invoice", "Sync Failed")))

	var nilMetrics *Metrics
	nilMetrics.ObserveSyncOutcome("contract", "Synced")
}
