package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveStage("conversion", time.Second)
	m.ObserveOutcome("success")
	m.ObserveCleanupFailure()
	m.ObserveAudioDuration(time.Second)
	m.ObserveHTTP("/healthz", "GET", 200, time.Millisecond)
	m.ObserveUpload(10)
	m.WatchModelState([]string{"ready"}, func() string { return "ready" })
	m.TrackInFlight()()
}

func TestOutcomeAndCleanupCounters(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	m.ObserveOutcome("success")
	m.ObserveOutcome("success")
	m.ObserveOutcome("conversion")
	m.ObserveCleanupFailure()

	require.Equal(t, 2.0, testutil.ToFloat64(m.Transcriptions.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Transcriptions.WithLabelValues("conversion")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CleanupFailures))
}

func TestTrackInFlight(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())
	done := m.TrackInFlight()
	require.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
	done()
	require.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestWatchModelState(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	state := "loading"
	m.WatchModelState([]string{"uninitialized", "loading", "ready", "failed"}, func() string { return state })

	count, err := testutil.GatherAndCount(reg, "moji_model_state")
	require.NoError(t, err)
	require.Equal(t, 4, count)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "moji_model_state" {
			continue
		}
		for _, metric := range family.GetMetric() {
			values[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
		}
	}
	require.Equal(t, map[string]float64{"uninitialized": 0, "loading": 1, "ready": 0, "failed": 0}, values)
}
