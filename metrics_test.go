package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelfMetricsRejectsTooFrequentCollection(t *testing.T) {
	m := newSelfMetrics()
	_, err := m.snapshot(m.collectedAt.Add(100 * time.Millisecond))
	require.Error(t, err)
}

func TestSelfMetricsReportsAfterOneSecond(t *testing.T) {
	m := newSelfMetrics()
	out, err := m.snapshot(m.collectedAt.Add(2 * time.Second))
	require.NoError(t, err)
	require.Contains(t, string(out), "recorder_go_alloc_bytes_per_sec")
}
