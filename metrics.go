// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package recorder

import (
	"encoding/json"
	"fmt"
	"math"
	"runtime"
	"time"
)

// point is one named metric observation, adapted from
// profiler/metrics.go's point type for this package's own ambient
// self-observability: how much garbage the sampling loop itself
// generates is relevant context for anyone reading a profile of an
// allocation-sensitive target.
type point struct {
	metric string
	value  float64
}

// MarshalJSON serializes a point as a [name, value] tuple, matching
// profiler/metrics.go's wire shape.
func (p point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.metric, p.value})
}

// errCollectionTooFrequent mirrors profiler/metrics.go's
// collectionTooFrequent: a metrics snapshot taken less than a second
// after the last one can't produce a meaningful per-second rate.
type errCollectionTooFrequent struct {
	min      time.Duration
	observed time.Duration
}

func (e errCollectionTooFrequent) Error() string {
	return fmt.Sprintf("recorder: metrics collection interval too small: min=%v observed=%v", e.min, e.observed)
}

type selfMetrics struct {
	collectedAt time.Time
	stats       runtime.MemStats
}

func newSelfMetrics() *selfMetrics {
	m := &selfMetrics{}
	m.reset(time.Now())
	return m
}

func (m *selfMetrics) reset(now time.Time) {
	m.collectedAt = now
	runtime.ReadMemStats(&m.stats)
}

// snapshot reports this process's own allocation behavior since the
// last snapshot (or since newSelfMetrics, for the first one), as a
// named list of per-second rates, serialized as a JSON array of
// [name, value] pairs (see point.MarshalJSON).
func (m *selfMetrics) snapshot(now time.Time) ([]byte, error) {
	period := now.Sub(m.collectedAt)
	if period < time.Second {
		return nil, errCollectionTooFrequent{min: time.Second, observed: period}
	}

	prev := m.stats
	m.reset(now)

	points := removeInvalid([]point{
		{metric: "recorder_go_alloc_bytes_per_sec", value: rate(m.stats.TotalAlloc, prev.TotalAlloc, period)},
		{metric: "recorder_go_allocs_per_sec", value: rate(m.stats.Mallocs, prev.Mallocs, period)},
		{metric: "recorder_go_frees_per_sec", value: rate(m.stats.Frees, prev.Frees, period)},
		{metric: "recorder_go_heap_growth_bytes_per_sec", value: rate(m.stats.HeapAlloc, prev.HeapAlloc, period)},
	})
	return json.Marshal(points)
}

func rate(curr, prev uint64, period time.Duration) float64 {
	return float64(int64(curr)-int64(prev)) / period.Seconds()
}

func removeInvalid(points []point) []point {
	var out []point
	for _, p := range points {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}
