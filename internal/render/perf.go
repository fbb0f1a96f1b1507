package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
)

// Perf renders samples as Linux `perf script` text, consumable by
// existing FlameGraph/Firefox Profiler/speedscope tooling (spec.md §6).
// It is stateless across samples: each ConsumeSample call produces a
// complete, self-contained chunk of output.
type Perf struct{}

// NewPerf returns a ready-to-use Perf renderer.
func NewPerf() *Perf { return &Perf{} }

func (*Perf) ConsumeSample(ctx context.Context, s spool.Sample, cfg Config, sym Symbolizer) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d/%d %s [001] cycles:\n", s.ThreadName, s.PID, s.TID, perfTimestamp(s.TimeSec, s.TimeNsec))

	for _, frame := range fixedUpFrames(ctx, s, cfg, sym) {
		for _, f := range frame {
			lib := f.LibraryBasename
			if lib == "" {
				lib = "unknown"
			}
			fmt.Fprintf(&buf, "\t%x %s+0x%x (%s)\n", f.Address, f.FunctionName, f.FunctionOffset, lib)
		}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Finalise is a no-op for the perf-script renderer: every sample already
// produced complete, independent output, so an empty input yields an
// empty buffer (spec.md §8 property 6).
func (*Perf) Finalise(SampleConfig, Config, Symbolizer) ([]byte, error) {
	return nil, nil
}

// perfTimestamp formats (sec, nsec) per spec.md §4.E: nanoseconds are
// zero-padded to 9 digits when seconds are non-zero; bare nanoseconds
// (seconds == 0) are emitted without padding.
func perfTimestamp(sec int64, nsec uint32) string {
	if sec == 0 {
		return fmt.Sprintf("0.%d", nsec)
	}
	return fmt.Sprintf("%d.%09d", sec, nsec)
}
