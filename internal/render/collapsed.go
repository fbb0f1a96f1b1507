package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
)

// Collapsed renders samples as one folded-stack line per sample, the
// format FlameGraph's stackcollapse tooling consumes (spec.md §4.E).
type Collapsed struct{}

// NewCollapsed returns a ready-to-use Collapsed renderer.
func NewCollapsed() *Collapsed { return &Collapsed{} }

func (*Collapsed) ConsumeSample(ctx context.Context, s spool.Sample, cfg Config, sym Symbolizer) ([]byte, error) {
	frames := fixedUpFrames(ctx, s, cfg, sym)

	var buf bytes.Buffer
	// Frames are joined outermost -> innermost; Sample.Frames is
	// innermost-first (spec.md §3), so we walk it in reverse. Within one
	// physical frame's inline expansion, the physical (outer) frame is
	// last in the SymbolisedStackFrame (spec.md §3), so that sub-slice
	// is walked in reverse too.
	first := true
	for i := len(frames) - 1; i >= 0; i-- {
		for j := len(frames[i]) - 1; j >= 0; j-- {
			if !first {
				buf.WriteByte(';')
			}
			first = false
			buf.WriteString(frames[i][j].FunctionName)
		}
	}
	buf.WriteByte(' ')
	buf.WriteString(collapsedTime(s.TimeSec, s.TimeNsec))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (*Collapsed) Finalise(SampleConfig, Config, Symbolizer) ([]byte, error) {
	return nil, nil
}

// collapsedTime formats (sec, nsec) per spec.md §4.E/§8 property 2:
// sec==0 emits just the nanoseconds; sec>0 emits the literal
// concatenation of sec and a 9-digit zero-padded nsec, i.e.
// sec*1_000_000_000 + nsec as a single integer.
func collapsedTime(sec int64, nsec uint32) string {
	if sec == 0 {
		return fmt.Sprintf("%d", nsec)
	}
	return fmt.Sprintf("%d%09d", sec, nsec)
}
