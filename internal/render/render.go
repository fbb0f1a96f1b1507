// Package render consumes raw samples and symbolized frames and emits
// one of the externally defined profile formats: perf script, pprof
// (gzip-compressed protobuf), or folded/collapsed stacks (spec.md §4.E).
package render

import (
	"context"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
	"github.com/ordo-one/swift-profile-recorder/internal/symbolize"
)

// Symbolizer is the subset of *symbolize.Symbolizer a Renderer needs.
// Renderers are driven single-threaded by the post-pass and are not
// required to be safe for concurrent use (spec.md §4.E).
type Symbolizer interface {
	Symbolize(ctx context.Context, ip uint64) symbolize.SymbolisedStackFrame
}

// Config carries the renderer-level settings spec.md §4.E calls for: the
// IP fixup policy (per-renderer, not per-sample) is driven by Arch.
type Config struct {
	// Arch selects the IP fixup amount subtracted from non-innermost
	// frames before symbolization (spec.md §4.E: "ARM: 4; unknown: 1").
	Arch string
}

// SampleConfig carries run-level metadata a renderer's Finalise may need
// (e.g. which process was sampled), independent of any single sample.
type SampleConfig struct {
	PID int
}

// Renderer is implemented by each output format. ConsumeSample is called
// once per recorded sample, in spool order; Finalise is called exactly
// once after the last sample, and must produce valid output even if no
// samples were ever consumed (spec.md §8 property 6).
type Renderer interface {
	ConsumeSample(ctx context.Context, s spool.Sample, cfg Config, sym Symbolizer) ([]byte, error)
	Finalise(sampleCfg SampleConfig, cfg Config, sym Symbolizer) ([]byte, error)
}

// fixupAmount returns the architecture-dependent value subtracted from a
// non-innermost frame's return address to move it onto the call
// instruction (spec.md §4.E).
func fixupAmount(arch string) uint64 {
	switch arch {
	case "arm", "arm64", "aarch64":
		return 4
	default:
		return 1
	}
}

// fixedUpFrames symbolizes every frame in s, applying the architecture's
// IP fixup to every frame except the innermost one.
func fixedUpFrames(ctx context.Context, s spool.Sample, cfg Config, sym Symbolizer) []symbolize.SymbolisedStackFrame {
	out := make([]symbolize.SymbolisedStackFrame, len(s.Frames))
	delta := fixupAmount(cfg.Arch)
	for i, f := range s.Frames {
		ip := f.IP
		if i > 0 && ip >= delta {
			ip -= delta
		}
		out[i] = sym.Symbolize(ctx, ip)
	}
	return out
}
