package render

import (
	"context"
	"time"

	pprofile "github.com/google/pprof/profile"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
	"github.com/ordo-one/swift-profile-recorder/internal/symbolize"
)

// Pprof accumulates samples into a github.com/google/pprof/profile.Profile
// and serializes a single gzip-compressed protobuf on Finalise, following
// the interned string/function/location table bookkeeping of
// profiler/profile.go's goroutineDebug2ToPprof and
// profiler/internal/cmemprof/pprof.go's build() (see DESIGN.md).
type Pprof struct {
	prof *pprofile.Profile

	mappings  map[string]*pprofile.Mapping
	functions map[functionKey]*pprofile.Function
	locations map[uint64]*pprofile.Location

	lastTime time.Time
	haveLast bool
}

type functionKey struct {
	name, file string
}

// NewPprof returns a ready-to-use Pprof renderer.
func NewPprof() *Pprof {
	p := &pprofile.Profile{
		SampleType: []*pprofile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "time", Unit: "nanoseconds"},
		},
		PeriodType: &pprofile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:     1,
	}
	return &Pprof{
		prof:      p,
		mappings:  make(map[string]*pprofile.Mapping),
		functions: make(map[functionKey]*pprofile.Function),
		locations: make(map[uint64]*pprofile.Location),
	}
}

func (r *Pprof) ConsumeSample(ctx context.Context, s spool.Sample, cfg Config, sym Symbolizer) ([]byte, error) {
	ts := time.Unix(s.TimeSec, int64(s.TimeNsec))
	var deltaNanos int64
	if r.haveLast {
		deltaNanos = ts.Sub(r.lastTime).Nanoseconds()
	}
	r.lastTime = ts
	r.haveLast = true

	sample := &pprofile.Sample{
		Value: []int64{1, deltaNanos},
		Label: map[string][]string{
			"thread_name": {s.ThreadName},
		},
		NumLabel: map[string][]int64{
			"tid": {int64(s.TID)},
		},
	}

	for _, frame := range fixedUpFrames(ctx, s, cfg, sym) {
		// frame[0] is the innermost inlinee (spec.md §3); pprof wants
		// one Location per physical address, carrying all inline Lines
		// innermost-first, so we build it in that same order.
		loc := r.locationFor(frame)
		sample.Location = append(sample.Location, loc)
	}
	r.prof.Sample = append(r.prof.Sample, sample)
	return nil, nil
}

func (r *Pprof) locationFor(frame symbolize.SymbolisedStackFrame) *pprofile.Location {
	physical := frame[len(frame)-1]
	if loc, ok := r.locations[physical.Address]; ok {
		return loc
	}
	m := r.mappingFor(physical.Mapping)
	loc := &pprofile.Location{
		ID:      uint64(len(r.prof.Location)) + 1,
		Address: physical.Address,
		Mapping: m,
	}
	for _, f := range frame {
		fn := r.functionFor(f.FunctionName, f.SourceFile)
		loc.Line = append(loc.Line, pprofile.Line{Function: fn, Line: int64(f.SourceLine)})
	}
	r.locations[physical.Address] = loc
	r.prof.Location = append(r.prof.Location, loc)
	return loc
}

func (r *Pprof) functionFor(name, file string) *pprofile.Function {
	key := functionKey{name: name, file: file}
	if fn, ok := r.functions[key]; ok {
		return fn
	}
	fn := &pprofile.Function{
		ID:       uint64(len(r.prof.Function)) + 1,
		Name:     name,
		Filename: file,
	}
	r.functions[key] = fn
	r.prof.Function = append(r.prof.Function, fn)
	return fn
}

func (r *Pprof) mappingFor(m *symbolize.Mapping) *pprofile.Mapping {
	if m == nil {
		return nil
	}
	if pm, ok := r.mappings[m.Path]; ok {
		return pm
	}
	pm := &pprofile.Mapping{
		ID:           uint64(len(r.prof.Mapping)) + 1,
		File:         m.Path,
		Start:        m.Start,
		Limit:        m.End,
		Offset:       m.Slide,
		HasFunctions: true,
	}
	r.mappings[m.Path] = pm
	r.prof.Mapping = append(r.prof.Mapping, pm)
	return pm
}

// Finalise serializes the accumulated profile as a gzip-compressed
// protobuf. Even an input that consumed zero samples produces a valid,
// non-empty compressed profile (spec.md §8 property 6).
func (r *Pprof) Finalise(sampleCfg SampleConfig, cfg Config, sym Symbolizer) ([]byte, error) {
	r.prof.TimeNanos = time.Now().UnixNano()
	if err := r.prof.CheckValid(); err != nil {
		return nil, err
	}
	w := &byteSliceWriter{}
	if err := r.prof.Write(w); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// byteSliceWriter adapts profile.Write's io.Writer requirement to a
// plain byte slice; profile.Write already gzips its output internally.
type byteSliceWriter struct{ buf []byte }

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
