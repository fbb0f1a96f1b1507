package symbolize

import (
	"context"
	"strconv"

	"github.com/goburrow/cache"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/singleflight"
)

// Symbolizer is the full pipeline of spec.md §4.C: mapping lookup,
// address translation, backend dispatch, and a process-wide, single-
// flight memoizing cache keyed by (mapping path, file-virtual address).
//
// The cache is monotonic (spec.md §3): once a key is resolved, the value
// returned never changes for the process's lifetime.
type Symbolizer struct {
	mappings *MappingTable
	backend  Backend

	cache cache.Cache
	sfg   singleflight.Group
}

// NewSymbolizer builds a Symbolizer over the given mapping snapshot and
// backend. cacheSize bounds the number of memoized (library, address)
// resolutions retained; 0 selects a reasonable default.
func NewSymbolizer(mappings *MappingTable, backend Backend, cacheSize int) *Symbolizer {
	if cacheSize <= 0 {
		cacheSize = 64 * 1024
	}
	return &Symbolizer{
		mappings: mappings,
		backend:  backend,
		cache:    cache.New(cache.WithMaximumSize(cacheSize)),
	}
}

// Symbolize resolves ip to one or more source-level frames. A mapping
// miss produces the synthetic "unknown @ 0x<ip>" frame rather than an
// error (spec.md §4.C/§7); a backend failure or an empty backend result
// produces a "<unknown-unset>" frame for the mapping, and that frame is
// cached like any other result.
func (s *Symbolizer) Symbolize(ctx context.Context, ip uint64) SymbolisedStackFrame {
	m, ok := s.mappings.Lookup(ip)
	if !ok {
		return unknownFrame(ip)
	}
	fileVA := m.FileVA(ip)
	key := cacheKey(m.Path, fileVA)

	if v, ok := s.cache.GetIfPresent(key); ok {
		return v.(SymbolisedStackFrame)
	}

	// Single-flight: concurrent lookups of the same (library, fileVA)
	// observe one backend query (spec.md §4.C/§8 property 5).
	v, err, _ := s.sfg.Do(strconv.FormatUint(key, 36), func() (interface{}, error) {
		if cached, ok := s.cache.GetIfPresent(key); ok {
			return cached, nil
		}
		frame, err := s.backend.Symbolize(ctx, m, fileVA)
		if err != nil || len(frame) == 0 {
			frame = unknownUnsetFrame(fileVA, m)
		}
		s.cache.Put(key, frame)
		return frame, nil
	})
	if err != nil {
		return unknownUnsetFrame(fileVA, m)
	}
	return v.(SymbolisedStackFrame)
}

// cacheKey folds a library path and file-virtual address into a single
// uint64 via murmur3, avoiding a string-concatenation allocation on the
// hot lookup path (the same hashing library profiler/internal/fastdelta
// uses for sample identity, see DESIGN.md).
func cacheKey(path string, fileVA uint64) uint64 {
	h := murmur3.New64()
	h.Write([]byte(path))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(fileVA >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

// Start starts the underlying backend.
func (s *Symbolizer) Start(ctx context.Context) error { return s.backend.Start(ctx) }

// Shutdown releases the underlying backend's resources.
func (s *Symbolizer) Shutdown() error { return s.backend.Shutdown() }
