package symbolize

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMappingLookup(t *testing.T) {
	table := NewMappingTable([]Mapping{
		{Path: "/lib/libfoo.so", Slide: 0x1000, Start: 0x2000, End: 0x3000},
	})

	sym := NewSymbolizer(table, NewFakeBackend(), 0)
	require.NoError(t, sym.Start(context.Background()))
	defer sym.Shutdown()

	frame := sym.Symbolize(context.Background(), 0x2345)
	require.Len(t, frame, 1)
	require.Equal(t, uint64(0x1345), frame[0].Address)
	require.Equal(t, "libfoo.so", frame[0].LibraryBasename)

	frame = sym.Symbolize(context.Background(), 0x3000) // exactly at End: outside
	require.Len(t, frame, 1)
	require.Equal(t, "unknown @ 0x3000", frame[0].FunctionName)
	require.Nil(t, frame[0].Mapping)
}

func TestMappingLookupStartIsLegalZeroOffset(t *testing.T) {
	table := NewMappingTable([]Mapping{
		{Path: "/lib/libfoo.so", Slide: 0x1000, Start: 0x2000, End: 0x3000},
	})
	sym := NewSymbolizer(table, NewFakeBackend(), 0)
	frame := sym.Symbolize(context.Background(), 0x2000)
	require.Equal(t, uint64(0x1000), frame[0].Address)
}

// countingBackend counts how many times Symbolize is actually invoked,
// to verify single-flight behavior (spec.md §8 property 5).
type countingBackend struct {
	calls int64
}

func (b *countingBackend) Start(context.Context) error { return nil }

func (b *countingBackend) Symbolize(_ context.Context, m *Mapping, fileVA uint64) (SymbolisedStackFrame, error) {
	atomic.AddInt64(&b.calls, 1)
	return SymbolisedStackFrame{{Address: fileVA, FunctionName: "f", Mapping: m}}, nil
}

func (b *countingBackend) Shutdown() error { return nil }

func TestCacheSingleFlightAndDeterminism(t *testing.T) {
	table := NewMappingTable([]Mapping{
		{Path: "/lib/libfoo.so", Slide: 0, Start: 0, End: 0x10000},
	})
	backend := &countingBackend{}
	sym := NewSymbolizer(table, backend, 0)

	const n = 50
	var wg sync.WaitGroup
	results := make([]SymbolisedStackFrame, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sym.Symbolize(context.Background(), 0x1234)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt64(&backend.calls))
	for i := 1; i < n; i++ {
		require.Equal(t, results[0], results[i])
	}

	// A second, later lookup of the same key still doesn't re-invoke the
	// backend (cache hit).
	sym.Symbolize(context.Background(), 0x1234)
	require.EqualValues(t, 1, atomic.LoadInt64(&backend.calls))
}
