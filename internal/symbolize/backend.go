package symbolize

import "context"

// Backend resolves a file-virtual address within a mapping into one or
// more symbolized frames. Implementations are the "pluggable capability"
// spec.md §9 calls for: Native, External, and Fake.
type Backend interface {
	// Start prepares the backend for use (e.g. launching a subprocess).
	Start(ctx context.Context) error
	// Symbolize resolves fileVA within m. It must not mutate m.
	Symbolize(ctx context.Context, m *Mapping, fileVA uint64) (SymbolisedStackFrame, error)
	// Shutdown releases any resources held by the backend (pipes,
	// subprocesses, open file handles).
	Shutdown() error
}
