package symbolize

import "context"

// FakeBackend is the mandatory deterministic backend for tests (spec.md
// §9: "The Fake variant is mandatory for deterministic testing"). It
// never touches a real binary: it reports a fixed function name and
// offset, and echoes back the translated file-virtual address.
type FakeBackend struct{}

// NewFakeBackend returns a ready-to-use FakeBackend.
func NewFakeBackend() *FakeBackend { return &FakeBackend{} }

func (*FakeBackend) Start(context.Context) error { return nil }

func (*FakeBackend) Symbolize(_ context.Context, m *Mapping, fileVA uint64) (SymbolisedStackFrame, error) {
	return SymbolisedStackFrame{{
		Address:         fileVA,
		FunctionName:    "fake",
		FunctionOffset:  5,
		LibraryBasename: m.Basename(),
		Mapping:         m,
	}}, nil
}

func (*FakeBackend) Shutdown() error { return nil }
