package symbolize

import (
	"context"
	"debug/elf"
	"debug/macho"
	"fmt"
	"sort"
	"sync"
)

// symbolEntry is one function symbol from a library's symbol table,
// sorted by Value so the enclosing symbol for an address can be found
// with a binary search.
type symbolEntry struct {
	Value uint64
	Size  uint64
	Name  string
}

// symbolTable is the parsed, address-sorted symbol table for one library
// file. It is built once per library and cached for the life of the
// process (spec.md §4.C: "parses ELF or Mach-O tables once per library
// (cached)").
type symbolTable struct {
	entries []symbolEntry
}

func (t *symbolTable) lookup(addr uint64) (symbolEntry, bool) {
	if len(t.entries) == 0 {
		return symbolEntry{}, false
	}
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].Value > addr })
	if i == 0 {
		return symbolEntry{}, false
	}
	e := t.entries[i-1]
	if e.Size != 0 && addr >= e.Value+e.Size {
		return symbolEntry{}, false
	}
	return e, true
}

func buildSymbolTable(path string) (*symbolTable, error) {
	if entries, err := elfSymbols(path); err == nil {
		return newSymbolTable(entries), nil
	}
	if entries, err := machoSymbols(path); err == nil {
		return newSymbolTable(entries), nil
	}
	return nil, fmt.Errorf("symbolize: %s: not a recognized ELF or Mach-O file", path)
}

func newSymbolTable(entries []symbolEntry) *symbolTable {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
	return &symbolTable{entries: entries}
}

func elfSymbols(path string) ([]symbolEntry, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		// Dynamic symbol tables are common for stripped shared objects;
		// fall back rather than treating the absence of a static
		// symbol table as fatal.
		syms, err = f.DynamicSymbols()
		if err != nil {
			return nil, err
		}
	}
	out := make([]symbolEntry, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 {
			continue
		}
		out = append(out, symbolEntry{Value: s.Value, Size: s.Size, Name: s.Name})
	}
	return out, nil
}

func machoSymbols(path string) ([]symbolEntry, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if f.Symtab == nil {
		return nil, fmt.Errorf("no symtab")
	}
	out := make([]symbolEntry, 0, len(f.Symtab.Syms))
	for _, s := range f.Symtab.Syms {
		if s.Value == 0 || s.Name == "" {
			continue
		}
		out = append(out, symbolEntry{Value: s.Value, Name: s.Name})
	}
	return out, nil
}

// NativeBackend resolves addresses by opening each library file directly
// and parsing its ELF or Mach-O symbol table (spec.md §4.C, "Native
// backend"). Inline-frame expansion via DWARF is left to an External
// backend driving a tool that understands it; see spec.md Open Questions.
type NativeBackend struct {
	mu     sync.Mutex
	tables map[string]*symbolTable
}

// NewNativeBackend returns a ready-to-use NativeBackend.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{tables: make(map[string]*symbolTable)}
}

func (*NativeBackend) Start(context.Context) error { return nil }

func (b *NativeBackend) Symbolize(_ context.Context, m *Mapping, fileVA uint64) (SymbolisedStackFrame, error) {
	t, err := b.tableFor(m.Path)
	if err != nil {
		return nil, err
	}
	sym, ok := t.lookup(fileVA)
	if !ok {
		return unknownUnsetFrame(fileVA, m), nil
	}
	return SymbolisedStackFrame{{
		Address:         fileVA,
		FunctionName:    sym.Name,
		FunctionOffset:  fileVA - sym.Value,
		LibraryBasename: m.Basename(),
		Mapping:         m,
	}}, nil
}

func (b *NativeBackend) tableFor(path string) (*symbolTable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tables[path]; ok {
		return t, nil
	}
	t, err := buildSymbolTable(path)
	if err != nil {
		return nil, err
	}
	b.tables[path] = t
	return t, nil
}

func (*NativeBackend) Shutdown() error { return nil }
