package symbolize

import "fmt"

// UnknownFrameName formats the synthetic function name spec.md §4.C/§7
// specify for an address that could not be resolved: "unknown @ 0x<ip>".
// Within this repository it is called only by this package's own
// mapping-miss path; renderers receive such frames from the Symbolizer.
func UnknownFrameName(ip uint64) string {
	return fmt.Sprintf("unknown @ 0x%x", ip)
}

// SingleFrame is one source-level frame resolved for an instruction
// pointer. SymbolisedStackFrame has more than one SingleFrame only when
// the backend reports inlining at that address; the first entry is then
// the innermost inlinee and the last is the physical frame (spec.md §3).
type SingleFrame struct {
	Address        uint64
	FunctionName   string
	FunctionOffset uint64
	LibraryBasename string
	Mapping        *Mapping
	SourceFile     string
	SourceLine     int
}

// SymbolisedStackFrame is the ordered list of frames resolved for one
// instruction pointer; it always has at least one element.
type SymbolisedStackFrame []SingleFrame

// unknownFrame synthesizes the frame spec.md §4.C/§7 describes for a
// mapping miss: function name `"unknown @ 0x<ip>"`, no library.
func unknownFrame(ip uint64) SymbolisedStackFrame {
	return SymbolisedStackFrame{{
		Address:      ip,
		FunctionName: UnknownFrameName(ip),
	}}
}

// unknownUnsetFrame synthesizes the frame spec.md §4.C describes for a
// backend that resolved the mapping but returned no symbols.
func unknownUnsetFrame(ip uint64, m *Mapping) SymbolisedStackFrame {
	return SymbolisedStackFrame{{
		Address:         ip,
		FunctionName:    "<unknown-unset>",
		FunctionOffset:  0,
		LibraryBasename: m.Basename(),
		Mapping:         m,
	}}
}
