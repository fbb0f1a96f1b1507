// Package symbolize translates a runtime instruction pointer, captured
// by the stack walker, into one or more source-level frames. It layers a
// mapping lookup, a pluggable backend (native ELF/Mach-O, external
// subprocess, or a deterministic fake), and a single-flight memoizing
// cache on top, per spec.md §4.C.
package symbolize

import (
	"path/filepath"
	"sort"
)

// Mapping describes one loaded shared object's runtime address range and
// the file it was loaded from (spec.md §3, DynamicLibMapping).
type Mapping struct {
	Path  string
	Arch  string
	Slide uint64
	Start uint64
	End   uint64
}

// Basename returns the mapping's file basename, used as the
// SingleFrame.LibraryBasename value.
func (m *Mapping) Basename() string {
	if m == nil {
		return ""
	}
	return filepath.Base(m.Path)
}

// Contains reports whether ip falls within [Start, End).
func (m *Mapping) Contains(ip uint64) bool {
	return ip >= m.Start && ip < m.End
}

// FileVA translates a runtime address within m into the corresponding
// file-virtual address (spec.md §4.C step 2).
func (m *Mapping) FileVA(ip uint64) uint64 {
	return ip - m.Slide
}

// MappingTable is a snapshot of a process's loaded shared objects at one
// instant, sorted by Start, supporting binary-search lookup by IP. It is
// snapshotted once per sampling session (spec.md §3: "Mappings are
// snapshot-once per sampling run").
type MappingTable struct {
	mappings []Mapping
}

// NewMappingTable builds a MappingTable from an unsorted slice of
// mappings, as produced by reading the process's memory map.
func NewMappingTable(mappings []Mapping) *MappingTable {
	sorted := make([]Mapping, len(mappings))
	copy(sorted, mappings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &MappingTable{mappings: sorted}
}

// Lookup returns the mapping containing ip, if any, via binary search
// over the sorted mapping ranges (spec.md §4.C step 1).
func (t *MappingTable) Lookup(ip uint64) (*Mapping, bool) {
	ms := t.mappings
	i := sort.Search(len(ms), func(i int) bool { return ms[i].End > ip })
	if i < len(ms) && ms[i].Contains(ip) {
		return &ms[i], true
	}
	return nil, false
}

// Len returns the number of mappings in the table.
func (t *MappingTable) Len() int { return len(t.mappings) }
