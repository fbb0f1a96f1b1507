// Package spool defines the raw sample record format produced by a
// sampling round and the append-only intermediate file ("spool") that
// carries those records from the orchestrator to the post-pass.
package spool

// StackFrame is a single (instruction pointer, stack pointer) pair
// captured by the stack walker. SP is retained so consumers can detect
// unwind termination; SentinelSP marks "top of unwind"/invalid.
type StackFrame struct {
	IP uint64
	SP uint64
}

// SentinelSP marks a StackFrame whose stack pointer is not meaningful,
// i.e. the top of an unwind or an invalid frame.
const SentinelSP = ^uint64(0)

// MaxThreadNameLen bounds Sample.ThreadName, matching the record layout
// in spec.md §6 ("name:utf8[<=256]").
const MaxThreadNameLen = 256

// Sample is one thread's backtrace captured during a single sampling
// round. An empty Frames slice is legal and means the thread could not
// be walked (it died, or the stop failed); it is still emitted.
type Sample struct {
	PID        uint32
	TID        uint64
	ThreadName string
	TimeSec    int64
	TimeNsec   uint32
	Frames     []StackFrame
	// Truncated reports whether the walker hit its depth limit before
	// reaching the end of the real stack.
	Truncated bool
}

// Clone returns a deep copy of s, safe to retain past the lifetime of
// any buffer s.Frames may have been backed by.
func (s Sample) Clone() Sample {
	out := s
	out.Frames = make([]StackFrame, len(s.Frames))
	copy(out.Frames, s.Frames)
	return out
}
