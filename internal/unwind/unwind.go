// Package unwind walks a paused thread's frame-pointer chain into a
// caller-owned buffer, producing the raw instruction-pointer list that
// internal/symbolize later resolves to function names (spec.md §4.B).
package unwind

import (
	"unsafe"

	"github.com/ordo-one/swift-profile-recorder/internal/stopper"
)

// DefaultMaxDepth bounds a single walk when the caller doesn't impose
// its own limit, matching spec.md §4.B's default truncation depth.
const DefaultMaxDepth = 1024

// Result is a caller-owned, reusable capture buffer. Walk never
// allocates: IPs and SPs are reused across calls and only ever grown,
// never shrunk, by Walk. SPs[i] is the stack pointer in effect at
// IPs[i], matching spec.md §3's (instruction_pointer, stack_pointer)
// pair so consumers can rely on SP rather than always seeing a
// placeholder.
type Result struct {
	IPs       []uint64
	SPs       []uint64
	Truncated bool
}

// NewResult returns a Result with its buffers preallocated to capacity.
func NewResult(capacity int) *Result {
	return &Result{
		IPs: make([]uint64, 0, capacity),
		SPs: make([]uint64, 0, capacity),
	}
}

// Walk follows the x86-64/arm64 frame-pointer chain starting at ctx,
// appending each return address to r.IPs (reset first) until either the
// chain terminates, maxDepth frames have been collected, or a frame
// pointer value looks implausible (not an increasing, word-aligned
// stack address), at which point the walk stops rather than risk
// reading unmapped memory.
//
// The frame-pointer convention assumed here -- *fp == saved caller fp,
// *(fp+wordSize) == caller's return address -- is the same one
// other_examples/DataExMachina-dev-side-eye-go__unwinder.go's walkStack
// uses; this function is a from-scratch reimplementation of that shape
// against this repo's stopper.Context, not copied code.
func Walk(ctx stopper.Context, r *Result, maxDepth int) {
	r.IPs = r.IPs[:0]
	r.SPs = r.SPs[:0]
	r.Truncated = false

	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	r.IPs = append(r.IPs, uint64(ctx.PC))
	r.SPs = append(r.SPs, uint64(ctx.SP))

	fp := ctx.FP
	for len(r.IPs) < maxDepth {
		if fp == 0 || fp%wordSize != 0 {
			return
		}
		retAddr, nextFP, ok := readFrame(fp)
		if !ok {
			return
		}
		if retAddr == 0 {
			return
		}
		r.IPs = append(r.IPs, retAddr)
		// The caller's stack pointer at the point it issued the call is
		// fp plus the two saved words (caller fp, return address) this
		// frame pushed on entry.
		r.SPs = append(r.SPs, uint64(fp+2*wordSize))
		if nextFP <= fp {
			// Frame pointers must strictly increase toward the stack
			// base; a non-increasing value means either the end of the
			// chain or corrupted data, either way nothing more to walk.
			return
		}
		fp = nextFP
	}
	r.Truncated = true
}

const wordSize = uintptr(8)

// readFrame reads the two words at fp and fp+wordSize -- the saved
// caller frame pointer and the return address -- directly out of this
// process's own address space. This is safe only because the thread
// owning fp is parked inside its signal handler for the duration of the
// call (stopper.WithThreadPaused's contract): its stack memory is
// otherwise ordinary process memory, readable like any other pointer.
// ok is false if the read would dereference an implausible address.
func readFrame(fp uintptr) (retAddr uint64, callerFP uintptr, ok bool) {
	if fp < minPlausibleStackAddr {
		return 0, 0, false
	}
	callerFPPtr := (*uintptr)(unsafe.Pointer(fp))         //nolint:gosec
	retAddrPtr := (*uint64)(unsafe.Pointer(fp + wordSize)) //nolint:gosec
	return *retAddrPtr, *callerFPPtr, true
}

// minPlausibleStackAddr filters out small, clearly-bogus frame pointer
// values (nil-ish or small integers misread as pointers) before
// dereferencing them; real stacks on every supported platform live well
// above this.
const minPlausibleStackAddr = uintptr(0x1000)
