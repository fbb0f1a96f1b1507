package stopper

// Context is the minimal machine state captured while a thread is
// paused inside the signal handler: enough for internal/unwind to walk
// the frame-pointer chain starting at the interrupted instruction
// (spec.md §4.A/§4.B).
type Context struct {
	PC uintptr
	SP uintptr
	FP uintptr
}
