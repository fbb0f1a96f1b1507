// Package stopper implements spec.md §4.A: enumerating the live OS
// threads of the current process and pausing/resuming one of them for
// the duration of a stack capture, using a directed real-time signal
// rather than ptrace or a debugger attach.
package stopper

import "errors"

// ErrThreadGone is returned when the target thread died before
// suspension could be confirmed. It is a per-thread failure, never fatal
// for the sampling round (spec.md §4.A/§7).
var ErrThreadGone = errors.New("stopper: thread gone")

// ErrStuckThread is returned when the watchdog fires before the target
// thread's signal handler reaches the context-captured state. Also a
// per-thread failure.
var ErrStuckThread = errors.New("stopper: stuck thread")

// ErrAlreadyMe is returned when the caller asks to pause its own TID.
var ErrAlreadyMe = errors.New("stopper: cannot pause the calling thread")

// ErrHandlerNotInstalled is returned by WithThreadPaused if Install was
// never called. Per spec.md §4.A/§7, this is fatal: the caller should
// treat it as a programming error, not a per-thread condition.
var ErrHandlerNotInstalled = errors.New("stopper: signal handler not installed")

// errStopSlotBusy is a core-invariant violation: the single-stop mutex
// guarantees this can never observe a slot that's already occupied. If
// it ever does, that's a bug in this package, not user-triggered data,
// so per spec.md §7 ("panics only on violated in-core invariants") it is
// used as a panic value rather than a returned error.
type errStopSlotBusy struct{}

func (errStopSlotBusy) Error() string { return "stopper: stop slot already occupied" }
