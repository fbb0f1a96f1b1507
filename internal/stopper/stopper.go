package stopper

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultWatchdog is how long WithThreadPaused waits for the target
// thread's signal handler to reach the context-captured state before
// giving up and reporting ErrStuckThread (spec.md §4.A).
const DefaultWatchdog = 250 * time.Millisecond

// stopSignal is the real-time signal directed at a target thread to
// interrupt it into spr_handler. SIGRTMIN is reserved by libc/glibc
// internals up to SIGRTMIN+2 on most distributions, so +3 is the
// lowest offset commonly left free for application use.
func stopSignal() int {
	return sigrtmin() + 3
}

// stopMu serializes every stop in the process, across all Stoppers: the
// signal handler's slot is a single process-wide static, so two Stoppers
// (for example, two concurrent Sessions) must not arm it at once.
var stopMu sync.Mutex

// Stopper pauses and resumes individual OS threads of the current
// process, one at a time. There is exactly one stop-in-flight slot,
// enforced by stopMu: a second WithThreadPaused call, from this or any
// other Stopper, blocks until the first completes (spec.md §4.A, §8
// property 4).
type Stopper struct {
	mu        sync.Mutex
	installed bool
	watchdog  time.Duration
}

// New returns a Stopper with the default watchdog. Install must be
// called once, from any thread, before the first WithThreadPaused call.
func New() *Stopper {
	return &Stopper{watchdog: DefaultWatchdog}
}

// WithWatchdog overrides the default watchdog duration.
func (s *Stopper) WithWatchdog(d time.Duration) *Stopper {
	s.watchdog = d
	return s
}

// Install registers the process-wide signal handler. It is idempotent
// and safe to call more than once; only the first call has any effect.
func (s *Stopper) Install() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installed {
		return nil
	}
	if err := installHandler(stopSignal()); err != nil {
		return err
	}
	s.installed = true
	return nil
}

// WithThreadPaused directs the stop signal at tid, waits for its
// handler to report a captured Context, invokes fn with that Context,
// then releases the thread. fn must not block: the target thread is
// parked inside its signal handler for the duration of the call, and a
// slow fn directly extends that pause (spec.md §4.A).
//
// Returns ErrAlreadyMe if tid is the calling thread, ErrHandlerNotInstalled
// if Install was never called, ErrThreadGone if tid no longer exists,
// and ErrStuckThread if the watchdog elapses before the handler reports
// back.
func (s *Stopper) WithThreadPaused(tid TID, fn func(Context)) error {
	if int32(tid) == int32(unix.Gettid()) {
		return ErrAlreadyMe
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.installed {
		return ErrHandlerNotInstalled
	}

	stopMu.Lock()
	defer stopMu.Unlock()
	if got := slotState(); got != slotIdle {
		panic(errStopSlotBusy{})
	}

	// Arm the slot before sending the signal, not after: slotIdle is
	// also the resting state left over from the previous call, so a
	// poll that can observe slotIdle before the kernel has actually
	// delivered the signal would be unable to tell "not delivered yet"
	// apart from "thread is gone". Arming first means any subsequent
	// idle read really would mean the signal was dropped, not merely
	// pending or masked on a busy thread.
	slotArm()

	if err := unix.Tgkill(unix.Getpid(), int(tid), unix.Signal(stopSignal())); err != nil {
		slotDisarm()
		if err == unix.ESRCH {
			return ErrThreadGone
		}
		return fmt.Errorf("stopper: tgkill %d: %w", tid, err)
	}

	deadline := time.Now().Add(s.watchdog)
	for {
		if slotState() == slotContextCaptured {
			ctx := slotContext()
			fn(ctx)
			slotRelease()
			s.waitIdle(deadline)
			return nil
		}
		if time.Now().After(deadline) {
			return s.abandon(tid)
		}
		time.Sleep(time.Microsecond * 50)
	}
}

// abandon runs once the watchdog deadline has passed without the
// handler reporting a captured context. It still holds stopMu, so no
// later WithThreadPaused call can start until it returns, and it does
// not return until the slot is provably back at slotIdle: either the
// pending real-time signal finally lands (captured and immediately
// released here, without calling fn -- the caller already has
// ErrStuckThread, the context is stale) or tid has exited and the
// kernel discarded the signal along with it. Returning while the slot
// is still armed would either poison it for the next tid (the busy
// panic at the top of this function) or leave tid parked forever
// inside spr_handler's release-wait loop (spec.md §8 property 10).
func (s *Stopper) abandon(tid TID) error {
	for {
		switch slotState() {
		case slotContextCaptured:
			slotRelease()
			s.waitIdle(time.Now().Add(s.watchdog))
			return ErrStuckThread
		case slotIdle:
			return ErrStuckThread
		}
		if err := unix.Tgkill(unix.Getpid(), int(tid), 0); err == unix.ESRCH {
			slotDisarm()
			return ErrStuckThread
		}
		time.Sleep(time.Microsecond * 50)
	}
}

// waitIdle waits for the handler to observe the release and return the
// slot to idle, best-effort: by this point fn has already run and the
// sample is complete, so a slow thread here doesn't delay the caller's
// result, only the next WithThreadPaused call (which re-checks state
// itself).
func (s *Stopper) waitIdle(deadline time.Time) {
	for slotState() != slotIdle {
		if time.Now().After(deadline.Add(s.watchdog)) {
			return
		}
		time.Sleep(time.Microsecond * 50)
	}
}
