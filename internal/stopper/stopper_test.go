//go:build linux

package stopper

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// spawnPinnedThread starts a goroutine locked to its own OS thread and
// returns its TID once it's running, plus a channel the caller closes
// to let the goroutine exit. The goroutine exits still locked, so the
// Go runtime terminates its OS thread along with it.
func spawnPinnedThread(t *testing.T) (TID, chan struct{}) {
	t.Helper()
	ready := make(chan TID, 1)
	done := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		ready <- TID(unix.Gettid())
		<-done
	}()
	return <-ready, done
}

func TestWithThreadPausedCapturesContext(t *testing.T) {
	s := New()
	require.NoError(t, s.Install())

	tid, done := spawnPinnedThread(t)
	defer close(done)

	var gotPC uintptr
	err := s.WithThreadPaused(tid, func(ctx Context) {
		gotPC = ctx.PC
	})
	require.NoError(t, err)
	require.NotZero(t, gotPC)
}

func TestWithThreadPausedRejectsSelf(t *testing.T) {
	s := New()
	require.NoError(t, s.Install())

	err := s.WithThreadPaused(TID(unix.Gettid()), func(Context) {})
	require.ErrorIs(t, err, ErrAlreadyMe)
}

func TestWithThreadPausedRequiresInstall(t *testing.T) {
	s := New()
	tid, done := spawnPinnedThread(t)
	defer close(done)

	err := s.WithThreadPaused(tid, func(Context) {})
	require.ErrorIs(t, err, ErrHandlerNotInstalled)
}

func TestWithThreadPausedReportsDeadThread(t *testing.T) {
	s := New()
	require.NoError(t, s.Install())

	tid, done := spawnPinnedThread(t)
	close(done)
	time.Sleep(20 * time.Millisecond) // let the goroutine's thread actually exit

	err := s.WithThreadPaused(tid, func(Context) {})
	require.ErrorIs(t, err, ErrThreadGone)
}

// TestAtMostOneStopInFlight is the property-based check for spec.md §8
// property 4: concurrent WithThreadPaused calls against distinct
// threads never observe two threads parked in the handler at once.
func TestAtMostOneStopInFlight(t *testing.T) {
	s := New()
	require.NoError(t, s.Install())

	const n = 8
	tids := make([]TID, n)
	dones := make([]chan struct{}, n)
	for i := 0; i < n; i++ {
		tids[i], dones[i] = spawnPinnedThread(t)
	}
	defer func() {
		for _, d := range dones {
			close(d)
		}
	}()

	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(tid TID) {
			defer wg.Done()
			_ = s.WithThreadPaused(tid, func(Context) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					max := atomic.LoadInt32(&maxObserved)
					if cur <= max || atomic.CompareAndSwapInt32(&maxObserved, max, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			})
		}(tids[i])
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&maxObserved), int32(1))
}

func TestWatchdogFiresOnStuckThread(t *testing.T) {
	s := New().WithWatchdog(20 * time.Millisecond)
	require.NoError(t, s.Install())

	// No thread has this TID (it is above the kernel's PID limit), so
	// unix.Tgkill reports ESRCH and the call fails with ErrThreadGone
	// before the watchdog deadline is ever checked.
	err := s.WithThreadPaused(TID(1<<30), func(Context) {})
	require.Error(t, err)

	// A stuck thread must not poison the single shared slot: the next
	// call, against a real thread, must complete normally rather than
	// hitting the errStopSlotBusy panic.
	tid, done := spawnPinnedThread(t)
	defer close(done)

	var gotPC uintptr
	err = s.WithThreadPaused(tid, func(ctx Context) {
		gotPC = ctx.PC
	})
	require.NoError(t, err)
	require.NotZero(t, gotPC)
}
