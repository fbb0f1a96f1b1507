//go:build linux

package stopper

/*
#define _GNU_SOURCE
#include <signal.h>
#include <stdint.h>
#include <string.h>
#include <time.h>
#include <ucontext.h>

// slotState mirrors the Go-side stopState constants; kept duplicated
// here rather than shared because cgo can't see Go constants and this
// file must stay buildable with only libc.
enum {
	slotIdle            = 0,
	slotSignalled       = 1,
	slotContextCaptured = 2,
	slotReleasePosted   = 3,
};

// spr_slot is the single stop-in-flight slot. Exactly one is ever in
// use at a time (guarded on the Go side by stopMu), so it is safe as a
// single static struct rather than per-call allocation -- the signal
// handler below must not allocate.
typedef struct {
	volatile int state;
	unsigned long long pc;
	unsigned long long sp;
	unsigned long long fp;
} spr_slot;

static spr_slot g_spr_slot;

// spr_handler runs on the target thread, interrupted wherever it was.
// It is async-signal-safe: no allocation, no libc calls beyond the
// nanosleep park loop, and it only touches g_spr_slot.
static void spr_handler(int sig, siginfo_t *info, void *ucontext_ptr) {
	(void)sig;
	(void)info;
	ucontext_t *uc = (ucontext_t *)ucontext_ptr;

#if defined(__x86_64__)
	g_spr_slot.pc = (unsigned long long)uc->uc_mcontext.gregs[REG_RIP];
	g_spr_slot.sp = (unsigned long long)uc->uc_mcontext.gregs[REG_RSP];
	g_spr_slot.fp = (unsigned long long)uc->uc_mcontext.gregs[REG_RBP];
#elif defined(__aarch64__)
	g_spr_slot.pc = (unsigned long long)uc->uc_mcontext.pc;
	g_spr_slot.sp = (unsigned long long)uc->uc_mcontext.sp;
	g_spr_slot.fp = (unsigned long long)uc->uc_mcontext.regs[29];
#else
	g_spr_slot.pc = 0;
	g_spr_slot.sp = 0;
	g_spr_slot.fp = 0;
#endif

	g_spr_slot.state = slotContextCaptured;

	struct timespec ts = {0, 200 * 1000};
	while (g_spr_slot.state != slotReleasePosted) {
		nanosleep(&ts, NULL);
	}
	g_spr_slot.state = slotIdle;
}

static int spr_install(int sig) {
	struct sigaction sa;
	memset(&sa, 0, sizeof(sa));
	sa.sa_sigaction = spr_handler;
	sa.sa_flags = SA_SIGINFO | SA_RESTART;
	sigemptyset(&sa.sa_mask);
	return sigaction(sig, &sa, NULL);
}

static int spr_slot_state(void) { return g_spr_slot.state; }
static unsigned long long spr_slot_pc(void) { return g_spr_slot.pc; }
static unsigned long long spr_slot_sp(void) { return g_spr_slot.sp; }
static unsigned long long spr_slot_fp(void) { return g_spr_slot.fp; }
static void spr_slot_release(void) { g_spr_slot.state = slotReleasePosted; }

// spr_slot_arm marks the slot as awaiting signal delivery, called from
// Go immediately before tgkill so the first poll afterward can never
// mistake "signal not delivered yet" for "slot idle".
static void spr_slot_arm(void) { g_spr_slot.state = slotSignalled; }

// spr_slot_disarm resets an armed slot directly back to idle when
// tgkill itself never succeeded, so no signal will ever arrive to walk
// the handler's own release->idle transition.
static void spr_slot_disarm(void) { g_spr_slot.state = slotIdle; }

static int spr_sigrtmin(void) { return SIGRTMIN; }
*/
import "C"

// slot state values mirrored on the Go side for readability at call
// sites; the C constants are the ones that actually matter.
const (
	slotIdle            = int(C.slotIdle)
	slotSignalled       = int(C.slotSignalled)
	slotContextCaptured = int(C.slotContextCaptured)
	slotReleasePosted   = int(C.slotReleasePosted)
)

// installHandler registers spr_handler for sig, once per process.
func installHandler(sig int) error {
	if rc := C.spr_install(C.int(sig)); rc != 0 {
		return ErrHandlerNotInstalled
	}
	return nil
}

func sigrtmin() int { return int(C.spr_sigrtmin()) }

func slotState() int { return int(C.spr_slot_state()) }

func slotContext() Context {
	return Context{
		PC: uintptr(C.spr_slot_pc()),
		SP: uintptr(C.spr_slot_sp()),
		FP: uintptr(C.spr_slot_fp()),
	}
}

func slotRelease() { C.spr_slot_release() }

func slotArm() { C.spr_slot_arm() }

func slotDisarm() { C.spr_slot_disarm() }
