// Package recorder implements an in-process sampling profiler: it pauses
// OS threads one at a time via a directed real-time signal, walks each
// paused thread's call stack, symbolizes the resulting instruction
// pointers, and appends the result to a spool file a renderer can later
// turn into perf-script, pprof, or collapsed-stack output (spec.md §1).
//
// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.
package recorder

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ordo-one/swift-profile-recorder/internal/spool"
	"github.com/ordo-one/swift-profile-recorder/internal/stopper"
	"github.com/ordo-one/swift-profile-recorder/internal/unwind"
)

// Session is a single sampling run: it owns its own Stopper and spool
// writer, and is not safe for concurrent Run calls (mirrors
// profiler/profiler.go's single-activeProfiler contract, scoped down to
// one Session instance rather than one process-wide global).
//
// Symbolization (internal/symbolize) is deliberately not part of
// Session: spec.md §5 places the renderer's observation of samples
// strictly after a round completes ("the renderer observes samples in
// spool order"), so resolving instruction pointers to function names is
// the post-pass's job (internal/render, driven by cmd/sprserver or
// cmd/sprconvert), not the orchestrator's. Session only ever captures
// and spools raw (ip, sp) pairs.
type Session struct {
	cfg *config

	stop *stopper.Stopper
	met  *selfMetrics

	mu            sync.Mutex
	roundsDone    int
	fallingBehind int
}

// Stats summarizes what a Session has done so far.
type Stats struct {
	RoundsCompleted int
	// FallingBehind counts rounds whose absolute deadline had already
	// passed by the time the round started, i.e. the sampling loop
	// could not keep up with cfg.interval (spec.md §4.D).
	FallingBehind int
}

// New builds a Session from the given options. It does not start
// sampling; call Run for that. An error is returned if no spool path
// was configured.
func New(opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.spoolPath == "" {
		return nil, fmt.Errorf("recorder: WithSpoolPath is required")
	}

	return &Session{
		cfg:  cfg,
		stop: stopper.New().WithWatchdog(cfg.watchdog),
		met:  newSelfMetrics(),
	}, nil
}

// SelfMetrics reports this Session's own allocation rates since the
// last call (or since New, for the first call). Returns
// errCollectionTooFrequent if less than a second has passed since the
// previous call (or since New, for the first call);
// that's a caller error, not a Session failure, so it never affects
// Run.
func (s *Session) SelfMetrics() ([]byte, error) {
	return s.met.snapshot(time.Now())
}

// Run drives the sampling loop: it paces rounds against an absolute
// deadline (deadline += interval each round, never drifting against
// wall-clock skew from a slow round) rather than a fixed-interval
// ticker, per spec.md §4.D. It returns when cfg.rounds rounds have
// completed (if non-zero) or ctx is cancelled, whichever comes first.
func (s *Session) Run(ctx context.Context) error {
	if err := s.stop.Install(); err != nil {
		return fmt.Errorf("recorder: installing signal handler: %w", err)
	}

	w, err := spool.Create(s.cfg.spoolPath)
	if err != nil {
		return fmt.Errorf("recorder: creating spool: %w", err)
	}
	defer w.Close()

	result := unwind.NewResult(s.cfg.maxDepth)
	deadline := time.Now()
	pid := uint32(os.Getpid())

	for round := 0; s.cfg.rounds == 0 || round < s.cfg.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return w.Flush()
		}

		if time.Now().After(deadline) {
			s.mu.Lock()
			s.fallingBehind++
			s.mu.Unlock()
		} else {
			sleepUntil(ctx, deadline)
		}
		deadline = deadline.Add(s.cfg.interval)

		if err := s.sampleRound(pid, result, w); err != nil {
			s.cfg.logger.Warn("sample round failed: %v", err)
		}

		s.mu.Lock()
		s.roundsDone++
		s.mu.Unlock()
	}
	return w.Flush()
}

// sampleRound pauses every live thread (except the caller) in turn,
// walks each one's stack, and appends the resulting sample to w; a
// thread whose stop fails gets a sample with an empty stack.
func (s *Session) sampleRound(pid uint32, result *unwind.Result, w *spool.Writer) error {
	tids, err := stopper.ListThreads()
	if err != nil {
		return fmt.Errorf("listing threads: %w", err)
	}

	now := time.Now()
	for _, tid := range tids {
		pauseErr := s.stop.WithThreadPaused(tid, func(ctx stopper.Context) {
			unwind.Walk(ctx, result, s.cfg.maxDepth)
		})
		if pauseErr == stopper.ErrAlreadyMe {
			continue
		}

		sample := spool.Sample{
			PID:        pid,
			TID:        uint64(tid),
			ThreadName: threadName(tid),
			TimeSec:    now.Unix(),
			TimeNsec:   uint32(now.Nanosecond()),
		}
		if pauseErr != nil {
			// A failed stop is still recorded, as a sample with no frames.
			if pauseErr != stopper.ErrThreadGone {
				s.cfg.logger.Warn("pausing tid %d: %v", tid, pauseErr)
			}
		} else {
			sample.Truncated = result.Truncated
			sample.Frames = make([]spool.StackFrame, len(result.IPs))
			for i, ip := range result.IPs {
				sample.Frames[i] = spool.StackFrame{IP: ip, SP: result.SPs[i]}
			}
		}
		if err := w.Append(sample); err != nil {
			return fmt.Errorf("appending sample for tid %d: %w", tid, err)
		}
	}
	return nil
}

// Arch returns the architecture this Session's config carries for a
// later render pass's IP fixup (spec.md §4.E).
func (s *Session) Arch() string { return s.cfg.arch }

// SpoolPath returns the path samples are written to.
func (s *Session) SpoolPath() string { return s.cfg.spoolPath }

// Stats returns a snapshot of progress so far. Safe to call
// concurrently with Run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{RoundsCompleted: s.roundsDone, FallingBehind: s.fallingBehind}
}

func sleepUntil(ctx context.Context, t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// threadName reads the kernel-assigned thread name for tid, falling
// back to its numeric form if /proc/self/task/<tid>/comm is
// unavailable (e.g. the thread exited between listing and naming it).
func threadName(tid stopper.TID) string {
	b, err := os.ReadFile(fmt.Sprintf("/proc/self/task/%d/comm", tid))
	if err != nil {
		return fmt.Sprintf("tid-%d", tid)
	}
	name := string(b)
	if n := len(name); n > 0 && name[n-1] == '\n' {
		name = name[:n-1]
	}
	return name
}
