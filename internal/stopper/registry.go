package stopper

import (
	"os"
	"strconv"
)

// TID identifies an OS-level thread (Linux task ID / kernel TID), not a
// Go goroutine.
type TID int32

// ListThreads enumerates the live OS threads of the current process by
// reading /proc/self/task, the same source the Go runtime itself
// consults for GOMAXPROCS-independent thread accounting. No library in
// the example pack wraps this one directory listing more thinly than
// os.ReadDir does, so this stays on the standard library (see
// DESIGN.md).
func ListThreads() ([]TID, error) {
	entries, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return nil, err
	}
	tids := make([]TID, 0, len(entries))
	for _, e := range entries {
		n, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		tids = append(tids, TID(n))
	}
	return tids, nil
}
