package sandbox

import (
	"fmt"
	"runtime/debug"
	"syscall"
)

// limitMemory caps the process address space; allocations beyond it abort
// the process instead of exhausting the host.
func limitMemory(n int64) error {
	if n <= 0 {
		return nil
	}
	lim := &syscall.Rlimit{Cur: uint64(n), Max: uint64(n)}
	if err := syscall.Setrlimit(syscall.RLIMIT_AS, lim); err != nil {
		return fmt.Errorf("setrlimit: %w", err)
	}
	debug.SetMemoryLimit(n / 2)
	return nil
}
