//go:build !linux

package sandbox

import "runtime/debug"

// limitMemory only sets a soft GC target where RLIMIT_AS is unavailable.
func limitMemory(n int64) error {
	if n > 0 {
		debug.SetMemoryLimit(n)
	}
	return nil
}
