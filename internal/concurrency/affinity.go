// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker thread pinning.

package concurrency

import (
	"runtime"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// PinCurrentThread locks the calling goroutine to its OS thread and, where
// supported, binds that thread to cpu modulo NumCPUs. The thread stays locked
// until UnpinCurrentThread.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	if cpu < 0 {
		return nil
	}
	return platformPin(cpu % NumCPUs())
}

// UnpinCurrentThread releases the lock taken by PinCurrentThread.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
