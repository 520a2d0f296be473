//go:build linux

package driver

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

var lockOnce sync.Once

// lockAudioThread pins the render callback to its OS thread and raises its
// scheduling priority as far as the process is allowed. Unprivileged
// processes may get less than asked; that is fine, the render loop still
// works at normal priority.
func lockAudioThread() {
	lockOnce.Do(func() {
		runtime.LockOSThread()
		unix.Setpriority(unix.PRIO_PROCESS, 0, -19)
	})
}
