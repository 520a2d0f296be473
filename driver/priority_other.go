//go:build !linux

package driver

import (
	"runtime"
	"sync"
)

var lockOnce sync.Once

func lockAudioThread() {
	lockOnce.Do(runtime.LockOSThread)
}
