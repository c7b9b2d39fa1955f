package task

import "sync"

// pathLocks serializes writers on the same file within the process.
// Cross-process writers are last-writer-wins; readers tolerate that.
var pathLocks sync.Map

// lockPath acquires the advisory lock for a file path and returns the
// unlock function.
func lockPath(path string) func() {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
