// Package lock implements the build-tree advisory lock (spec.md
// §4.10): a single flock(2)-held file under meson-private/ that keeps
// two concurrent forge invocations from racing to regenerate the same
// build directory. Grounded on the teacher's direct golang.org/x/sys/unix
// syscalls for filesystem primitives the standard library does not
// expose (flock has no os package equivalent).
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Lock holds an open, flock'd file descriptor for the lifetime of one
// configure or build invocation.
type Lock struct {
	f *os.File
}

func lockPath(buildDir string) string {
	return filepath.Join(buildDir, "meson-private", "lock")
}

// Acquire takes an exclusive lock on the build directory. Each attempt is
// non-blocking; while another process holds the lock, Acquire retries
// every 100ms for up to two seconds, after which a second forge process
// targeting the same build directory gets a clear "already in use" error
// instead of silently corrupting state (spec.md §5).
func Acquire(buildDir string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(lockPath(buildDir)), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(lockPath(buildDir), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err != unix.EWOULDBLOCK || attempt == 20 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("build directory %s is locked by another forge process", buildDir)
		}
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying file descriptor.
// The lock file itself is left in place; flock ownership, not file
// existence, is what matters.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
