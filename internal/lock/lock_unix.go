//go:build unix

package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// LockDirectory attempts to acquire an exclusive, non-blocking advisory lock
// on the given directory using a lock file named "LOCK" inside it.
//
// The store's own non-goal is cross-process file sharing of the data file;
// this lock is what enforces that: only one *store.Store, in this or any
// other process, may hold the directory at a time. If the lock cannot be
// acquired, the directory is assumed to be in use by another instance.
//
// The returned file handle must remain open for the duration of the lock.
func LockDirectory(path string) (*os.File, error) {
	lockFilePath := filepath.Join(path, "LOCK")

	f, err := os.OpenFile(lockFilePath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("directory already in use by another filecachestore instance")
	}

	return f, nil
}

// UnlockDirectory releases a directory lock acquired via LockDirectory.
func UnlockDirectory(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	f.Close()
}
