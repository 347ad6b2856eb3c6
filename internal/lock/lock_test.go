package lock_test

import (
	"testing"

	"github.com/nilsbloom/filecachestore/internal/lock"
)

func TestLockDirectory(t *testing.T) {
	t.Run("second lock on same directory fails while first is held", func(t *testing.T) {
		dir := t.TempDir()

		f1, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("first lock should succeed: %v", err)
		}
		defer lock.UnlockDirectory(f1)

		if _, err := lock.LockDirectory(dir); err == nil {
			t.Error("second lock on the same directory was expected to fail")
		}
	})

	t.Run("lock can be re-acquired after release", func(t *testing.T) {
		dir := t.TempDir()

		f1, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("first lock should succeed: %v", err)
		}
		lock.UnlockDirectory(f1)

		f2, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("lock should succeed once released: %v", err)
		}
		lock.UnlockDirectory(f2)
	})
}
