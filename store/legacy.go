package store

import (
	"strings"

	"github.com/natefinch/atomic"
)

// LegacyEntry is one record yielded by a LegacyImporter.
type LegacyEntry struct {
	Key        any
	Value      any
	ExpiryTime int64
}

// LegacyImporter lets a caller migrate entries from an older on-disk format
// into a fresh Store during Start, mirroring
// upgradeFileCacheStoreIfNeeded in the original implementation. BackupRoot
// names the legacy store's root directory so Start can record that the
// upgrade happened before replaying; return "" if there's nothing to back
// up (e.g. a dry import from an in-memory source in tests).
type LegacyImporter interface {
	BackupRoot() string
	Entries() ([]LegacyEntry, error)
}

// importLegacy writes a "<root>.filecachestore-upgraded" marker file next to
// the legacy root (if any; the legacy data itself is not copied), clears
// whatever this store's own data file already holds, and replays every entry the
// importer yields through Store. Clearing first makes the legacy data
// authoritative over any pre-existing file content, the same order
// upgradeFileCacheStoreIfNeeded clears before replaying in the original
// implementation. It runs once, synchronously, near the start of Start,
// before the data file's own content is ever consulted.
func (s *Store) importLegacy() error {
	if s.legacyImporter == nil {
		return nil
	}

	if root := s.legacyImporter.BackupRoot(); root != "" {
		marker := root + ".filecachestore-upgraded"
		if err := atomic.WriteFile(marker, strings.NewReader(root)); err != nil {
			return wrapErr("start", ErrLegacyUpgrade, err)
		}
	}

	entries, err := s.legacyImporter.Entries()
	if err != nil {
		return wrapErr("start", ErrLegacyUpgrade, err)
	}

	if err := s.Clear(); err != nil {
		return err
	}

	for _, e := range entries {
		if err := s.Store(Entry{Key: e.Key, Value: e.Value, ExpiryTime: e.ExpiryTime}); err != nil {
			return wrapErr("start", ErrLegacyUpgrade, err)
		}
	}

	return nil
}
