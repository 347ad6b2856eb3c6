// Package store implements a single-file, append-allocate cache store: one
// data file per cache, a free list of reclaimed slots searched best-fit,
// and an in-memory index rebuilt from the file on Start. It is a Go
// rendering of Infinispan's FileCacheStore.
package store

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	humanize "github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/nilsbloom/filecachestore/internal/config"
	"github.com/nilsbloom/filecachestore/internal/lock"
	"github.com/nilsbloom/filecachestore/internal/record"
	"github.com/nilsbloom/filecachestore/internal/telemetry"
)

// magic identifies a file written by this store, distinguishing a fresh
// file from one whose first four bytes are actually the first record's
// header.
var magic = []byte("FCS1")

// Entry is what callers hand to Store: a key, a value, and an absolute
// expiry time in epoch milliseconds. ExpiryTime <= 0 means the entry never
// expires.
type Entry struct {
	Key        any
	Value      any
	ExpiryTime int64
}

// LoadedEntry is what LoadAll/LoadN return: a decoded key paired with its
// decoded value.
type LoadedEntry struct {
	Key   any
	Value any
}

// Store is a single data-file cache store. The zero value is not usable;
// construct one with New.
type Store struct {
	cfg            *config.Config
	marshaller     Marshaller
	keyEquivalence KeyEquivalence
	legacyImporter LegacyImporter
	log            *zap.Logger

	dir  string
	path string

	file     *os.File
	lockFile *os.File
	filePos  int64

	index    *index
	freeList *freeList

	started bool
}

// New constructs a Store without touching the filesystem. Call Start to
// open (and, on first run, create) the backing data file.
func New(opts ...Option) *Store {
	s := &settings{cfg: config.Default()}
	for _, opt := range opts {
		opt(s)
	}

	if s.marshaller == nil {
		s.marshaller = BytesMarshaller{}
	}

	log := s.cfg.Logger
	if log == nil {
		log = telemetry.L()
	}

	return &Store{
		cfg:            s.cfg,
		marshaller:     s.marshaller,
		keyEquivalence: s.keyEquivalence,
		legacyImporter: s.legacyImporter,
		log:            log,
		index:          newIndex(),
		freeList:       newFreeList(),
	}
}

// Open is New followed by Start, for the common case of not needing the two
// steps separated.
func Open(opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start acquires the directory lock, opens or creates the data file, and
// either rebuilds the index from an existing file or initializes a fresh
// one. It is not safe to call concurrently with itself or with any other
// method.
func (s *Store) Start() error {
	if s.started {
		return nil
	}

	dir := s.cfg.Location
	if dir == "" {
		dir = config.DefaultLocationName
	}
	s.dir = dir

	if err := os.MkdirAll(dir, 0755); err != nil {
		s.log.Error("create store directory failed", zap.String("dir", dir), zap.Error(err))
		return wrapErr("start", ErrDirectoryCannotBeCreated, err)
	}

	lf, err := lock.LockDirectory(dir)
	if err != nil {
		s.log.Error("lock store directory failed", zap.String("dir", dir), zap.Error(err))
		return wrapErr("start", ErrDirectoryCannotBeCreated, err)
	}
	s.lockFile = lf

	name := s.cfg.CacheName
	if name == "" {
		name = "store"
	}
	s.path = filepath.Join(dir, name+".dat")

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		lock.UnlockDirectory(s.lockFile)
		return wrapErr("start", ErrIO, err)
	}
	s.file = f
	s.filePos = int64(len(magic))

	// Store() and Clear() refuse to run unless started, but the
	// magic-check fallback calls Clear() and importLegacy calls Clear()
	// then Store(); mark started now so either can do its work.
	s.started = true

	// A legacy importer takes priority over whatever is already on disk:
	// importLegacy clears the store and replays the legacy entries into
	// it, making the legacy data authoritative, the same way
	// upgradeFileCacheStoreIfNeeded clears before replaying in the
	// original implementation. Only when there's no legacy data to
	// migrate does the existing file's own content matter.
	if s.legacyImporter != nil {
		if err := s.importLegacy(); err != nil {
			s.started = false
			s.file.Close()
			lock.UnlockDirectory(s.lockFile)
			return err
		}
	} else {
		existing := make([]byte, len(magic))
		n, _ := s.file.ReadAt(existing, 0)

		if n == len(magic) && bytes.Equal(existing, magic) {
			if err := s.rebuildIndex(); err != nil {
				s.started = false
				s.file.Close()
				lock.UnlockDirectory(s.lockFile)
				return err
			}
		} else {
			if err := s.Clear(); err != nil {
				s.started = false
				s.file.Close()
				lock.UnlockDirectory(s.lockFile)
				return err
			}
		}
	}

	s.log.Info("store started",
		zap.String("path", s.path),
		zap.Int("maxEntries", s.cfg.MaxEntries),
		zap.Int("entries", s.index.len()),
		zap.Int("freeSlots", s.freeList.len()),
	)
	return nil
}

// rebuildIndex walks the data file from just past the magic header,
// reconstructing the index and free list from whatever slots it finds.
// A header it can't decode ends recovery at that point; everything read
// up to then is trusted, matching the original implementation's
// tolerance for a torn tail write.
func (s *Store) rebuildIndex() error {
	s.index.mu.Lock()
	defer s.index.mu.Unlock()
	s.freeList.mu.Lock()
	defer s.freeList.mu.Unlock()

	pos := int64(len(magic))
	headerBuf := make([]byte, record.HeaderSize)

	for {
		n, err := s.file.ReadAt(headerBuf, pos)
		if n < record.HeaderSize || err != nil {
			break
		}

		h, err := record.DecodeHeader(headerBuf)
		if err != nil || h.Size < uint32(record.HeaderSize) {
			break
		}

		slot := newSlot(pos, h.Size)
		slot.keyLen = h.KeyLen
		slot.dataLen = h.DataLen
		slot.expiryTime = h.ExpiryTime

		if h.KeyLen == 0 {
			s.freeList.insert(slot)
		} else {
			keyBytes := make([]byte, h.KeyLen)
			if nn, err := s.file.ReadAt(keyBytes, pos+record.HeaderSize); err != nil || nn != int(h.KeyLen) {
				break
			}
			key, err := s.marshaller.ObjectFromByteBuffer(keyBytes)
			if err != nil {
				break
			}
			ck, err := s.canonicalKey(key, keyBytes)
			if err != nil {
				break
			}
			s.index.put(ck, key, slot)
		}

		pos += int64(h.Size)
	}

	s.filePos = pos
	return nil
}

// Stop closes the data file, releases the directory lock, and empties the
// in-memory index and free list. The Store may be Started again afterward,
// which rebuilds both from the file.
func (s *Store) Stop() error {
	if !s.started {
		return nil
	}

	var ioErr error
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			ioErr = err
		}
		s.file = nil
	}
	if s.lockFile != nil {
		lock.UnlockDirectory(s.lockFile)
		s.lockFile = nil
	}

	s.index.mu.Lock()
	s.index.clear()
	s.index.mu.Unlock()
	s.freeList.mu.Lock()
	s.freeList.clear()
	s.freeList.mu.Unlock()
	s.filePos = int64(len(magic))

	s.started = false
	s.log.Info("store stopped", zap.String("path", s.path))

	if ioErr != nil {
		return wrapErr("stop", ErrIO, ioErr)
	}
	return nil
}

// canonicalKey derives the string a key is indexed under, deferring to
// keyEquivalence when one is configured and falling back to the key's raw
// marshalled bytes otherwise.
func (s *Store) canonicalKey(key any, keyBytes []byte) (string, error) {
	if s.keyEquivalence != nil {
		ck, err := s.keyEquivalence.CanonicalKey(key)
		if err != nil {
			return "", wrapErr("canonicalKey", ErrSerialization, err)
		}
		return ck, nil
	}
	return string(keyBytes), nil
}

// allocate returns a slot able to hold need bytes, reusing a free slot via
// best fit when one is available and appending to the file otherwise. The
// returned slot's size may exceed need; the surplus is never split off.
func (s *Store) allocate(need uint32) *Slot {
	s.freeList.mu.Lock()
	defer s.freeList.mu.Unlock()

	if slot := s.freeList.bestFit(need); slot != nil {
		return slot
	}

	slot := newSlot(s.filePos, need)
	s.filePos += int64(need)
	return slot
}

// free marks slot's on-disk keyLen as zero and returns it to the free list.
// It takes no Index lock; callers that already hold one (Purge) simply nest
// this call inside it, which is the only lock order this store ever uses:
// Index before FreeList, never the reverse.
func (s *Store) free(slot *Slot) error {
	if slot == nil {
		return nil
	}

	if _, err := s.file.WriteAt(record.ZeroKeyLen[:], slot.offset+record.KeyLenOffset); err != nil {
		return wrapErr("free", ErrIO, err)
	}
	slot.keyLen = 0

	s.freeList.mu.Lock()
	s.freeList.insert(slot)
	s.freeList.mu.Unlock()
	return nil
}

// Store writes entry to the data file and installs it in the index,
// reusing a free slot when one fits. When the key is new and the index then
// holds more than MaxEntries, the least-recently-used entry is evicted.
func (s *Store) Store(entry Entry) error {
	if !s.started {
		return wrapErr("store", ErrIO, ErrClosed)
	}

	keyBytes, err := s.marshaller.ObjectToByteBuffer(entry.Key)
	if err != nil {
		return wrapErr("store", ErrSerialization, err)
	}
	dataBytes, err := s.marshaller.ObjectToByteBuffer(entry.Value)
	if err != nil {
		return wrapErr("store", ErrSerialization, err)
	}
	ck, err := s.canonicalKey(entry.Key, keyBytes)
	if err != nil {
		return err
	}

	need := record.HeaderSize + len(keyBytes) + len(dataBytes)
	if need > math.MaxUint32 {
		return wrapErr("store", ErrSerialization, fmt.Errorf("record of %d bytes exceeds uint32 slot size", need))
	}
	slot := s.allocate(uint32(need))
	slot.keyLen = uint32(len(keyBytes))
	slot.dataLen = uint32(len(dataBytes))
	slot.expiryTime = entry.ExpiryTime

	header := record.Header{Size: slot.size, KeyLen: slot.keyLen, DataLen: slot.dataLen, ExpiryTime: slot.expiryTime}
	buf := record.EncodeRecord(header, keyBytes, dataBytes)
	if _, err := s.file.WriteAt(buf, slot.offset); err != nil {
		return wrapErr("store", ErrIO, err)
	}

	s.index.mu.Lock()
	prev := s.index.put(ck, entry.Key, slot)
	var victim *Slot
	if prev == nil {
		victim = s.index.evictIfOverCapacity(s.cfg.MaxEntries)
	}
	s.index.mu.Unlock()

	toFree := prev
	if toFree == nil {
		toFree = victim
	}
	if toFree != nil {
		if err := s.free(toFree); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the value stored under key, or (nil, nil) if there is none
// or it has expired. An expired entry is removed and its slot freed as a
// side effect, same as the original implementation's load().
func (s *Store) Load(key any) (any, error) {
	if !s.started {
		return nil, wrapErr("load", ErrIO, ErrClosed)
	}

	ck, err := s.encodeKey(key)
	if err != nil {
		return nil, err
	}

	s.index.mu.Lock()
	slot, _, ok := s.index.get(ck)
	if !ok {
		s.index.mu.Unlock()
		return nil, nil
	}

	expired := slot.isExpired(nowMillis())
	if expired {
		s.index.remove(ck)
	} else {
		slot.lock()
	}
	// Capture the lengths while the slot is still indexed: once the lock is
	// released a concurrent Store may replace it and free() zeroes keyLen.
	keyLen, dataLen := slot.keyLen, slot.dataLen
	s.index.mu.Unlock()

	if expired {
		if err := s.free(slot); err != nil {
			return nil, err
		}
		return nil, nil
	}

	data := make([]byte, dataLen)
	_, readErr := s.file.ReadAt(data, slot.offset+int64(record.HeaderSize)+int64(keyLen))
	slot.unlock()
	if readErr != nil {
		return nil, wrapErr("load", ErrIO, readErr)
	}

	value, err := s.marshaller.ObjectFromByteBuffer(data)
	if err != nil {
		return nil, wrapErr("load", ErrSerialization, err)
	}
	return value, nil
}

// encodeKey marshals key and derives its canonical index string in one
// step, the pairing every read path needs.
func (s *Store) encodeKey(key any) (ck string, err error) {
	keyBytes, err := s.marshaller.ObjectToByteBuffer(key)
	if err != nil {
		return "", wrapErr("encodeKey", ErrSerialization, err)
	}
	return s.canonicalKey(key, keyBytes)
}

// ContainsKey reports whether key is indexed, without touching the data
// file or promoting it in LRU order.
func (s *Store) ContainsKey(key any) (bool, error) {
	ck, err := s.encodeKey(key)
	if err != nil {
		return false, err
	}
	s.index.mu.Lock()
	_, ok := s.index.byKey[ck]
	s.index.mu.Unlock()
	return ok, nil
}

// Remove deletes key from the index and frees its slot. It reports whether
// key was present.
func (s *Store) Remove(key any) (bool, error) {
	if !s.started {
		return false, wrapErr("remove", ErrIO, ErrClosed)
	}

	ck, err := s.encodeKey(key)
	if err != nil {
		return false, err
	}

	s.index.mu.Lock()
	slot := s.index.remove(ck)
	s.index.mu.Unlock()

	if slot == nil {
		return false, nil
	}
	if err := s.free(slot); err != nil {
		return false, err
	}
	return true, nil
}

// LoadAllKeys returns every indexed key except those present in exclude.
func (s *Store) LoadAllKeys(exclude []any) ([]any, error) {
	excludeSet := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		ck, err := s.encodeKey(k)
		if err != nil {
			return nil, err
		}
		excludeSet[ck] = struct{}{}
	}

	s.index.mu.Lock()
	all := s.index.keys()
	s.index.mu.Unlock()

	if len(excludeSet) == 0 {
		return all, nil
	}

	out := make([]any, 0, len(all))
	for _, k := range all {
		ck, err := s.encodeKey(k)
		if err != nil {
			return nil, err
		}
		if _, skip := excludeSet[ck]; !skip {
			out = append(out, k)
		}
	}
	return out, nil
}

// LoadN loads up to numEntries entries, skipping any that have expired
// since the key snapshot was taken.
func (s *Store) LoadN(numEntries int) ([]LoadedEntry, error) {
	keys, err := s.LoadAllKeys(nil)
	if err != nil {
		return nil, err
	}

	out := make([]LoadedEntry, 0, min(len(keys), numEntries))
	for _, k := range keys {
		if len(out) >= numEntries {
			break
		}
		v, err := s.Load(k)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		out = append(out, LoadedEntry{Key: k, Value: v})
	}
	return out, nil
}

// LoadAll is LoadN(math.MaxInt32), the original implementation's own
// definition of "load everything".
func (s *Store) LoadAll() ([]LoadedEntry, error) {
	return s.LoadN(math.MaxInt32)
}

// Purge removes every expired entry, freeing its slot. It holds the index
// lock for the whole scan, same as the original implementation's
// purgeInternal, so a concurrent Store can't observe a half-purged index.
func (s *Store) Purge() error {
	if !s.started {
		return wrapErr("purge", ErrIO, ErrClosed)
	}
	now := nowMillis()

	s.index.mu.Lock()
	defer s.index.mu.Unlock()

	for ck, el := range s.index.byKey {
		e := el.Value.(*indexEntry)
		if !e.slot.isExpired(now) {
			continue
		}
		s.index.order.Remove(el)
		delete(s.index.byKey, ck)
		if err := s.free(e.slot); err != nil {
			return wrapErr("purge", ErrIO, err)
		}
	}
	return nil
}

// Clear empties the store: every slot is waited on to drain its readers,
// the index and free list are reset, and the data file is truncated back
// to just the magic header.
func (s *Store) Clear() error {
	if !s.started {
		return wrapErr("clear", ErrIO, ErrClosed)
	}

	s.index.mu.Lock()
	defer s.index.mu.Unlock()
	s.freeList.mu.Lock()
	defer s.freeList.mu.Unlock()

	for _, el := range s.index.byKey {
		el.Value.(*indexEntry).slot.waitUnlocked()
	}
	for _, sl := range s.freeList.slots {
		sl.waitUnlocked()
	}

	s.index.clear()
	s.freeList.clear()

	if err := s.file.Truncate(0); err != nil {
		return wrapErr("clear", ErrIO, err)
	}
	if _, err := s.file.WriteAt(magic, 0); err != nil {
		return wrapErr("clear", ErrIO, err)
	}
	s.filePos = int64(len(magic))
	return nil
}

// Size reports the number of entries currently indexed.
func (s *Store) Size() int {
	s.index.mu.Lock()
	defer s.index.mu.Unlock()
	return s.index.len()
}

// Stats is a point-in-time snapshot of store occupancy, useful for
// diagnostics and the CLI's "stats" command.
type Stats struct {
	Entries   int
	FreeSlots int
	FileBytes int64
}

func (s *Store) Stats() Stats {
	s.index.mu.Lock()
	entries := s.index.len()
	s.index.mu.Unlock()

	st := Stats{
		Entries:   entries,
		FreeSlots: s.freeList.len(),
		FileBytes: s.filePos,
	}

	s.log.Debug("store stats",
		zap.Int("entries", st.Entries),
		zap.Int("freeSlots", st.FreeSlots),
		zap.String("fileSize", humanize.Bytes(uint64(st.FileBytes))),
	)
	return st
}

// FromStream and ToStream are not supported: the data file's layout is
// private to this package and isn't meant to be serialized wholesale, the
// same stance the original implementation takes for FileCacheStore.
func (s *Store) FromStream(_ []byte) error {
	return wrapErr("fromStream", ErrUnsupported, nil)
}

func (s *Store) ToStream() ([]byte, error) {
	return nil, wrapErr("toStream", ErrUnsupported, nil)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
