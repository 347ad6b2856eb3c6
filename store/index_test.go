package store

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIndexPutGetRoundTrip(t *testing.T) {
	ix := newIndex()
	slot := newSlot(0, 10)

	if prev := ix.put("k1", "key-one", slot); prev != nil {
		t.Fatalf("first put for a key must report no previous slot, got %+v", prev)
	}

	got, key, ok := ix.get("k1")
	if !ok || got != slot || key != "key-one" {
		t.Fatalf("get(k1) = (%v, %v, %v), want (%v, key-one, true)", got, key, ok, slot)
	}
}

func TestIndexPutReplacesAndReturnsPrevious(t *testing.T) {
	ix := newIndex()
	first := newSlot(0, 10)
	second := newSlot(10, 10)

	ix.put("k1", "key-one", first)
	prev := ix.put("k1", "key-one", second)

	if prev != first {
		t.Fatalf("put replacing an existing key must return the previous slot")
	}
	got, _, _ := ix.get("k1")
	if got != second {
		t.Fatalf("get must return the new slot after replacement")
	}
	if ix.len() != 1 {
		t.Fatalf("replacing a key must not change the index size, got %d", ix.len())
	}
}

func TestIndexRemove(t *testing.T) {
	ix := newIndex()
	slot := newSlot(0, 10)
	ix.put("k1", "key-one", slot)

	if got := ix.remove("k1"); got != slot {
		t.Fatalf("remove must return the removed slot")
	}
	if _, _, ok := ix.get("k1"); ok {
		t.Fatal("key must be gone after remove")
	}
	if got := ix.remove("k1"); got != nil {
		t.Fatal("removing an already-absent key must return nil")
	}
}

func TestIndexEvictIfOverCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	ix := newIndex()
	a, b, c := newSlot(0, 10), newSlot(10, 10), newSlot(20, 10)
	ix.put("a", "a", a)
	ix.put("b", "b", b)
	ix.put("c", "c", c)

	// Touch "a" so it is no longer the least-recently-used entry.
	ix.get("a")

	victim := ix.evictIfOverCapacity(2)
	if victim != b {
		t.Fatalf("expected b (untouched, oldest) to be evicted, got %+v", victim)
	}
	if ix.len() != 2 {
		t.Fatalf("eviction must shrink the index, got len=%d", ix.len())
	}
	if _, _, ok := ix.get("b"); ok {
		t.Fatal("evicted key must no longer be gettable")
	}
}

func TestIndexEvictIfOverCapacityDisabledWhenUnbounded(t *testing.T) {
	ix := newIndex()
	ix.put("a", "a", newSlot(0, 10))
	ix.put("b", "b", newSlot(10, 10))

	if victim := ix.evictIfOverCapacity(0); victim != nil {
		t.Fatalf("maxEntries<=0 must disable eviction, got a victim")
	}
	if ix.len() != 2 {
		t.Fatalf("index must be untouched when eviction is disabled")
	}
}

func TestIndexKeysSnapshot(t *testing.T) {
	ix := newIndex()
	ix.put("a", "key-a", newSlot(0, 10))
	ix.put("b", "key-b", newSlot(10, 10))

	keys := ix.keys()
	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = k.(string)
	}
	sort.Strings(got)

	want := []string{"key-a", "key-b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("keys() snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexClear(t *testing.T) {
	ix := newIndex()
	ix.put("a", "key-a", newSlot(0, 10))
	ix.clear()

	if ix.len() != 0 {
		t.Fatalf("clear must empty the index, got len=%d", ix.len())
	}
	if _, _, ok := ix.get("a"); ok {
		t.Fatal("cleared index must not return stale entries")
	}
}
