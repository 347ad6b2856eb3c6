package store

import "testing"

func TestFreeListInsertKeepsSortedOrder(t *testing.T) {
	fl := newFreeList()
	fl.insert(newSlot(30, 20))
	fl.insert(newSlot(10, 10))
	fl.insert(newSlot(40, 20))
	fl.insert(newSlot(0, 5))

	want := []struct{ offset int64; size uint32 }{
		{0, 5}, {10, 10}, {30, 20}, {40, 20},
	}
	if len(fl.slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(fl.slots), len(want))
	}
	for i, w := range want {
		if fl.slots[i].offset != w.offset || fl.slots[i].size != w.size {
			t.Errorf("slot %d = (offset=%d size=%d), want (offset=%d size=%d)",
				i, fl.slots[i].offset, fl.slots[i].size, w.offset, w.size)
		}
	}
}

func TestFreeListBestFitPicksSmallestSufficientSlot(t *testing.T) {
	fl := newFreeList()
	fl.insert(newSlot(0, 10))
	fl.insert(newSlot(100, 50))
	fl.insert(newSlot(200, 20))

	got := fl.bestFit(15)
	if got == nil {
		t.Fatal("expected a fitting slot")
	}
	if got.size != 20 || got.offset != 200 {
		t.Errorf("bestFit(15) = (offset=%d size=%d), want (offset=200 size=20)", got.offset, got.size)
	}
	if len(fl.slots) != 2 {
		t.Errorf("best-fit slot must be removed from the free list, got %d slots left", len(fl.slots))
	}
}

func TestFreeListBestFitReturnsNilWhenNothingFits(t *testing.T) {
	fl := newFreeList()
	fl.insert(newSlot(0, 5))

	if got := fl.bestFit(100); got != nil {
		t.Errorf("bestFit should return nil when no slot is large enough, got %+v", got)
	}
}

func TestFreeListBestFitSkipsLockedCandidates(t *testing.T) {
	fl := newFreeList()
	locked := newSlot(0, 20)
	locked.lock()
	unlocked := newSlot(100, 20)
	fl.insert(locked)
	fl.insert(unlocked)

	got := fl.bestFit(20)
	if got != unlocked {
		t.Fatalf("bestFit must skip a locked candidate and return the unlocked one")
	}
	if len(fl.slots) != 1 || fl.slots[0] != locked {
		t.Errorf("locked slot must remain on the free list untouched")
	}
}

func TestFreeListClear(t *testing.T) {
	fl := newFreeList()
	fl.insert(newSlot(0, 10))
	fl.insert(newSlot(10, 10))

	fl.clear()
	if len(fl.slots) != 0 {
		t.Errorf("clear must empty the free list, got %d slots", len(fl.slots))
	}
}
