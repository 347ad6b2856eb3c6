package store

import (
	"container/list"
	"sync"
)

// indexEntry is the payload stored in the index's LRU list. ck is kept
// alongside the decoded key so evictIfOverCapacity can delete the right map
// entry without re-deriving the canonical key.
type indexEntry struct {
	ck   string
	key  any
	slot *Slot
}

// index is the key -> Slot map described by the component design. It is
// always kept in access order (most-recently-used at the front) so that
// bounded stores can evict the back element in O(1); unbounded stores pay
// the same bookkeeping cost but never act on it. Every method below assumes
// the caller already holds mu, mirroring the original implementation's
// single "entries" monitor guarding compound operations.
type index struct {
	mu    sync.Mutex
	byKey map[string]*list.Element
	order *list.List
}

func newIndex() *index {
	return &index{
		byKey: make(map[string]*list.Element),
		order: list.New(),
	}
}

// get returns the slot and original key for ck, promoting it to
// most-recently-used.
func (ix *index) get(ck string) (*Slot, any, bool) {
	el, ok := ix.byKey[ck]
	if !ok {
		return nil, nil, false
	}
	ix.order.MoveToFront(el)
	e := el.Value.(*indexEntry)
	return e.slot, e.key, true
}

// put installs slot under ck, returning the slot it replaced, if any.
func (ix *index) put(ck string, key any, slot *Slot) *Slot {
	if el, ok := ix.byKey[ck]; ok {
		e := el.Value.(*indexEntry)
		prev := e.slot
		e.slot = slot
		ix.order.MoveToFront(el)
		return prev
	}
	el := ix.order.PushFront(&indexEntry{ck: ck, key: key, slot: slot})
	ix.byKey[ck] = el
	return nil
}

// remove deletes ck and returns its slot, if present.
func (ix *index) remove(ck string) *Slot {
	el, ok := ix.byKey[ck]
	if !ok {
		return nil
	}
	ix.order.Remove(el)
	delete(ix.byKey, ck)
	return el.Value.(*indexEntry).slot
}

// evictIfOverCapacity pops the least-recently-used entry and returns its
// slot once the index holds more than maxEntries. maxEntries <= 0 disables
// eviction entirely.
func (ix *index) evictIfOverCapacity(maxEntries int) *Slot {
	if maxEntries <= 0 || ix.order.Len() <= maxEntries {
		return nil
	}
	back := ix.order.Back()
	if back == nil {
		return nil
	}
	e := back.Value.(*indexEntry)
	ix.order.Remove(back)
	delete(ix.byKey, e.ck)
	return e.slot
}

func (ix *index) len() int {
	return ix.order.Len()
}

// keys returns a snapshot of the decoded keys currently indexed.
func (ix *index) keys() []any {
	out := make([]any, 0, ix.order.Len())
	for el := ix.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*indexEntry).key)
	}
	return out
}

func (ix *index) clear() {
	ix.byKey = make(map[string]*list.Element)
	ix.order.Init()
}
