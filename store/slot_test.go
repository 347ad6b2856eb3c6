package store

import (
	"testing"
	"time"
)

func TestSlotLess(t *testing.T) {
	small := newSlot(100, 10)
	bigger := newSlot(0, 20)
	sameSizeEarlier := newSlot(50, 10)
	sameSizeLater := newSlot(200, 10)

	if !small.less(bigger) {
		t.Error("a smaller slot must sort before a larger one regardless of offset")
	}
	if bigger.less(small) {
		t.Error("a larger slot must not sort before a smaller one")
	}
	if !sameSizeEarlier.less(small) {
		t.Error("same-size slots must break ties by ascending offset")
	}
	if small.less(sameSizeEarlier) {
		t.Error("same-size tie break must respect offset ordering in both directions")
	}
	if small.less(sameSizeLater) == false {
		t.Error("same-size slot at a later offset must sort after an earlier one")
	}
}

func TestSlotLockUnlockReaderCount(t *testing.T) {
	s := newSlot(0, 10)
	if s.isLocked() {
		t.Fatal("fresh slot must not be locked")
	}

	s.lock()
	s.lock()
	if !s.isLocked() {
		t.Fatal("slot with readers must report locked")
	}

	s.unlock()
	if !s.isLocked() {
		t.Fatal("slot still has one reader left, must still report locked")
	}

	s.unlock()
	if s.isLocked() {
		t.Fatal("slot with no readers left must report unlocked")
	}
}

func TestSlotWaitUnlockedReturnsOnceReadersDrain(t *testing.T) {
	s := newSlot(0, 10)
	s.lock()

	done := make(chan struct{})
	go func() {
		s.waitUnlocked()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitUnlocked returned while a reader was still registered")
	case <-time.After(20 * time.Millisecond):
	}

	s.unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitUnlocked did not return after the last reader unlocked")
	}
}

func TestSlotIsExpired(t *testing.T) {
	now := int64(1000)

	cases := []struct {
		name       string
		expiryTime int64
		want       bool
	}{
		{"never expires (zero)", 0, false},
		{"never expires (negative)", -1, false},
		{"in the future", 2000, false},
		{"exactly now", now, false},
		{"in the past", 500, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSlot(0, 10)
			s.expiryTime = tc.expiryTime
			if got := s.isExpired(now); got != tc.want {
				t.Errorf("isExpired(%d) with expiryTime=%d = %v, want %v", now, tc.expiryTime, got, tc.want)
			}
		})
	}
}
