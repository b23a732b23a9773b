package raknet

import "testing"

func TestDedupWindowFirstSeenThenDuplicate(t *testing.T) {
	w := newDedupWindow()
	if w.Test(10) {
		t.Fatal("first occurrence must not be reported as already seen")
	}
	if !w.Test(10) {
		t.Fatal("second occurrence of same index must be reported as duplicate")
	}
}

func TestDedupWindowAdvancesAndForgetsOldSlots(t *testing.T) {
	w := newDedupWindow()
	w.Test(0)
	if w.Test(dedupWindowSize) { // wraps to the same slot as 0, but is a distinct, newer index
		t.Fatal("a newer index reusing a forgotten slot must not be reported as already seen")
	}
	if !w.Test(dedupWindowSize) {
		t.Fatal("re-test of the same newly advanced index should be duplicate")
	}
}

func TestDedupWindowRejectsFarBehind(t *testing.T) {
	w := newDedupWindow()
	w.Test(dedupWindowSize * 2)
	if !w.Test(0) {
		t.Fatal("an index far behind the current window must be treated as already seen")
	}
}
