package raknet

import (
	"bytes"
	"testing"
)

func fragmentFrame(id uint16, index, size uint32, body []byte) Frame {
	return Frame{
		Reliability: ReliableOrdered, ReliableIndex: index, OrderIndex: 0, OrderChannel: 0,
		IsCompound: true, CompoundSize: size, CompoundID: id, CompoundIndex: index,
		Body: body,
	}
}

func TestCompoundCollectorAssemblesInOrder(t *testing.T) {
	c := NewCompoundCollector()
	var out []byte
	var ok bool
	var err error

	_, ok, err = c.Add(fragmentFrame(1, 0, 3, []byte("AAA")))
	assertNoErr(t, err)
	if ok {
		t.Fatal("should not be complete after 1 of 3 fragments")
	}
	_, ok, err = c.Add(fragmentFrame(1, 1, 3, []byte("BBB")))
	assertNoErr(t, err)
	if ok {
		t.Fatal("should not be complete after 2 of 3 fragments")
	}
	out, ok, err = c.Add(fragmentFrame(1, 2, 3, []byte("CCC")))
	assertNoErr(t, err)
	if !ok {
		t.Fatal("should be complete after 3 of 3 fragments")
	}
	if !bytes.Equal(out, []byte("AAABBBCCC")) {
		t.Errorf("got %q", out)
	}
	if c.Pending() != 0 {
		t.Errorf("expected no pending compounds after assembly, got %d", c.Pending())
	}
}

func TestCompoundCollectorReverseOrder(t *testing.T) {
	c := NewCompoundCollector()
	c.Add(fragmentFrame(2, 2, 3, []byte("ccc")))
	c.Add(fragmentFrame(2, 0, 3, []byte("aaa")))
	out, ok, err := c.Add(fragmentFrame(2, 1, 3, []byte("bbb")))
	assertNoErr(t, err)
	if !ok {
		t.Fatal("expected assembly complete")
	}
	if !bytes.Equal(out, []byte("aaabbbccc")) {
		t.Errorf("got %q", out)
	}
}

func TestCompoundCollectorRejectsIndexOutOfRange(t *testing.T) {
	c := NewCompoundCollector()
	_, _, err := c.Add(fragmentFrame(3, 5, 3, []byte("x")))
	if err == nil {
		t.Fatal("expected error for compound index >= size")
	}
	if c.Pending() != 0 {
		t.Error("rejected fragment must not create pending state")
	}
}

func TestCompoundCollectorSizeMismatch(t *testing.T) {
	c := NewCompoundCollector()
	c.Add(fragmentFrame(4, 0, 3, []byte("a")))
	_, _, err := c.Add(fragmentFrame(4, 1, 4, []byte("b")))
	if err == nil {
		t.Fatal("expected error for inconsistent compound size")
	}
}

func assertNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
