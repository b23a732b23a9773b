package raknet

import (
	"reflect"
	"testing"
)

func TestCoalesceSequences(t *testing.T) {
	cases := []struct {
		name string
		in   []uint32
		want []ackRecord
	}{
		{"empty", nil, nil},
		{"single", []uint32{5}, []ackRecord{{start: 5}}},
		{"run", []uint32{0, 1, 2}, []ackRecord{{isRange: true, start: 0, end: 3}}},
		{"two-runs", []uint32{0, 1, 5, 6, 7}, []ackRecord{
			{isRange: true, start: 0, end: 2},
			{isRange: true, start: 5, end: 8},
		}},
		{"unsorted-with-dup", []uint32{3, 1, 2, 2}, []ackRecord{{isRange: true, start: 1, end: 4}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := coalesceSequences(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestAckRoundTrip(t *testing.T) {
	records := []ackRecord{
		{start: 4},
		{isRange: true, start: 10, end: 20},
	}
	buf := encodeAck(flagACK, records)
	if buf[0] != flagACK {
		t.Fatalf("expected leading flag byte preserved")
	}
	got, err := decodeAck(buf[1:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("got %+v want %+v", got, records)
	}
}

func TestExpandRecords(t *testing.T) {
	records := []ackRecord{{start: 0, isRange: true, end: 0}, {isRange: true, start: 5, end: 8}, {start: 20}}
	got := expandRecords(records)
	want := []uint32{5, 6, 7, 20}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestDecodeAckTruncated(t *testing.T) {
	_, err := decodeAck([]byte{0, 1, ackRecordRange, 0, 0})
	if err == nil {
		t.Fatal("expected malformed error for truncated range record")
	}
}
