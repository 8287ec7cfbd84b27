package sendstream

import (
	"bytes"
	"testing"
)

func TestReadTimespecValid(t *testing.T) {
	r := bytes.NewReader(tsPayload(1700000000, 500_000_000))
	got, err := readTimespec(r)
	if err != nil {
		t.Fatalf("readTimespec: %v", err)
	}
	if got.Unix() != 1700000000 || got.Nanosecond() != 500_000_000 {
		t.Fatalf("got %v", got)
	}
}

func TestReadTimespecRejectsOutOfRangeNanos(t *testing.T) {
	r := bytes.NewReader(tsPayload(0, 1_000_000_000))
	_, err := readTimespec(r)
	if err == nil {
		t.Fatalf("expected an error for nanos == 1e9")
	}
}

func TestReadTimespecRejectsTopBitSeconds(t *testing.T) {
	buf := tsPayload(0, 0)
	buf[7] = 0x80 // sets the seconds field's sign bit
	_, err := readTimespec(bytes.NewReader(buf))
	if err == nil {
		t.Fatalf("expected an error for a seconds value with the sign bit set")
	}
}

func TestReadUint16EOF(t *testing.T) {
	_, err := readUint16(bytes.NewReader([]byte{1}))
	if err == nil {
		t.Fatalf("expected an error reading a truncated uint16")
	}
}

func TestReadMixedDecodesPayload(t *testing.T) {
	ms, err := readMixed(bytes.NewReader([]byte("a/b/c")))
	if err != nil {
		t.Fatalf("readMixed: %v", err)
	}
	if ms.String() != "a/b/c" {
		t.Fatalf("String() = %q, want %q", ms.String(), "a/b/c")
	}
}
