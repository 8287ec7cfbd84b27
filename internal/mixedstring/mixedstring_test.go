package mixedstring

import "testing"

func TestFromBytesRoundTrip(t *testing.T) {
	tests := map[string]struct {
		in []byte
	}{
		"empty":         {[]byte{}},
		"ascii":         {[]byte("hello.txt")},
		"utf8":          {[]byte("café/日本語")},
		"invalid-byte":  {[]byte{'a', 0xff, 'b'}},
		"overlong-lead": {[]byte{0xC0, 0xAF}},
		"bare-cont":     {[]byte{0x80, 'x'}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ms := FromBytes(tc.in)
			got := ms.ToBytes()
			want := tc.in
			if string(got) != string(want) {
				t.Fatalf("ToBytes() = %q, want %q", got, want)
			}
		})
	}
}

func TestFromBytesTruncatedTail(t *testing.T) {
	// The trailing truncated lead byte sequence is preserved by ToBytes as a
	// raw segment; only the synthetic truncation marker contributes nothing.
	in := []byte{'a', 0xE2, 0x82}
	ms := FromBytes(in)
	if got := ms.ToBytes(); string(got) != string(in) {
		t.Fatalf("ToBytes() = %q, want %q", got, in)
	}
	if s := ms.String(); s == "" {
		t.Fatalf("String() unexpectedly empty")
	}
}

func TestKeyAndEqual(t *testing.T) {
	a := FromBytes([]byte("a/b"))
	b := FromBytes([]byte("a/b"))
	c := FromBytes([]byte("a/c"))
	if !a.Equal(b) {
		t.Fatalf("expected equal MixedStrings to compare equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected different MixedStrings to compare unequal")
	}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal MixedStrings to share a Key")
	}
}

func TestKeyDistinguishesSegmentBoundaries(t *testing.T) {
	// "ab" as one segment is a different segment sequence than "a" and "b"
	// as two segments, even though both reassemble to the same bytes; the
	// length prefix in key() keeps these from colliding.
	whole := FromString("ab")
	split := MixedString{segments: []segment{
		{kind: kindText, text: "a"},
		{kind: kindText, text: "b"},
	}}
	if whole.Key() == split.Key() {
		t.Fatalf("expected distinct segmentations to produce distinct Keys")
	}
}

func TestReverseASCII(t *testing.T) {
	ms := FromString("abc")
	rev := ms.Reverse()
	if rev.String() != "cba" {
		t.Fatalf("Reverse().String() = %q, want %q", rev.String(), "cba")
	}
}

func TestReverseGraphemeCluster(t *testing.T) {
	// é as e + combining acute must reverse as one cluster, not swap the
	// base letter and the mark independently.
	s := "éx" // é (decomposed) followed by x
	ms := FromString(s)
	rev := ms.Reverse()
	want := "x" + "é"
	if rev.String() != want {
		t.Fatalf("Reverse().String() = %q, want %q", rev.String(), want)
	}
}

func TestReverseRawSegment(t *testing.T) {
	in := []byte{'a', 0xff, 0xfe, 'b'}
	ms := FromBytes(in)
	rev := ms.Reverse()
	got := rev.ToBytes()
	want := []byte{'b', 0xfe, 0xff, 'a'}
	if string(got) != string(want) {
		t.Fatalf("Reverse().ToBytes() = %v, want %v", got, want)
	}
}

func TestIsZero(t *testing.T) {
	if !(MixedString{}).IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	if FromString("x").IsZero() {
		t.Fatalf("non-empty MixedString should not report IsZero")
	}
}
