// Package mixedstring represents filesystem paths that may contain
// arbitrary, non-UTF-8 byte sequences while still rendering recognizable
// UTF-8 regions as text.
package mixedstring

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// kind tags a single segment of a MixedString.
type kind int

const (
	kindText kind = iota
	kindRaw
	kindTruncated
)

type segment struct {
	kind kind
	text string // valid when kind == kindText
	raw  []byte // valid when kind == kindRaw
}

// MixedString is an ordered sequence of segments: valid-UTF-8 runs,
// raw-byte runs, and at most one trailing truncation marker. It round-trips
// every byte slice, including invalid or truncated UTF-8.
type MixedString struct {
	segments []segment
}

// FromBytes decodes b into a MixedString. It is a total function: every
// byte slice, valid or not, produces a result. On the longest valid prefix
// it emits a UTF-8 segment; at the first invalid sequence of length L it
// emits a raw-byte segment of exactly L bytes and continues; if the tail is
// a truncated (but not ill-formed-so-far) multibyte lead, it emits the
// remaining bytes as one raw segment followed by a truncation marker.
func FromBytes(b []byte) MixedString {
	var segs []segment
	pos, textStart := 0, 0

	flushText := func(end int) {
		if textStart < end {
			segs = append(segs, segment{kind: kindText, text: string(b[textStart:end])})
		}
	}

	for pos < len(b) {
		n, good, truncated := classifyUTF8(b[pos:])
		if truncated {
			flushText(pos)
			segs = append(segs, segment{kind: kindRaw, raw: append([]byte(nil), b[pos:]...)})
			segs = append(segs, segment{kind: kindTruncated})
			return MixedString{segments: segs}
		}
		if good {
			pos += n
			continue
		}
		flushText(pos)
		segs = append(segs, segment{kind: kindRaw, raw: append([]byte(nil), b[pos:pos+n]...)})
		pos += n
		textStart = pos
	}
	flushText(pos)
	return MixedString{segments: segs}
}

// FromString builds a MixedString from a valid Go string, as a single
// UTF-8 segment.
func FromString(s string) MixedString {
	if s == "" {
		return MixedString{}
	}
	return MixedString{segments: []segment{{kind: kindText, text: s}}}
}

// classifyUTF8 inspects the sequence starting at b[0] and reports:
//   - n, true, false  — a valid rune of n bytes.
//   - n, false, false — an ill-formed sequence of exactly n bytes.
//   - 0, false, true  — a multibyte lead with too few trailing bytes to
//     tell whether it would have been valid (truncated input).
func classifyUTF8(b []byte) (n int, good bool, truncated bool) {
	c := b[0]
	switch {
	case c < 0x80:
		return 1, true, false
	case c < 0xC2:
		// Bare continuation byte, or an overlong 2-byte lead (0xC0/0xC1).
		return 1, false, false
	case c < 0xE0:
		n = 2
	case c < 0xF0:
		n = 3
	case c < 0xF5:
		n = 4
	default:
		return 1, false, false
	}

	if len(b) < n {
		for i := 1; i < len(b); i++ {
			lo, hi := byte(0x80), byte(0xBF)
			if i == 1 { // narrower second-byte ranges: no overlongs, surrogates, or > U+10FFFF
				switch c {
				case 0xE0:
					lo = 0xA0
				case 0xED:
					hi = 0x9F
				case 0xF0:
					lo = 0x90
				case 0xF4:
					hi = 0x8F
				}
			}
			if b[i] < lo || b[i] > hi {
				return i, false, false
			}
		}
		return 0, false, true
	}

	r, size := utf8.DecodeRune(b[:n])
	if r == utf8.RuneError || size != n {
		return 1, false, false
	}
	return n, true, false
}

// ToBytes reassembles the original bytes, including a trailing truncated
// tail (kept as a raw segment); the truncation marker itself contributes
// nothing.
func (m MixedString) ToBytes() []byte {
	var out []byte
	for _, s := range m.segments {
		switch s.kind {
		case kindText:
			out = append(out, s.text...)
		case kindRaw:
			out = append(out, s.raw...)
		case kindTruncated:
		}
	}
	return out
}

// String renders m for display: UTF-8 segments render as themselves, raw
// bytes render as \u{hh} escapes, and a truncation marker renders as U+FFDD.
func (m MixedString) String() string {
	var b strings.Builder
	for _, s := range m.segments {
		switch s.kind {
		case kindText:
			b.WriteString(s.text)
		case kindRaw:
			for _, c := range s.raw {
				b.WriteString("\\u{")
				b.WriteString(hexByte(c))
				b.WriteByte('}')
			}
		case kindTruncated:
			b.WriteRune('￝')
		}
	}
	return b.String()
}

func hexByte(c byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[c>>4], digits[c&0xf]})
}

// Reverse returns a new MixedString with segment order reversed, and each
// segment reversed internally: UTF-8 segments reverse by grapheme cluster,
// raw segments reverse byte-wise, and the truncation marker is kept unchanged
// and moves with the segment-order reversal (a trailing marker ends up first).
func (m MixedString) Reverse() MixedString {
	out := make([]segment, len(m.segments))
	for i, s := range m.segments {
		j := len(m.segments) - 1 - i
		switch s.kind {
		case kindText:
			out[j] = segment{kind: kindText, text: reverseGraphemes(s.text)}
		case kindRaw:
			out[j] = segment{kind: kindRaw, raw: reverseBytes(s.raw)}
		case kindTruncated:
			out[j] = s
		}
	}
	return MixedString{segments: out}
}

func reverseGraphemes(s string) string {
	if s == "" {
		return ""
	}
	var clusters []string
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := len(clusters) - 1; i >= 0; i-- {
		b.WriteString(clusters[i])
	}
	return b.String()
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// key returns an injective string encoding of the segment sequence, used
// for content-based equality and as a map key. Each segment is tagged and
// length-prefixed so that two different segmentations can never collide.
func (m MixedString) key() string {
	var b strings.Builder
	for _, s := range m.segments {
		switch s.kind {
		case kindText:
			b.WriteByte('t')
			writeLen(&b, len(s.text))
			b.WriteString(s.text)
		case kindRaw:
			b.WriteByte('r')
			writeLen(&b, len(s.raw))
			b.Write(s.raw)
		case kindTruncated:
			b.WriteByte('x')
		}
	}
	return b.String()
}

func writeLen(b *strings.Builder, n int) {
	b.WriteString(strconv.Itoa(n))
	b.WriteByte(':')
}

// Key returns the content-based identity of m, suitable for use as a map
// key. Two MixedStrings with the same segment sequence always produce the
// same Key, and MixedStrings decoded from equal byte slices always have the
// same segment sequence.
func (m MixedString) Key() string { return m.key() }

// Equal reports whether m and other have the same segment sequence.
func (m MixedString) Equal(other MixedString) bool { return m.key() == other.key() }

// IsZero reports whether m is the empty MixedString (no segments).
func (m MixedString) IsZero() bool { return len(m.segments) == 0 }
