package sendstream

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/avogabo/sendreplay/internal/mixedstring"
)

// maxTimestampSeconds bounds the signed seconds value of a timestamp to a
// range comfortably wider than the default_dt sentinel (year 99999), while
// still rejecting the pathologically large values original send-streams
// never contain (e.g. a seconds field that reinterprets as a near-int64-max
// value, which no real calendar timestamp needs).
const maxTimestampSeconds = 8_000_000_000_000 // ~253,000 years

// readUint16 reads a little-endian uint16.
func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// readUint32 reads a little-endian uint32.
func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// readUint64 reads a little-endian uint64.
func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readUint128 reads a little-endian 128-bit value as raw bytes (the UUID
// TLV's payload), low byte first.
func readUint128(r io.Reader) ([16]byte, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return buf, err
	}
	return buf, nil
}

// readTimespec reads a u64 seconds (little-endian, interpreted as signed)
// followed by a u32 nanoseconds (little-endian), returning the UTC instant.
// It fails with InvalidDataError if the pair doesn't form a usable calendar
// timestamp, or if seconds is out of the representable range.
func readTimespec(r io.Reader) (time.Time, error) {
	secBits, err := readUint64(r)
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := readUint32(r)
	if err != nil {
		return time.Time{}, err
	}
	if nanos >= 1_000_000_000 {
		return time.Time{}, invalidDataf("invalid timestamp: %d seconds %d nanos", int64(secBits), nanos)
	}
	if secBits >= 1<<63 {
		// Top bit set: would reinterpret negative in two's complement, which
		// this format never uses for a valid calendar timestamp.
		return time.Time{}, invalidDataf("too many seconds: %d", secBits)
	}
	sec := int64(secBits)
	if sec > maxTimestampSeconds || sec < -maxTimestampSeconds {
		return time.Time{}, invalidDataf("invalid timestamp: %d seconds %d nanos", sec, nanos)
	}
	return time.Unix(sec, int64(nanos)).UTC(), nil
}

// readBytes reads r until EOF — the rest of whatever length-bounded window
// r represents (a TLV's declared length, or a command's declared size).
func readBytes(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// readMixed reads the rest of r and decodes it as a MixedString.
func readMixed(r io.Reader) (mixedstring.MixedString, error) {
	b, err := readBytes(r)
	if err != nil {
		return mixedstring.MixedString{}, err
	}
	return mixedstring.FromBytes(b), nil
}
