package sendstream

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/avogabo/sendreplay/internal/mixedstring"
	"github.com/avogabo/sendreplay/internal/offsetreader"
)

// TLV type-ids recognized by the decoder. Anything else is skipped: its
// length is consumed, but no slot is filled.
const (
	tlvUUID       = 1
	tlvSize       = 4
	tlvMode       = 5
	tlvUid        = 6
	tlvGid        = 7
	tlvRdev       = 8
	tlvCtime      = 9
	tlvMtime      = 10
	tlvAtime      = 11
	tlvXattrName  = 13
	tlvXattrData  = 14
	tlvPath       = 15
	tlvPathTo     = 16
	tlvPathLink   = 17
	tlvClonePath  = 22
)

// tlvSlot holds a TLV value that may or may not have been present in the
// command body.
type tlvSlot[T any] struct {
	value   T
	present bool
}

// required returns the slot's value, or fails if it was never set.
func (s tlvSlot[T]) required(tlvName, cmdName string) (T, error) {
	if !s.present {
		var zero T
		return zero, invalidDataf("no tlv %s found in %s", tlvName, cmdName)
	}
	return s.value, nil
}

// withDefault returns the slot's value, or def if it was never set.
func (s tlvSlot[T]) withDefault(def T) T {
	if !s.present {
		return def
	}
	return s.value
}

// autoUint64 returns the slot's value, or math.MaxUint64 if unset — the
// sentinel for numeric fields that are semantically required but tolerated
// missing (Mode, Uid, Gid, Rdev).
func autoUint64(s tlvSlot[uint64]) uint64 {
	if !s.present {
		return math.MaxUint64
	}
	return s.value
}

// autoUUID returns the slot's value, or all-0xFF bytes if unset.
func autoUUID(s tlvSlot[[16]byte]) [16]byte {
	if s.present {
		return s.value
	}
	var max [16]byte
	for i := range max {
		max[i] = 0xFF
	}
	return max
}

// tlvBag is the typed attribute bag a single command frame's TLV payload
// decodes into.
type tlvBag struct {
	uuid      tlvSlot[[16]byte]
	size      tlvSlot[uint64]
	mode      tlvSlot[uint64]
	uid       tlvSlot[uint64]
	gid       tlvSlot[uint64]
	rdev      tlvSlot[uint64]
	ctime     tlvSlot[time.Time]
	mtime     tlvSlot[time.Time]
	atime     tlvSlot[time.Time]
	xattrName tlvSlot[mixedstring.MixedString]
	xattrData tlvSlot[mixedstring.MixedString]
	path      tlvSlot[mixedstring.MixedString]
	pathTo    tlvSlot[mixedstring.MixedString]
	pathLink  tlvSlot[mixedstring.MixedString]
	clonePath tlvSlot[mixedstring.MixedString]
}

// add decodes one TLV's payload and stores it in the matching slot. An
// unrecognized id is a no-op: the caller is responsible for discarding the
// length window regardless.
func (b *tlvBag) add(id uint16, r io.Reader) error {
	switch id {
	case tlvUUID:
		v, err := readUint128(r)
		if err != nil {
			return err
		}
		b.uuid = tlvSlot[[16]byte]{value: v, present: true}
	case tlvSize:
		v, err := readUint64(r)
		if err != nil {
			return err
		}
		b.size = tlvSlot[uint64]{value: v, present: true}
	case tlvMode:
		v, err := readUint64(r)
		if err != nil {
			return err
		}
		b.mode = tlvSlot[uint64]{value: v, present: true}
	case tlvUid:
		v, err := readUint64(r)
		if err != nil {
			return err
		}
		b.uid = tlvSlot[uint64]{value: v, present: true}
	case tlvGid:
		v, err := readUint64(r)
		if err != nil {
			return err
		}
		b.gid = tlvSlot[uint64]{value: v, present: true}
	case tlvRdev:
		v, err := readUint64(r)
		if err != nil {
			return err
		}
		b.rdev = tlvSlot[uint64]{value: v, present: true}
	case tlvCtime:
		v, err := readTimespec(r)
		if err != nil {
			return err
		}
		b.ctime = tlvSlot[time.Time]{value: v, present: true}
	case tlvMtime:
		v, err := readTimespec(r)
		if err != nil {
			return err
		}
		b.mtime = tlvSlot[time.Time]{value: v, present: true}
	case tlvAtime:
		v, err := readTimespec(r)
		if err != nil {
			return err
		}
		b.atime = tlvSlot[time.Time]{value: v, present: true}
	case tlvXattrName:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.xattrName = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	case tlvXattrData:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.xattrData = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	case tlvPath:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.path = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	case tlvPathTo:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.pathTo = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	case tlvPathLink:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.pathLink = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	case tlvClonePath:
		v, err := readMixed(r)
		if err != nil {
			return err
		}
		b.clonePath = tlvSlot[mixedstring.MixedString]{value: v, present: true}
	default:
		// Unknown type-id: the caller discards the length window.
	}
	return nil
}

// readTLVBag reads (type, length, payload) records from r until r is
// exhausted. A decode error on a single known-type TLV is logged and stops
// the bag's parse early — the command still executes with whatever TLVs
// were read successfully, which typically then fails at a required()
// getter and cascades up to the frame's caller.
func readTLVBag(r *offsetreader.Reader, sink Sink) tlvBag {
	var bag tlvBag
	for {
		typ, err := readUint16(r)
		if err != nil {
			return bag
		}
		length, err := readUint16(r)
		if err != nil {
			return bag
		}
		var want uint16
		switch typ {
		case tlvUUID:
			want = 16
		case tlvSize, tlvMode, tlvUid, tlvGid, tlvRdev:
			want = 8
		case tlvCtime, tlvMtime, tlvAtime:
			want = 12
		}
		if want != 0 && length != want {
			sink.Logf("offset %d: tlv type %d: %v", r.Offset(), typ, invalidDataf("payload length %d, want %d", length, want))
			return bag
		}
		sub := r.Take(int64(length))
		if err := bag.add(typ, sub); err != nil {
			sink.Logf("offset %d: tlv type %d: %v", r.Offset(), typ, err)
			_ = sub.Discard()
			return bag
		}
		if err := sub.Discard(); err != nil && !errors.Is(err, io.EOF) {
			sink.Logf("offset %d: tlv type %d: discarding trailer: %v", r.Offset(), typ, err)
			return bag
		}
	}
}
