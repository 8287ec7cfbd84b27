package sendstream

import "encoding/binary"

// buildStream assembles a complete send-stream: the fixed magic+version
// header followed by the given pre-built command frames.
func buildStream(frames ...[]byte) []byte {
	out := append([]byte{}, magic[:]...)
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], 1)
	out = append(out, ver[:]...)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// frame builds one command frame: size/opcode/checksum header (checksum
// left at 0, since VerifyChecksum is off in these tests) followed by the
// concatenated TLV records.
func frame(opcode uint16, tlvs ...[]byte) []byte {
	var body []byte
	for _, t := range tlvs {
		body = append(body, t...)
	}
	var header [10]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint16(header[4:6], opcode)
	binary.LittleEndian.PutUint32(header[6:10], 0)
	return append(header[:], body...)
}

func tlvRecord(id uint16, payload []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:2], id)
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(payload)))
	return append(hdr[:], payload...)
}

func u64payload(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func u128payload(b [16]byte) []byte { return b[:] }

func tsPayload(sec int64, nanos uint32) []byte {
	var b [12]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(sec))
	binary.LittleEndian.PutUint32(b[8:12], nanos)
	return b[:]
}

func pathTLV(id uint16, s string) []byte { return tlvRecord(id, []byte(s)) }
