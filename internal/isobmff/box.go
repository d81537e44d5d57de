// Package isobmff builds the minimal set of ISO/IEC 14496-12 boxes the
// to-fMP4 remuxer needs: an initialization segment (ftyp+moov) per codec
// set, and one fragment (moof+mdat) per track per remux call. It never
// parses boxes — that direction belongs to container/fmp4 — only writes
// them, so the two halves of the fMP4 round trip live in separate,
// independently testable packages.
package isobmff

import "encoding/binary"

// box returns a complete ISO box: a 4-byte big-endian size, the fourcc, and
// the concatenation of payload. Boxes are never large enough here (segment
// fragments, not whole files) to need the 64-bit largesize escape.
func box(fourcc string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	out := make([]byte, 8, size)
	binary.BigEndian.PutUint32(out[0:4], uint32(size))
	copy(out[4:8], fourcc)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// fullBoxHeader returns the 4-byte version+flags prefix shared by every
// "FullBox" (ISO/IEC 14496-12 §4.2): version in the high byte, flags in the
// low 24 bits.
func fullBoxHeader(version byte, flags uint32) []byte {
	var b [4]byte
	b[0] = version
	b[1] = byte(flags >> 16)
	b[2] = byte(flags >> 8)
	b[3] = byte(flags)
	return b[:]
}

func u16(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

func u24(v uint32) []byte {
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func i32(v int32) []byte {
	return u32(uint32(v))
}

func concat(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
