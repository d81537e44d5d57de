package mpegts

// buildPAT constructs a complete PAT section (table_id through CRC32) for
// the given transport_stream_id and program entries.
func buildPAT(tsID uint16, programs []struct{ num, pid uint16 }) []byte {
	n := len(programs)
	length := 9 + 4*n // section_length: bytes from transport_stream_id through CRC32

	buf := make([]byte, 3+length)
	buf[0] = tableIDPAT
	buf[1] = 0x80 | 0x30 | byte((length>>8)&0x0F)
	buf[2] = byte(length)
	buf[3] = byte(tsID >> 8)
	buf[4] = byte(tsID)
	buf[5] = 0xC1 // reserved + version 0 + current_next_indicator = 1
	buf[6] = 0
	buf[7] = 0

	offset := 8
	for _, p := range programs {
		buf[offset] = byte(p.num >> 8)
		buf[offset+1] = byte(p.num)
		buf[offset+2] = 0xE0 | byte(p.pid>>8&0x1F)
		buf[offset+3] = byte(p.pid)
		offset += 4
	}

	crc := crc32MPEG2(buf[:offset])
	buf[offset] = byte(crc >> 24)
	buf[offset+1] = byte(crc >> 16)
	buf[offset+2] = byte(crc >> 8)
	buf[offset+3] = byte(crc)
	return buf
}

// buildPMT constructs a complete PMT section (no program descriptors, no
// per-stream descriptors) for the given program and elementary streams.
func buildPMT(programNum uint16, pcrPID uint16, streams []struct {
	streamType uint8
	pid        uint16
}) []byte {
	m := len(streams)
	length := 9 + 5*m + 4

	buf := make([]byte, 3+length)
	buf[0] = tableIDPMT
	buf[1] = 0x80 | 0x30 | byte((length>>8)&0x0F)
	buf[2] = byte(length)
	buf[3] = byte(programNum >> 8)
	buf[4] = byte(programNum)
	buf[5] = 0xC1
	buf[6] = 0
	buf[7] = 0
	buf[8] = 0xE0 | byte(pcrPID>>8&0x1F)
	buf[9] = byte(pcrPID)
	buf[10] = 0xF0 // reserved + program_info_length(12) = 0
	buf[11] = 0x00

	offset := 12
	for _, s := range streams {
		buf[offset] = s.streamType
		buf[offset+1] = 0xE0 | byte(s.pid>>8&0x1F)
		buf[offset+2] = byte(s.pid)
		buf[offset+3] = 0xF0 // reserved + ES_info_length(12) = 0
		buf[offset+4] = 0x00
		offset += 5
	}

	crc := crc32MPEG2(buf[:offset])
	buf[offset] = byte(crc >> 24)
	buf[offset+1] = byte(crc >> 16)
	buf[offset+2] = byte(crc >> 8)
	buf[offset+3] = byte(crc)
	return buf
}

// buildPESPacket constructs a complete PES packet (start code through
// payload) with an optional PTS and/or DTS.
func buildPESPacket(streamID byte, pts, dts int64, hasPTS, hasDTS bool, data []byte) []byte {
	var optional []byte
	var ptsDTSIndicator byte
	switch {
	case hasPTS && hasDTS:
		ptsDTSIndicator = 0x03
		optional = append(optional, writePTSOrDTS(0x3, pts)...)
		optional = append(optional, writePTSOrDTS(0x1, dts)...)
	case hasPTS:
		ptsDTSIndicator = 0x02
		optional = append(optional, writePTSOrDTS(0x2, pts)...)
	}

	header := []byte{0x80, ptsDTSIndicator << 6, byte(len(optional))}
	pesPayload := append(append(header, optional...), data...)
	packetLength := len(pesPayload)

	out := []byte{0x00, 0x00, 0x01, streamID, byte(packetLength >> 8), byte(packetLength)}
	return append(out, pesPayload...)
}

// writePTSOrDTS encodes a 33-bit timestamp into the standard 5-byte PES
// form, prefix being the 4-bit marker (0010 for PTS-only, 0011 for PTS when
// DTS follows, 0001 for DTS).
func writePTSOrDTS(prefix byte, ts int64) []byte {
	return []byte{
		prefix<<4 | byte((ts>>30)&0x07)<<1 | 0x01,
		byte((ts >> 22) & 0xFF),
		byte((ts>>15)&0x7F)<<1 | 0x01,
		byte((ts >> 7) & 0xFF),
		byte(ts&0x7F)<<1 | 0x01,
	}
}
