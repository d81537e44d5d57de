package mpegts

// processPacketBatch concatenates one PID's accumulated packet payloads and
// routes the result to opaque, PSI, or PES parsing. The caller (stream.go's
// StreamDemuxer) owns the accumulation; this just interprets one completed
// batch.
func processPacketBatch(packets []*Packet, pm *programMap) ([]*DemuxerData, error) {
	if len(packets) == 0 {
		return nil, nil
	}

	firstPacket := packets[0]
	pid := firstPacket.Header.PID

	var payload []byte
	for _, p := range packets {
		payload = append(payload, p.Payload...)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	if pm.isOpaquePID(pid) {
		body, ok := skipPointerField(payload)
		if !ok {
			return nil, nil
		}
		// Trim TS stuffing after the section: 3 header bytes + section_length.
		if len(body) >= 3 {
			if n := 3 + (int(body[1]&0x0F)<<8 | int(body[2])); n <= len(body) {
				body = body[:n]
			}
		}
		return []*DemuxerData{{
			FirstPacket: firstPacket,
			Opaque:      &OpaqueSection{PID: pid, Data: body},
		}}, nil
	}

	if isPSIPayload(pid, pm) {
		return parsePSI(payload, pid, firstPacket, pm)
	}

	if isPESPayload(payload) {
		pes, err := parsePES(payload)
		if err != nil {
			return nil, err
		}
		return []*DemuxerData{{
			FirstPacket: firstPacket,
			PES:         pes,
		}}, nil
	}

	return nil, nil
}
