package mpegts

// StreamDemuxer is a push-based TS demuxer: it is fed arbitrarily-sized
// byte slices across however
// many calls the caller has bytes for, buffering any trailing partial
// 188-byte packet until the next Push completes it. This is the shape a
// segment transmuxer needs, since a segment's bytes may arrive in several
// chunks before a container boundary is known.
type StreamDemuxer struct {
	pool       *packetPool
	programMap *programMap
	tail       []byte // bytes short of one full packetSize, held across Push calls
}

// NewStreamDemuxer constructs a StreamDemuxer with fresh PAT/PMT and
// per-PID accumulation state.
func NewStreamDemuxer() *StreamDemuxer {
	pm := newProgramMap()
	return &StreamDemuxer{
		pool:       newPacketPool(pm),
		programMap: pm,
	}
}

// Push parses as many complete 188-byte packets as data (prefixed by any
// buffered tail) contains, returning every DemuxerData produced, in order.
// Corrupt packets are skipped; bytes that don't complete a packet are
// retained for the next call.
func (d *StreamDemuxer) Push(data []byte) ([]*DemuxerData, error) {
	buf := append(d.tail, data...)

	var out []*DemuxerData
	offset := 0
	for offset+packetSize <= len(buf) {
		pkt, err := parsePacket(buf[offset : offset+packetSize])
		offset += packetSize
		if err != nil {
			continue
		}

		flushed := d.pool.add(pkt)
		if flushed == nil {
			continue
		}
		results, err := d.processFlushed(flushed)
		if err != nil {
			continue
		}
		out = append(out, results...)
	}

	d.tail = append([]byte(nil), buf[offset:]...)
	return out, nil
}

// Flush force-drains every PID's accumulator (end of segment: whatever
// hasn't hit its own completion trigger is emitted as-is) and discards any
// leftover sub-packet tail.
func (d *StreamDemuxer) Flush() ([]*DemuxerData, error) {
	var out []*DemuxerData
	for _, packets := range d.pool.dump() {
		results, err := d.processFlushed(packets)
		if err != nil {
			continue
		}
		out = append(out, results...)
	}
	d.tail = nil
	return out, nil
}

// RegisterOpaquePID marks pid as carrying caller-understood, PSI-framed
// sections (e.g. SCTE-35) rather than PAT/PMT/PES. Subsequent DemuxerData
// for that PID is returned via its Opaque field instead of being dropped.
func (d *StreamDemuxer) RegisterOpaquePID(pid uint16) {
	d.programMap.addOpaquePID(pid)
}

// Reset discards all accumulation and program-map state, used when the
// orchestrator signals a discontinuity.
func (d *StreamDemuxer) Reset() {
	pm := newProgramMap()
	d.pool = newPacketPool(pm)
	d.programMap = pm
	d.tail = nil
}

// processFlushed parses one PID's accumulated packets into DemuxerData and,
// when the result carries a PAT, teaches the program map about its PMT
// PIDs so the next packet on that PID is recognized as PSI rather than PES.
func (d *StreamDemuxer) processFlushed(packets []*Packet) ([]*DemuxerData, error) {
	results, err := processPacketBatch(packets, d.programMap)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.PAT != nil {
			for _, p := range r.PAT.Programs {
				d.programMap.addPMTPID(p.ProgramMapID)
			}
		}
	}
	return results, nil
}
