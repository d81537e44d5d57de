package ts

import (
	"testing"

	"github.com/zsiec/transmux/transmux"
)

const packetSize = 188

func makeTSPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, packetSize)
	buf[0] = 0x47
	buf[1] = byte(pid>>8) & 0x1F
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F)
	if pusi {
		buf[1] |= 0x40
	}
	copy(buf[4:], payload)
	return buf
}

func crc32MPEG2(data []byte) uint32 {
	const poly = 0x04C11DB7
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func buildPATSection(programNum, pmtPID uint16) []byte {
	length := 9 + 4
	buf := make([]byte, 3+length)
	buf[0] = 0x00
	buf[1] = 0x80 | 0x30 | byte((length>>8)&0x0F)
	buf[2] = byte(length)
	buf[3], buf[4] = 0x00, 0x01 // transport_stream_id
	buf[5] = 0xC1
	buf[6], buf[7] = 0, 0
	buf[8] = byte(programNum >> 8)
	buf[9] = byte(programNum)
	buf[10] = 0xE0 | byte(pmtPID>>8&0x1F)
	buf[11] = byte(pmtPID)
	crc := crc32MPEG2(buf[:12])
	buf[12] = byte(crc >> 24)
	buf[13] = byte(crc >> 16)
	buf[14] = byte(crc >> 8)
	buf[15] = byte(crc)
	return buf
}

type pmtStream struct {
	streamType uint8
	pid        uint16
}

func buildPMTSection(programNum, pcrPID uint16, streams []pmtStream) []byte {
	m := len(streams)
	length := 9 + 5*m + 4
	buf := make([]byte, 3+length)
	buf[0] = 0x02
	buf[1] = 0x80 | 0x30 | byte((length>>8)&0x0F)
	buf[2] = byte(length)
	buf[3] = byte(programNum >> 8)
	buf[4] = byte(programNum)
	buf[5] = 0xC1
	buf[6], buf[7] = 0, 0
	buf[8] = 0xE0 | byte(pcrPID>>8&0x1F)
	buf[9] = byte(pcrPID)
	buf[10], buf[11] = 0xF0, 0x00

	offset := 12
	for _, s := range streams {
		buf[offset] = s.streamType
		buf[offset+1] = 0xE0 | byte(s.pid>>8&0x1F)
		buf[offset+2] = byte(s.pid)
		buf[offset+3], buf[offset+4] = 0xF0, 0x00
		offset += 5
	}
	crc := crc32MPEG2(buf[:offset])
	buf[offset] = byte(crc >> 24)
	buf[offset+1] = byte(crc >> 16)
	buf[offset+2] = byte(crc >> 8)
	buf[offset+3] = byte(crc)
	return buf
}

func withPointerField(section []byte) []byte {
	return append([]byte{0x00}, section...)
}

func writePTS(ts int64) []byte {
	return []byte{
		0x20 | byte((ts>>30)&0x07)<<1 | 0x01,
		byte((ts >> 22) & 0xFF),
		byte((ts>>15)&0x7F)<<1 | 0x01,
		byte((ts >> 7) & 0xFF),
		byte(ts&0x7F)<<1 | 0x01,
	}
}

func buildPES(streamID byte, pts int64, data []byte) []byte {
	optional := writePTS(pts)
	header := []byte{0x80, 0x02 << 6, byte(len(optional))}
	payload := append(append(header, optional...), data...)
	packetLength := len(payload)
	out := []byte{0x00, 0x00, 0x01, streamID, byte(packetLength >> 8), byte(packetLength)}
	return append(out, payload...)
}

func TestProbe(t *testing.T) {
	t.Parallel()
	var stream []byte
	for i := 0; i < 3; i++ {
		stream = append(stream, makeTSPacket(0x100, uint8(i), false, nil)...)
	}
	if !Probe(stream) {
		t.Error("Probe should accept a well-aligned TS stream")
	}
	if Probe([]byte{0x00, 0x00, 0x00}) {
		t.Error("Probe should reject non-TS data")
	}
	broken := append([]byte{}, stream...)
	broken[188] = 0x00
	if Probe(broken) {
		t.Error("Probe should reject a stream that loses sync at the second packet")
	}
}

// TestDemux_VideoAndAudio builds a minimal synthetic transport stream
// (PAT, PMT declaring H.264 video + AAC audio, one PES of each) and checks
// that the demuxer recovers both tracks' timing and framing.
func TestDemux_VideoAndAudio(t *testing.T) {
	t.Parallel()
	var stream []byte

	pat := buildPATSection(1, 0x1000)
	stream = append(stream, makeTSPacket(0x0000, 0, true, withPointerField(pat))...)

	pmt := buildPMTSection(1, 0x100, []pmtStream{
		{streamType: streamTypeH264, pid: 0x100},
		{streamType: streamTypeAAC, pid: 0x101},
	})
	stream = append(stream, makeTSPacket(0x1000, 0, true, withPointerField(pmt))...)

	idrNALU := append([]byte{0x00, 0x00, 0x00, 0x01, 0x65}, make([]byte, 10)...)
	videoPES := buildPES(0xE0, 90000, idrNALU)
	stream = append(stream, makeTSPacket(0x100, 0, true, videoPES)...)

	adtsFrame := []byte{0xFF, 0xF1, 0x50, 0x40, 0x01, 0x3F, 0xFC, 0xAA, 0xBB} // frame_length = 9
	audioPES := buildPES(0xC0, 90000, adtsFrame)
	stream = append(stream, makeTSPacket(0x101, 0, true, audioPES)...)

	d := New(nil, transmux.TransmuxConfig{}, nil)
	res, err := d.Demux(stream, 0, true, true)
	if err != nil {
		t.Fatal(err)
	}

	if res.Video == nil || len(res.Video.Samples) != 1 {
		t.Fatalf("expected 1 video sample, got %+v", res.Video)
	}
	if res.Video.Codec != "h264" {
		t.Errorf("Codec = %q, want h264", res.Video.Codec)
	}
	if !res.Video.Samples[0].IsKeyframe {
		t.Error("an IDR NALU should be reported as a keyframe")
	}
	if res.Video.Samples[0].PTS != 1000000 {
		t.Errorf("video PTS = %d, want 1000000 (90000 ticks at 90kHz, in microseconds)", res.Video.Samples[0].PTS)
	}

	if res.Audio == nil || len(res.Audio.Samples) != 1 {
		t.Fatalf("expected 1 audio sample, got %+v", res.Audio)
	}
	if res.Audio.Codec != "aac" {
		t.Errorf("Codec = %q, want aac", res.Audio.Codec)
	}
	if res.Audio.Samples[0].PTS != 1000000 {
		t.Errorf("audio PTS = %d, want 1000000", res.Audio.Samples[0].PTS)
	}
}

func TestResetContiguity_RebuildsState(t *testing.T) {
	t.Parallel()
	d := New(nil, transmux.TransmuxConfig{}, nil).(*Demuxer)

	pat := buildPATSection(1, 0x1000)
	if _, err := d.Demux(makeTSPacket(0x0000, 0, true, withPointerField(pat)), 0, true, false); err != nil {
		t.Fatal(err)
	}
	d.ResetContiguity()

	if d.videoPID != 0 || d.audioPID != 0 {
		t.Error("ResetContiguity should clear any previously discovered PIDs")
	}
}
