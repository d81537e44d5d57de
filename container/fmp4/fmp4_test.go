package fmp4

import (
	"encoding/binary"
	"testing"

	"github.com/zsiec/transmux/transmux"
)

func buildBox(fourcc string, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(8+len(payload)))
	copy(buf[4:8], fourcc)
	copy(buf[8:], payload)
	return buf
}

func buildTfdt(baseMediaDecodeTime uint32) []byte {
	payload := make([]byte, 8)
	payload[0] = 0 // version 0
	binary.BigEndian.PutUint32(payload[4:8], baseMediaDecodeTime)
	return buildBox("tfdt", payload)
}

func buildMoof(baseMediaDecodeTime uint32) []byte {
	tfdt := buildTfdt(baseMediaDecodeTime)
	traf := buildBox("traf", tfdt)
	return buildBox("moof", traf)
}

func TestProbe(t *testing.T) {
	t.Parallel()
	if !Probe(buildBox("ftyp", []byte("isom"))) {
		t.Error("Probe should accept an ftyp box")
	}
	if !Probe(buildMoof(0)) {
		t.Error("Probe should accept a moof box")
	}
	if Probe(buildBox("mdat", nil)) {
		t.Error("Probe should reject a bare mdat box")
	}
	if Probe([]byte{0x00, 0x01}) {
		t.Error("Probe should reject too-short input")
	}
}

func TestDemux_MoofProducesSample(t *testing.T) {
	t.Parallel()
	moof := buildMoof(90000)
	mdat := buildBox("mdat", []byte{0xDE, 0xAD, 0xBE, 0xEF})

	d := New(nil, transmux.TransmuxConfig{}, nil)
	res, err := d.Demux(append(moof, mdat...), 0, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Video == nil || len(res.Video.Samples) != 1 {
		t.Fatalf("expected 1 video sample, got %+v", res.Video)
	}
	if res.Video.Samples[0].PTS != 90000 {
		t.Errorf("PTS = %d, want 90000 (from tfdt)", res.Video.Samples[0].PTS)
	}
	if !res.Video.Samples[0].IsKeyframe {
		t.Error("every fragment is treated as independently decodable")
	}
	// The sample wraps the moof and its mdat (passthrough forwards them unparsed).
	if len(res.Video.Samples[0].Data) != len(moof)+len(mdat) {
		t.Errorf("sample Data length = %d, want %d (moof+mdat)", len(res.Video.Samples[0].Data), len(moof)+len(mdat))
	}
}

func TestDemux_IncompleteBoxNotVisited(t *testing.T) {
	t.Parallel()
	moof := buildMoof(1000)
	d := New(nil, transmux.TransmuxConfig{}, nil)

	res, err := d.Demux(moof[:len(moof)-1], 0, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Video != nil {
		t.Error("a truncated box should not yet produce a sample")
	}
}

func TestFlush_NeverProducesSamples(t *testing.T) {
	t.Parallel()
	d := New(nil, transmux.TransmuxConfig{}, nil)
	res, err := d.Flush(0)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() {
		t.Error("Flush should never have anything to drain")
	}
}
