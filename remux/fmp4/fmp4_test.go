package fmp4

import (
	"bytes"
	"testing"

	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

func TestRemux_VideoOnly_EmitsInitSegmentOnce(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	sps := []byte{0x67, 0x42, 0x00, 0x1E} // not a real parsed SPS, just decoder-config input
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	video := &media.VideoTrack{
		Codec: "h264", Width: 1280, Height: 720, SPS: sps, PPS: pps,
		Samples: []media.VideoSample{
			{PTS: 0, DTS: 0, IsKeyframe: true, Data: []byte{0x00, 0x00, 0x00, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}},
			{PTS: 33333, DTS: 33333, IsKeyframe: false, Data: []byte{0x00, 0x00, 0x00, 0x02, 0xEE, 0xFF}},
		},
	}

	first := r.Remux(nil, video, nil, nil, 0, true, false, "seg1")
	if len(first.InitSegment) == 0 {
		t.Fatal("first Remux with a new video config should emit an init segment")
	}
	if !bytes.Contains(first.InitSegment, []byte("ftyp")) || !bytes.Contains(first.InitSegment, []byte("moov")) {
		t.Error("init segment should contain ftyp and moov boxes")
	}
	if len(first.VideoData) == 0 {
		t.Fatal("expected a video fragment")
	}
	if !bytes.Contains(first.VideoData, []byte("moof")) || !bytes.Contains(first.VideoData, []byte("mdat")) {
		t.Error("video fragment should contain moof and mdat boxes")
	}
	if !first.Independent {
		t.Error("Independent should be true: first sample is a keyframe")
	}
	if first.FirstPTS != 0 || first.LastPTS != 33333 {
		t.Errorf("FirstPTS/LastPTS = %d/%d, want 0/33333", first.FirstPTS, first.LastPTS)
	}

	second := r.Remux(nil, video, nil, nil, 0, true, false, "seg2")
	if len(second.InitSegment) != 0 {
		t.Error("unchanged video config should not re-emit an init segment")
	}
}

func TestRemux_VideoConfigChange_ReemitsInitSegment(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	video := &media.VideoTrack{
		Codec: "h264", SPS: []byte{0x67, 0x00, 0x00, 0x00}, PPS: []byte{0x68, 0x00},
		Samples: []media.VideoSample{{PTS: 0, DTS: 0, IsKeyframe: true, Data: []byte{0x00, 0x00, 0x00, 0x01, 0xAA}}},
	}
	if res := r.Remux(nil, video, nil, nil, 0, true, false, "seg1"); len(res.InitSegment) == 0 {
		t.Fatal("expected an init segment on the first call")
	}

	video.SPS = []byte{0x67, 0x01, 0x02, 0x03} // different parameter sets -> new avcC
	res := r.Remux(nil, video, nil, nil, 0, true, false, "seg2")
	if len(res.InitSegment) == 0 {
		t.Error("a changed SPS/PPS should force a fresh init segment")
	}
}

func TestRemux_AudioOnly(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	audio := &media.AudioTrack{
		Codec: "aac", SampleRate: 44100, Channels: 2,
		Samples: []media.AudioSample{
			{PTS: 0, Data: []byte{0x01, 0x02, 0x03}},
			{PTS: 23220, Data: []byte{0x04, 0x05, 0x06}},
		},
	}

	res := r.Remux(audio, nil, nil, nil, 0, true, false, "seg1")
	if len(res.InitSegment) == 0 {
		t.Fatal("first audio config should emit an init segment")
	}
	if len(res.AudioData) == 0 {
		t.Fatal("expected an audio fragment")
	}
	if res.FirstPTS != 0 || res.LastPTS != 23220 {
		t.Errorf("FirstPTS/LastPTS = %d/%d, want 0/23220", res.FirstPTS, res.LastPTS)
	}
	if len(res.VideoData) != 0 {
		t.Error("no video track was supplied; VideoData should be empty")
	}
}

func TestRemux_SCTE35WrappedAsID3PRIV(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	section := []byte{0xFC, 0x30, 0x11, 0x00, 0x00}
	id3 := &media.ID3Track{Samples: []media.ID3Sample{{PTS: 5000, Data: section}}}

	res := r.Remux(nil, nil, id3, nil, 0, true, false, "seg1")
	if len(res.ID3Data) == 0 {
		t.Fatal("expected ID3 data")
	}
	if !bytes.HasPrefix(res.ID3Data, []byte("ID3")) {
		t.Error("ID3 data should open with the ID3v2 tag identifier")
	}
	if !bytes.Contains(res.ID3Data, []byte("PRIV")) {
		t.Error("ID3 data should contain a PRIV frame")
	}
	if !bytes.Contains(res.ID3Data, section) {
		t.Error("the PRIV frame should carry the original splice_info_section bytes")
	}
	if !bytes.Contains(res.ID3Data, []byte("SCTE35")) {
		t.Error("the PRIV frame's owner identifier should be SCTE35")
	}
}

func TestRemux_TextSamplesConcatenatedWithNewlines(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	text := &media.TextTrack{Samples: []media.TextSample{
		{PTS: 0, Data: []byte("hello")},
		{PTS: 1000, Data: []byte("world")},
	}}

	res := r.Remux(nil, nil, nil, text, 0, true, false, "seg1")
	want := "hello\nworld\n"
	if string(res.TextData) != want {
		t.Errorf("TextData = %q, want %q", res.TextData, want)
	}
}

func TestRemux_EmptyInput(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")
	res := r.Remux(nil, nil, nil, nil, 0, true, false, "seg1")
	if !res.Empty() {
		t.Error("no tracks supplied should produce an empty RemuxResult")
	}
}
