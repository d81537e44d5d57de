package passthrough

import (
	"encoding/binary"
	"testing"

	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

func buildFragment(seq uint32) []byte {
	mfhd := make([]byte, 16)
	copy(mfhd[4:8], "mfhd")
	binary.BigEndian.PutUint32(mfhd[8:12], 0) // version/flags
	binary.BigEndian.PutUint32(mfhd[12:16], seq)
	binary.BigEndian.PutUint32(mfhd[0:4], 16)

	moof := make([]byte, 8+len(mfhd))
	binary.BigEndian.PutUint32(moof[0:4], uint32(len(moof)))
	copy(moof[4:8], "moof")
	copy(moof[8:], mfhd)
	return moof
}

func sequenceNumberOf(frag []byte) uint32 {
	return binary.BigEndian.Uint32(frag[20:24])
}

func TestRemux_RewritesSequenceNumbers(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "")

	video := &media.VideoTrack{
		Samples: []media.VideoSample{
			{PTS: 1000, Data: buildFragment(7)},
			{PTS: 2000, Data: buildFragment(8)},
		},
	}

	result := r.Remux(nil, video, nil, nil, 0, true, false, "seg1")
	if !result.Independent {
		t.Error("passthrough fragments are always reported Independent")
	}
	if result.FirstPTS != 1000 || result.LastPTS != 2000 {
		t.Errorf("FirstPTS/LastPTS = %d/%d, want 1000/2000", result.FirstPTS, result.LastPTS)
	}

	frag1Len := len(buildFragment(0))
	first := result.VideoData[:frag1Len]
	second := result.VideoData[frag1Len:]

	if seq := sequenceNumberOf(first); seq != 1 {
		t.Errorf("first fragment sequence = %d, want 1", seq)
	}
	if seq := sequenceNumberOf(second); seq != 2 {
		t.Errorf("second fragment sequence = %d, want 2", seq)
	}
}

func TestResetInitSegment_PrefersVideo(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "").(*Remuxer)

	r.ResetInitSegment(media.InitSegmentData{
		"video": []byte("video-init"),
		"audio": []byte("audio-init"),
	}, "aac", "h264")

	result := r.Remux(nil, nil, nil, nil, 0, true, false, "seg1")
	if string(result.InitSegment) != "video-init" {
		t.Errorf("InitSegment = %q, want video-init", result.InitSegment)
	}
}

func TestResetInitSegment_FallsBackToAudio(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "").(*Remuxer)

	r.ResetInitSegment(media.InitSegmentData{
		"audio": []byte("audio-init"),
	}, "aac", "")

	result := r.Remux(nil, nil, nil, nil, 0, true, false, "seg1")
	if string(result.InitSegment) != "audio-init" {
		t.Errorf("InitSegment = %q, want audio-init", result.InitSegment)
	}
}

func TestRemux_PendingInitSegmentConsumedOnce(t *testing.T) {
	t.Parallel()
	r := New(nil, transmux.TransmuxConfig{}, nil, "").(*Remuxer)
	r.ResetInitSegment(media.InitSegmentData{"video": []byte("init")}, "", "h264")

	first := r.Remux(nil, nil, nil, nil, 0, true, false, "seg1")
	if len(first.InitSegment) == 0 {
		t.Fatal("first Remux call should carry the queued init segment")
	}

	second := r.Remux(nil, nil, nil, nil, 0, true, false, "seg1")
	if len(second.InitSegment) != 0 {
		t.Error("init segment should only be emitted once")
	}
}
