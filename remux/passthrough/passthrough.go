// Package passthrough implements the remuxer paired with container/fmp4:
// already-fragmented input is forwarded essentially byte-for-byte, only
// rewriting each fragment's mfhd sequence number to the orchestrator's own
// monotonically increasing counter (the source segment's own sequence
// numbers restart at 1 per segment and would collide across segments once
// concatenated into a single MSE SourceBuffer timeline).
package passthrough

import (
	"encoding/binary"
	"log/slog"

	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

// Remuxer forwards moof+mdat fragments produced by container/fmp4,
// substituting its own init segment bytes whenever ResetInitSegment fires.
type Remuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter
	seq      uint32
	pending  []byte // init segment bytes queued for the next Remux call
}

// New constructs a Remuxer; matches transmux.RemuxerFactory.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool, _ string) transmux.Remuxer {
	return &Remuxer{log: slog.Default().With("component", "passthrough"), observer: observer}
}

// Remux rewrites and concatenates every video fragment's mfhd sequence
// number, reporting the init segment queued by ResetInitSegment (if any)
// alongside it.
func (r *Remuxer) Remux(audio *media.AudioTrack, video *media.VideoTrack, id3 *media.ID3Track, text *media.TextTrack,
	timeOffset float64, accurateTimeOffset, flush bool, id string) media.RemuxResult {

	var result media.RemuxResult
	if r.pending != nil {
		result.InitSegment = r.pending
		r.pending = nil
	}

	if video == nil || len(video.Samples) == 0 {
		return result
	}

	var out []byte
	for i, s := range video.Samples {
		r.seq++
		frag := rewriteSequenceNumber(s.Data, r.seq)
		out = append(out, frag...)
		if i == 0 {
			result.FirstPTS = s.PTS
		}
		result.LastPTS = s.PTS
	}

	result.VideoData = out
	result.Independent = true
	return result
}

// ResetInitSegment queues initSegmentData's video bytes (falling back to
// audio) to be emitted as this remuxer's next InitSegment.
func (r *Remuxer) ResetInitSegment(initSegmentData media.InitSegmentData, audioCodec, videoCodec string) {
	if v, ok := initSegmentData["video"]; ok {
		r.pending = v
		return
	}
	if a, ok := initSegmentData["audio"]; ok {
		r.pending = a
	}
}

// ResetTimeStamp is a no-op: passthrough never rescales timestamps.
func (r *Remuxer) ResetTimeStamp(int64) {}

// ResetNextTimestamp is a no-op for the same reason.
func (r *Remuxer) ResetNextTimestamp() {}

// Destroy releases no resources.
func (r *Remuxer) Destroy() {}

// rewriteSequenceNumber patches a moof box's mfhd sequence_number field in
// place (mfhd is always moof's first child box, directly after moof's own
// 8-byte header, with sequence_number as the last 4 bytes of its FullBox
// payload) and returns the full fragment with the new value.
func rewriteSequenceNumber(frag []byte, seq uint32) []byte {
	out := append([]byte(nil), frag...)
	if len(out) < 8+16 {
		return out
	}
	// moof header(8) + mfhd header(8) + version/flags(4) = offset of
	// sequence_number within mfhd's payload.
	const seqOffset = 8 + 8 + 4
	if seqOffset+4 > len(out) {
		return out
	}
	if string(out[12:16]) != "mfhd" {
		return out
	}
	binary.BigEndian.PutUint32(out[seqOffset:seqOffset+4], seq)
	return out
}
