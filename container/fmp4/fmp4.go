// Package fmp4 implements a demuxer for content that is already
// fragmented MP4 — an EXT-X-MAP'd CMAF/fMP4 segment, which the transmuxer
// core should forward essentially unchanged rather than re-parse into
// elementary samples. It only reads enough of the box structure to report
// timing; byte-for-byte forwarding is remux/passthrough's job.
package fmp4

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

// MinProbeByteLength is the minimum number of bytes Probe needs: one box
// header (4-byte size + 4-byte fourcc).
const MinProbeByteLength = 8

// Probe reports whether data opens with an ftyp or moof box.
func Probe(data []byte) bool {
	fourcc, _, _, ok := readBoxHeader(data)
	if !ok {
		return false
	}
	return fourcc == "ftyp" || fourcc == "moof"
}

// readBoxHeader parses a box's 8-byte header (32-bit size form only; these
// segments are never large enough to need the 64-bit largesize escape).
// size is the box's total length including its header; it may exceed
// len(data) when the box spans the probe/demux window.
func readBoxHeader(data []byte) (fourcc string, size, headerLen int, ok bool) {
	if len(data) < 8 {
		return "", 0, 0, false
	}
	size = int(binary.BigEndian.Uint32(data[0:4]))
	if size < 8 {
		return "", 0, 0, false
	}
	return string(data[4:8]), size, 8, true
}

// walkBoxes calls fn with the full bytes of each complete top-level box in
// data, in order. A box whose declared size would run past the end of data
// is not visited (it is incomplete; the caller sees it again, whole, on a
// later call once more bytes have accumulated).
func walkBoxes(data []byte, fn func(fourcc string, box []byte)) {
	offset := 0
	for offset+8 <= len(data) {
		fourcc, size, _, ok := readBoxHeader(data[offset:])
		if !ok || size <= 0 {
			return
		}
		if offset+size > len(data) {
			return
		}
		fn(fourcc, data[offset:offset+size])
		offset += size
	}
}

// Demuxer reports timing for already-fragmented input without re-parsing
// samples. It holds no state across calls: each push is self-contained
// fragment data.
type Demuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter
}

// New constructs a Demuxer; matches transmux.DemuxerFactory.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool) transmux.Demuxer {
	return &Demuxer{log: slog.Default().With("component", "fmp4"), observer: observer}
}

// Demux wraps the raw bytes of every complete moof+mdat fragment found in
// data into a single VideoSample, timestamped from the fragment's tfdt, so
// the passthrough remuxer can forward it while still reporting FirstPTS/
// LastPTS. ftyp/moov (an init segment) produces no samples; the caller
// surfaces it via ResetInitSegment, not Demux.
func (d *Demuxer) Demux(data []byte, timeOffset float64, contiguous, flush bool) (media.DemuxResult, error) {
	var samples []media.VideoSample

	walkBoxes(data, func(fourcc string, box []byte) {
		if fourcc == "mdat" && len(samples) > 0 {
			last := &samples[len(samples)-1]
			last.Data = append(append([]byte(nil), last.Data...), box...)
			return
		}
		if fourcc != "moof" {
			return
		}
		baseMediaDecodeTime, ok := findTfdt(box)
		if !ok {
			baseMediaDecodeTime = int64(timeOffset)
		}
		samples = append(samples, media.VideoSample{
			PTS:        baseMediaDecodeTime,
			DTS:        baseMediaDecodeTime,
			IsKeyframe: true,
			Data:       box,
		})
	})

	if len(samples) == 0 {
		return media.DemuxResult{}, nil
	}
	return media.DemuxResult{Video: &media.VideoTrack{Codec: "passthrough", Samples: samples}}, nil
}

// DemuxSampleAES is unsupported: SAMPLE-AES is a Packed Audio/Video-in-TS
// scheme and never applies to already-fragmented MP4 input.
func (d *Demuxer) DemuxSampleAES(_ context.Context, data []byte, _ transmux.KeyData, timeOffset float64) (media.DemuxResult, error) {
	return d.Demux(data, timeOffset, true, true)
}

// Flush has nothing to drain: every moof+mdat pair Demux sees is already
// complete (a box that didn't fully arrive is simply not yet visited).
func (d *Demuxer) Flush(timeOffset float64) (media.DemuxResult, error) {
	return media.DemuxResult{}, nil
}

// ResetInitSegment is a no-op: the fMP4 family's init segment is the
// caller-supplied EXT-X-MAP bytes, forwarded verbatim by remux/passthrough,
// not something this demuxer participates in.
func (d *Demuxer) ResetInitSegment(media.InitSegmentData, string, string, float64) {}

// ResetTimeStamp is a no-op: timing always comes straight from tfdt.
func (d *Demuxer) ResetTimeStamp(int64) {}

// ResetContiguity is a no-op: this demuxer is already stateless across calls.
func (d *Demuxer) ResetContiguity() {}

// Destroy releases no resources.
func (d *Demuxer) Destroy() {}

// findTfdt walks a moof box for its first traf's tfdt and returns its
// baseMediaDecodeTime.
func findTfdt(moof []byte) (int64, bool) {
	var result int64
	var found bool
	walkBoxes(moof[8:], func(fourcc string, box []byte) {
		if fourcc != "traf" || found {
			return
		}
		walkBoxes(box[8:], func(inner string, innerBox []byte) {
			if inner != "tfdt" || found || len(innerBox) < 12 {
				return
			}
			version := innerBox[8]
			if version == 1 && len(innerBox) >= 20 {
				result = int64(binary.BigEndian.Uint64(innerBox[12:20]))
			} else {
				result = int64(binary.BigEndian.Uint32(innerBox[12:16]))
			}
			found = true
		})
	})
	return result, found
}
