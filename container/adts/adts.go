// Package adts implements a demuxer for bare ADTS-framed AAC audio, one of
// the container families a segment transmuxer must recognize directly
// (HLS permits an audio-only AAC segment with no MPEG-TS or fMP4 wrapper).
package adts

import (
	"context"
	"log/slog"

	"github.com/zsiec/transmux/internal/codecs"
	"github.com/zsiec/transmux/internal/isobmff"
	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

// MinProbeByteLength is the minimum number of bytes Probe needs to decide
// reliably: one fixed (non-CRC) ADTS header.
const MinProbeByteLength = 7

// Probe reports whether data opens with a plausible ADTS sync word.
func Probe(data []byte) bool {
	return codecs.ProbeADTS(data)
}

// Demuxer parses consecutive ADTS frames into AudioSamples. Its only state
// across calls is tail: a trailing partial frame, kept until the next call
// completes it (or dropped on a flushing call or ResetContiguity).
type Demuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter
	tail     []byte // bytes that didn't form a complete frame last call
}

// New constructs a Demuxer. Matches transmux.DemuxerFactory's signature so
// it can be registered directly in a transmux.ProbeEntry.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool) transmux.Demuxer {
	return &Demuxer{log: slog.Default().With("component", "adts"), observer: observer}
}

// Demux parses as many complete ADTS frames as are available, carrying any
// trailing partial frame forward to the next call.
func (d *Demuxer) Demux(data []byte, timeOffset float64, contiguous, flush bool) (media.DemuxResult, error) {
	buf := append(d.tail, data...)
	frames, err := codecs.ParseADTS(buf)
	if err != nil {
		d.log.Warn("invalid ADTS frame", "error", err)
	}

	consumed := 0
	for _, f := range frames {
		consumed += len(f.Data)
	}
	if flush {
		d.tail = nil
	} else {
		d.tail = append([]byte(nil), buf[consumed:]...)
	}

	if len(frames) == 0 {
		return media.DemuxResult{}, nil
	}

	track := &media.AudioTrack{Codec: "aac", SampleRate: frames[0].SampleRate, Channels: frames[0].Channels}
	pts := int64(timeOffset * 1e6)
	for _, f := range frames {
		track.Samples = append(track.Samples, media.AudioSample{PTS: pts, Data: isobmff.StripADTS(f.Data)})
	}
	return media.DemuxResult{Audio: track}, nil
}

// DemuxSampleAES is unsupported for bare ADTS: SAMPLE-AES is an HLS-TS-only
// encryption scheme (RFC 8216bis). It falls back to treating data as clear.
func (d *Demuxer) DemuxSampleAES(_ context.Context, data []byte, _ transmux.KeyData, timeOffset float64) (media.DemuxResult, error) {
	return d.Demux(data, timeOffset, true, true)
}

// Flush drains any buffered trailing partial frame as a best-effort final
// decode attempt (it will fail to parse and be dropped if genuinely
// truncated).
func (d *Demuxer) Flush(timeOffset float64) (media.DemuxResult, error) {
	if len(d.tail) == 0 {
		return media.DemuxResult{}, nil
	}
	res, err := d.Demux(nil, timeOffset, true, true)
	d.tail = nil
	return res, err
}

// ResetInitSegment is a no-op: bare ADTS carries no init-segment concept.
func (d *Demuxer) ResetInitSegment(media.InitSegmentData, string, string, float64) {}

// ResetTimeStamp is a no-op: timestamps are derived fresh from timeOffset
// on every call.
func (d *Demuxer) ResetTimeStamp(int64) {}

// ResetContiguity drops any buffered partial frame.
func (d *Demuxer) ResetContiguity() { d.tail = nil }

// Destroy releases no resources.
func (d *Demuxer) Destroy() {}
