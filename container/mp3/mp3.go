// Package mp3 implements a demuxer for bare MPEG-1/2 Audio Layer III
// streams, the other audio-only container family HLS allows unwrapped.
package mp3

import (
	"context"
	"log/slog"

	"github.com/zsiec/transmux/internal/codecs"
	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

// MinProbeByteLength is the minimum number of bytes Probe needs: one frame
// header.
const MinProbeByteLength = 4

// Probe reports whether data opens with a valid MPEG audio frame header.
func Probe(data []byte) bool {
	return codecs.ProbeMP3(data)
}

// Demuxer parses consecutive MP3 frames into AudioSamples.
type Demuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter
	tail     []byte
}

// New constructs a Demuxer; matches transmux.DemuxerFactory.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool) transmux.Demuxer {
	return &Demuxer{log: slog.Default().With("component", "mp3"), observer: observer}
}

// Demux parses as many complete frames as are available, carrying any
// trailing partial frame forward.
func (d *Demuxer) Demux(data []byte, timeOffset float64, contiguous, flush bool) (media.DemuxResult, error) {
	buf := append(d.tail, data...)
	frames, err := codecs.ParseMP3(buf)
	if err != nil {
		d.log.Warn("invalid MP3 frame", "error", err)
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

	track := &media.AudioTrack{Codec: "mp3", SampleRate: frames[0].SampleRate, Channels: frames[0].Channels}
	pts := int64(timeOffset * 1e6)
	for _, f := range frames {
		track.Samples = append(track.Samples, media.AudioSample{PTS: pts, Data: f.Data})
	}
	return media.DemuxResult{Audio: track}, nil
}

// DemuxSampleAES is unsupported for bare MP3; SAMPLE-AES never applies
// outside an MPEG-TS wrapper, so this treats the input as clear.
func (d *Demuxer) DemuxSampleAES(_ context.Context, data []byte, _ transmux.KeyData, timeOffset float64) (media.DemuxResult, error) {
	return d.Demux(data, timeOffset, true, true)
}

// Flush drains any buffered trailing partial frame.
func (d *Demuxer) Flush(timeOffset float64) (media.DemuxResult, error) {
	if len(d.tail) == 0 {
		return media.DemuxResult{}, nil
	}
	return d.Demux(nil, timeOffset, true, true)
}

// ResetInitSegment is a no-op: bare MP3 carries no init-segment concept.
func (d *Demuxer) ResetInitSegment(media.InitSegmentData, string, string, float64) {}

// ResetTimeStamp is a no-op.
func (d *Demuxer) ResetTimeStamp(int64) {}

// ResetContiguity drops any buffered partial frame.
func (d *Demuxer) ResetContiguity() { d.tail = nil }

// Destroy releases no resources.
func (d *Demuxer) Destroy() {}
