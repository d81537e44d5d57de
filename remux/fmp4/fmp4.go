// Package fmp4 implements the to-fMP4 remuxer: it builds an initialization
// segment (ftyp+moov) on codec change and one fragment (moof+mdat) per
// track per Remux call, using internal/isobmff's box builders.
package fmp4

import (
	"bytes"
	"encoding/binary"
	"log/slog"

	"github.com/zsiec/transmux/internal/isobmff"
	"github.com/zsiec/transmux/internal/scte35"
	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

const (
	trackIDVideo = 1
	trackIDAudio = 2

	videoTimeScale = 90000 // matches the 90kHz MPEG clock PTS/DTS are already scaled from
	aacSamplesPerFrame = 1024
	mp3SamplesPerFrame = 1152
)

// Remuxer packages demuxed samples into fMP4 fragments.
type Remuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter

	seq uint32

	needsInit bool
	avcc, hvcc, asc []byte
	videoCodec, audioCodec string
	width, height          int
	sampleRate, channels   int
}

// New constructs a Remuxer; matches transmux.RemuxerFactory. The observer
// is accepted but currently unused — this remuxer has no parse errors of
// its own to report; malformed input never reaches it.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool, _ string) transmux.Remuxer {
	return &Remuxer{
		log:      slog.Default().With("component", "fmp4"),
		observer: observer,
	}
}

// ResetInitSegment forces the next Remux call to emit a fresh moov box.
func (r *Remuxer) ResetInitSegment(initSegmentData media.InitSegmentData, audioCodec, videoCodec string) {
	r.needsInit = true
	r.audioCodec, r.videoCodec = audioCodec, videoCodec
	r.avcc, r.hvcc, r.asc = nil, nil, nil
}

// ResetTimeStamp is a no-op: every fragment's tfdt is derived fresh from
// its samples' own absolute PTS/DTS, never from a running offset.
func (r *Remuxer) ResetTimeStamp(defaultInitPts int64) {}

// ResetNextTimestamp is a no-op for the same reason: there is no
// timeline-contiguity state carried between fragments to clear.
func (r *Remuxer) ResetNextTimestamp() {}

// Destroy releases no resources.
func (r *Remuxer) Destroy() {}

// Remux packages demuxed tracks into fMP4 fragments (and, when the init
// segment changed, a moov box).
func (r *Remuxer) Remux(audio *media.AudioTrack, video *media.VideoTrack, id3 *media.ID3Track, text *media.TextTrack,
	timeOffset float64, accurateTimeOffset, flush bool, id string) media.RemuxResult {

	var result media.RemuxResult

	if video != nil && len(video.Samples) > 0 {
		r.updateVideoConfig(video)
	}
	if audio != nil && len(audio.Samples) > 0 {
		r.updateAudioConfig(audio)
	}

	if r.needsInit && (r.hasVideo() || r.hasAudio()) {
		result.InitSegment = r.buildInitSegment()
		r.needsInit = false
	}

	if video != nil && len(video.Samples) > 0 {
		result.VideoData, result.Independent = r.buildVideoFragment(video)
		result.FirstPTS = video.Samples[0].PTS
		result.LastPTS = video.Samples[len(video.Samples)-1].PTS
	}
	if audio != nil && len(audio.Samples) > 0 {
		result.AudioData = r.buildAudioFragment(audio)
		if result.VideoData == nil {
			result.FirstPTS = audio.Samples[0].PTS
			result.LastPTS = audio.Samples[len(audio.Samples)-1].PTS
		}
	}
	if id3 != nil && len(id3.Samples) > 0 {
		result.ID3Data = r.buildID3SCTE35(id3)
	}
	if text != nil && len(text.Samples) > 0 {
		result.TextData = concatTextSamples(text)
	}

	return result
}

func (r *Remuxer) hasVideo() bool { return r.videoCodec == "h264" || r.videoCodec == "h265" }
func (r *Remuxer) hasAudio() bool { return r.audioCodec == "aac" || r.audioCodec == "mp3" }

func (r *Remuxer) updateVideoConfig(video *media.VideoTrack) {
	r.videoCodec = video.Codec
	r.width, r.height = video.Width, video.Height
	switch video.Codec {
	case "h264":
		if cfg := isobmff.BuildAVCDecoderConfig(video.SPS, video.PPS); cfg != nil && !bytes.Equal(cfg, r.avcc) {
			r.avcc = cfg
			r.needsInit = true
		}
	case "h265":
		if cfg := isobmff.BuildHEVCDecoderConfig(video.VPS, video.SPS, video.PPS); cfg != nil && !bytes.Equal(cfg, r.hvcc) {
			r.hvcc = cfg
			r.needsInit = true
		}
	}
}

func (r *Remuxer) updateAudioConfig(audio *media.AudioTrack) {
	r.audioCodec = audio.Codec
	if r.sampleRate != audio.SampleRate || r.channels != audio.Channels {
		r.sampleRate, r.channels = audio.SampleRate, audio.Channels
		r.needsInit = true
	}
	if audio.Codec == "aac" && r.asc == nil {
		r.asc = isobmff.BuildAudioSpecificConfig(audio.SampleRate, audio.Channels)
	}
}

func (r *Remuxer) buildInitSegment() []byte {
	var tracks []isobmff.Track
	if r.hasVideo() {
		tracks = append(tracks, isobmff.Track{
			ID: trackIDVideo, Video: true, Codec: r.videoCodec,
			TimeScale: videoTimeScale, Width: r.width, Height: r.height,
			AVCC: r.avcc, HVCC: r.hvcc,
		})
	}
	if r.hasAudio() {
		tracks = append(tracks, isobmff.Track{
			ID: trackIDAudio, Video: false, Codec: r.audioCodec,
			TimeScale: uint32(r.sampleRate), SampleRate: r.sampleRate, Channels: r.channels,
			ASC: r.asc,
		})
	}
	ftyp := isobmff.BuildFtyp()
	moov := isobmff.BuildMoov(tracks, 0)
	return append(append([]byte(nil), ftyp...), moov...)
}

func (r *Remuxer) buildVideoFragment(video *media.VideoTrack) ([]byte, bool) {
	samples := make([]isobmff.Sample, len(video.Samples))
	for i, s := range video.Samples {
		dtsTicks := microsToTicks(s.DTS, videoTimeScale)
		var duration uint32 = uint32(videoTimeScale / 30) // 30fps fallback for the final sample in a fragment
		if i+1 < len(video.Samples) {
			nextTicks := microsToTicks(video.Samples[i+1].DTS, videoTimeScale)
			if nextTicks > dtsTicks {
				duration = uint32(nextTicks - dtsTicks)
			}
		}
		cto := microsToTicks(s.PTS-s.DTS, videoTimeScale)
		samples[i] = isobmff.Sample{Duration: duration, CompositionTimeOffset: int32(cto), Sync: s.IsKeyframe, Data: s.Data}
	}

	baseMediaDecodeTime := uint64(microsToTicks(video.Samples[0].DTS, videoTimeScale))
	r.seq++
	frag := isobmff.BuildFragment(r.seq, trackIDVideo, baseMediaDecodeTime, samples)
	return frag, video.Samples[0].IsKeyframe
}

func (r *Remuxer) buildAudioFragment(audio *media.AudioTrack) []byte {
	samplesPerFrame := aacSamplesPerFrame
	if audio.Codec == "mp3" {
		samplesPerFrame = mp3SamplesPerFrame
	}

	samples := make([]isobmff.Sample, len(audio.Samples))
	for i, s := range audio.Samples {
		samples[i] = isobmff.Sample{Duration: uint32(samplesPerFrame), Sync: true, Data: s.Data}
	}

	baseMediaDecodeTime := uint64(microsToTicks(audio.Samples[0].PTS, int64(audio.SampleRate)))
	r.seq++
	return isobmff.BuildFragment(r.seq, trackIDAudio, baseMediaDecodeTime, samples)
}

// microsToTicks converts a microsecond value into a timescale's ticks.
func microsToTicks(micros int64, timescale int64) int64 {
	return micros * timescale / 1000000
}

// buildID3SCTE35 wraps each SCTE-35 splice_info_section sample as a PRIV
// frame inside its own minimal ID3v2.3 tag, concatenated in order — the
// convention HLS.js uses to carry timed metadata through a fragmented-MP4
// pipeline without a dedicated box type. Each section is decoded and
// re-encoded first: a round trip through the parser catches a malformed
// section before it reaches a player rather than forwarding it blind, and
// normalizes away any trailing alignment_stuffing bytes the original
// transport padded the section with.
func (r *Remuxer) buildID3SCTE35(id3 *media.ID3Track) []byte {
	var out []byte
	for _, s := range id3.Samples {
		payload := s.Data
		if sis, err := scte35.DecodeBytes(s.Data); err == nil {
			if reencoded, err := sis.Encode(); err == nil {
				payload = reencoded
			} else if r.log != nil {
				r.log.Warn("scte35: re-encode failed, forwarding original bytes", "error", err)
			}
		} else if r.log != nil {
			r.log.Warn("scte35: section failed to decode, forwarding original bytes", "error", err)
		}
		out = append(out, buildID3PRIVTag("SCTE35", payload)...)
	}
	return out
}

func buildID3PRIVTag(owner string, payload []byte) []byte {
	frameBody := append(append([]byte(owner), 0x00), payload...)
	frameHeader := make([]byte, 10)
	copy(frameHeader[0:4], "PRIV")
	binary.BigEndian.PutUint32(frameHeader[4:8], uint32(len(frameBody)))

	tagHeader := []byte{'I', 'D', '3', 3, 0, 0}
	size := len(frameHeader) + len(frameBody)
	tagHeader = append(tagHeader, synchSafe(size)...)

	out := append([]byte(nil), tagHeader...)
	out = append(out, frameHeader...)
	out = append(out, frameBody...)
	return out
}

// synchSafe encodes size as a 4-byte ID3v2 synch-safe integer (7 bits per
// byte, high bit always 0).
func synchSafe(size int) []byte {
	return []byte{
		byte((size >> 21) & 0x7F),
		byte((size >> 14) & 0x7F),
		byte((size >> 7) & 0x7F),
		byte(size & 0x7F),
	}
}

func concatTextSamples(text *media.TextTrack) []byte {
	var out []byte
	for _, s := range text.Samples {
		out = append(out, s.Data...)
		out = append(out, '\n')
	}
	return out
}
