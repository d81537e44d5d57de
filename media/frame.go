// Package media defines the sample and track types that flow between a
// container demuxer and the fMP4/passthrough remuxer inside the transmux
// pipeline. Timestamps are carried in microseconds throughout.
package media

// VideoSample is a single decodable access unit (one picture), already
// converted to AVC1/HVC1 length-prefixed NALU framing ready for muxing into
// an mdat box.
type VideoSample struct {
	PTS        int64
	DTS        int64
	IsKeyframe bool
	Data       []byte
}

// AudioSample is a single AAC or MP3 frame payload (no ADTS/frame header),
// ready to be written into an mdat box.
type AudioSample struct {
	PTS  int64
	Data []byte
}

// ID3Sample carries raw timed-metadata bytes (e.g. an SCTE-35
// splice_info_section) to be wrapped as an ID3v2 PRIV frame on the output
// id3 track.
type ID3Sample struct {
	PTS  int64
	Data []byte
}

// TextSample carries raw caption/subtitle bytes (e.g. a decoded CEA-608/708
// line) to be surfaced on the output text track.
type TextSample struct {
	PTS  int64
	Data []byte
}

// VideoTrack describes the video elementary stream extracted from a single
// demux call, including the parameter sets needed to build a decoder
// configuration record.
type VideoTrack struct {
	Codec   string // "h264" or "h265"
	Width   int
	Height  int
	SPS     []byte
	PPS     []byte
	VPS     []byte // h265 only
	Samples []VideoSample
}

// AudioTrack describes the audio elementary stream extracted from a single
// demux call.
type AudioTrack struct {
	Codec      string // "aac" or "mp3"
	SampleRate int
	Channels   int
	Samples    []AudioSample
}

// ID3Track carries timed-metadata samples extracted from a single demux call.
type ID3Track struct {
	Samples []ID3Sample
}

// TextTrack carries caption/subtitle samples extracted from a single demux
// call.
type TextTrack struct {
	Samples []TextSample
}

// DemuxResult is the output of one Demuxer.Demux/Flush/DemuxSampleAES call.
// Any of the four tracks may be nil if the container carried no data for
// that elementary stream on this call.
type DemuxResult struct {
	Audio *AudioTrack
	Video *VideoTrack
	ID3   *ID3Track
	Text  *TextTrack
}

// Empty reports whether the result carries no samples on any track.
func (r DemuxResult) Empty() bool {
	return (r.Audio == nil || len(r.Audio.Samples) == 0) &&
		(r.Video == nil || len(r.Video.Samples) == 0) &&
		(r.ID3 == nil || len(r.ID3.Samples) == 0) &&
		(r.Text == nil || len(r.Text.Samples) == 0)
}

// RemuxResult is the output of a single Remuxer.Remux call: an optional
// freshly built initialization segment (moov box) plus zero or more
// fragment buffers (moof+mdat), one per track that produced samples.
type RemuxResult struct {
	InitSegment []byte // non-nil only when the init segment changed on this call
	AudioData   []byte
	VideoData   []byte
	ID3Data     []byte
	TextData    []byte
	Independent bool // true if VideoData starts with a keyframe
	FirstPTS    int64
	LastPTS     int64
}

// Empty reports whether the result carries no init segment and no media
// payload on any track.
func (r RemuxResult) Empty() bool {
	return len(r.InitSegment) == 0 && len(r.AudioData) == 0 &&
		len(r.VideoData) == 0 && len(r.ID3Data) == 0 && len(r.TextData) == 0
}

// InitSegmentData carries caller-supplied out-of-band initialization bytes
// (e.g. an EXT-X-MAP fMP4 init segment) keyed by track type ("audio",
// "video"). It is opaque to the orchestrator and passed through verbatim to
// Demuxer/Remuxer ResetInitSegment calls.
type InitSegmentData map[string][]byte
