package transmux

import (
	"context"

	"github.com/zsiec/transmux/media"
)

// Demuxer is the contract a concrete container demuxer (TS, fMP4, ADTS, MP3)
// must satisfy. The orchestrator owns exactly one Demuxer instance at a time
// and never inspects its internal state.
type Demuxer interface {
	// Demux parses bytes accumulated since the previous call (or since
	// ResetContiguity/ResetInitSegment) and returns any complete samples.
	// flush indicates non-progressive delivery: the caller guarantees no
	// more bytes follow for this segment within this call.
	Demux(data []byte, timeOffset float64, contiguous, flush bool) (media.DemuxResult, error)

	// DemuxSampleAES behaves like Demux but decrypts individual samples
	// internally using per-sample SAMPLE-AES keys; it is always invoked
	// asynchronously by the orchestrator.
	DemuxSampleAES(ctx context.Context, data []byte, kd KeyData, timeOffset float64) (media.DemuxResult, error)

	// Flush drains any buffered partial sample at end of segment.
	Flush(timeOffset float64) (media.DemuxResult, error)

	// ResetInitSegment seeds the demuxer with fresh codec/init-segment state.
	// trackDuration is the configured segment duration in seconds.
	ResetInitSegment(initSegmentData media.InitSegmentData, audioCodec, videoCodec string, trackDuration float64)

	// ResetTimeStamp clears any cached timestamp-continuity state, seeding
	// the next PTS/DTS computation from defaultInitPts.
	ResetTimeStamp(defaultInitPts int64)

	// ResetContiguity clears state that assumes the next push continues the
	// previous segment's timeline (e.g. buffered partial NAL/PES data).
	ResetContiguity()

	// Destroy releases any resources held by the demuxer.
	Destroy()
}

// Remuxer is the contract a concrete remuxer (to-fMP4 or passthrough) must
// satisfy. The orchestrator owns exactly one Remuxer instance at a time,
// always of the type paired with the current Demuxer by the probe table.
type Remuxer interface {
	// Remux packages demuxed tracks into fMP4 fragments (and, when the init
	// segment changed, a moov box). flush marks the final remux call of a
	// segment (end-of-segment fragment); id is the caller-supplied chunk
	// identifier threaded through for diagnostics.
	Remux(audio *media.AudioTrack, video *media.VideoTrack, id3 *media.ID3Track, text *media.TextTrack,
		timeOffset float64, accurateTimeOffset, flush bool, id string) media.RemuxResult

	// ResetInitSegment forces the next Remux call to emit a fresh moov box.
	ResetInitSegment(initSegmentData media.InitSegmentData, audioCodec, videoCodec string)

	// ResetTimeStamp seeds the next output timestamp from defaultInitPts.
	ResetTimeStamp(defaultInitPts int64)

	// ResetNextTimestamp clears timeline-contiguity state so the next
	// fragment is not assumed to follow the previous one directly.
	ResetNextTimestamp()

	// Destroy releases any resources held by the remuxer.
	Destroy()
}

// DemuxerFactory constructs a new Demuxer instance. observer receives
// fatal/warning events; typeSupported is an opaque capability descriptor
// forwarded from the orchestrator's construction config.
type DemuxerFactory func(observer EventEmitter, config TransmuxConfig, typeSupported map[string]bool) Demuxer

// RemuxerFactory constructs a new Remuxer instance. vendor is an opaque
// capability descriptor (e.g. user-agent family) forwarded from the
// orchestrator's construction config.
type RemuxerFactory func(observer EventEmitter, config TransmuxConfig, typeSupported map[string]bool, vendor string) Remuxer

// Encryption method identifiers recognized on a LevelKey/KeyData.
const (
	MethodAES128    = "AES-128"
	MethodSampleAES = "SAMPLE-AES"
)

// LevelKey is the caller-supplied key descriptor for a playlist level, as
// parsed from an EXT-X-KEY tag. A zero-value LevelKey (or one missing any of
// Method/Key/IV) indicates a clear segment.
type LevelKey struct {
	Method string
	Key    []byte
	IV     []byte
}

// KeyData is the decryption directive derived from a LevelKey for a single
// push. An empty Method means the segment is treated as clear.
type KeyData struct {
	Method string
	Key    []byte
	IV     []byte
}

// deriveKeyData implements the §3 rule: a LevelKey only yields KeyData when
// all of key, iv, and method are present and the pushed data is non-empty;
// otherwise the segment is treated as clear.
func deriveKeyData(lk *LevelKey, dataLen int) KeyData {
	if lk == nil || dataLen == 0 {
		return KeyData{}
	}
	if lk.Method == "" || len(lk.Key) == 0 || len(lk.IV) == 0 {
		return KeyData{}
	}
	return KeyData{Method: lk.Method, Key: lk.Key, IV: lk.IV}
}

// TimingInfo records the monotonic millisecond timestamps bracketing one
// push or flush execution, stamped by the orchestrator.
type TimingInfo struct {
	ExecuteStart int64
	ExecuteEnd   int64
}

// ChunkMetadata is the caller's cookie, opaque to the core except for the
// Transmuxing timing fields, which the orchestrator stamps on every push and
// flush. Sequence/Part/Level are carried through unexamined and returned
// alongside each Result so the caller can correlate it with its chunk.
type ChunkMetadata struct {
	Sequence    int
	Part        int
	Level       int
	Transmuxing TimingInfo
}

// Clone returns a shallow copy, used so that flush can stamp per-residue
// metadata without mutating the caller's original cookie.
func (c *ChunkMetadata) Clone() *ChunkMetadata {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Result pairs a remux payload with the chunk metadata it was produced for.
type Result struct {
	ChunkMeta *ChunkMetadata
	Remux     media.RemuxResult
}

func emptyResult(meta *ChunkMetadata) *Result {
	return &Result{ChunkMeta: meta}
}

// EventEmitter is the one-way event bus shared with the host. Payload shapes
// are the caller's concern; the core only ever emits fatal parsing-error
// notifications through it (see ErrorEvent).
type EventEmitter interface {
	Emit(name string, payload any)
}

// ErrorEvent is the payload the core emits when content cannot be
// identified at flush time (FRAG_PARSING_ERROR).
type ErrorEvent struct {
	Type    string
	Details string
	Fatal   bool
	Reason  string
}

// Event names used by the core.
const (
	EventError = "error"

	ErrorTypeMedia             = "mediaError"
	ErrorDetailsFragParsing    = "fragParsingError"
)
