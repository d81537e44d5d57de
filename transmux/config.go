package transmux

import "github.com/zsiec/transmux/media"

// TransmuxConfig is set by Configure and held immutable between Configure
// calls. It never changes as a side effect of Push.
type TransmuxConfig struct {
	AudioCodec      string
	VideoCodec      string
	InitSegmentData media.InitSegmentData
	Duration        float64
	DefaultInitPts  int64
	HasDefaultPts   bool
}

// TransmuxState carries the per-push continuity flags and timing the caller
// supplies for a chunk. After a successful push the orchestrator mutates its
// own copy so that later chunks of the same segment skip redundant resets
// (see Transmuxer.advanceState); the caller's State value is read-only input.
type TransmuxState struct {
	Discontinuity      bool
	Contiguous         bool
	AccurateTimeOffset bool
	TrackSwitch        bool
	TimeOffset         float64
	InitSegmentChange  bool
}

// Options configures construction-time behavior of a Transmuxer.
type Options struct {
	// EnableSoftwareAES selects the synchronous, progressive software AES-128
	// decrypter over the asynchronous hardware-backed one.
	EnableSoftwareAES bool

	// Progressive indicates the caller delivers a segment across multiple
	// chunked pushes rather than as one complete buffer. It is passed
	// inverted to Demuxer.Demux as the flush flag.
	Progressive bool

	// TypeSupported is an opaque MSE capability descriptor forwarded to
	// demuxer/remuxer factories.
	TypeSupported map[string]bool

	// Vendor is an opaque capability descriptor (e.g. user-agent family)
	// forwarded to remuxer factories.
	Vendor string
}
