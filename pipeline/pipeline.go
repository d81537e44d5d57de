// Package pipeline is the composition root: it is the one place in this
// module allowed to import both package transmux and every concrete
// container/remux package, since wiring them together is its entire job.
// Nothing under transmux/ or container/ or remux/ imports this package.
package pipeline

import (
	"log/slog"

	"github.com/zsiec/transmux/container/adts"
	"github.com/zsiec/transmux/container/fmp4"
	"github.com/zsiec/transmux/container/mp3"
	"github.com/zsiec/transmux/container/ts"
	remuxfmp4 "github.com/zsiec/transmux/remux/fmp4"
	"github.com/zsiec/transmux/remux/passthrough"
	"github.com/zsiec/transmux/transmux"
)

// DefaultProbeTable returns the probe entries in precedence order: fMP4
// segments pass through unchanged, MPEG-TS and raw ADTS/MP3 elementary
// streams are remuxed to fMP4. fMP4's entry is checked first since its probe
// (ftyp/moov/moof box signature) is the most specific; ADTS/MP3 are checked
// last since their probes are the loosest (a handful of sync-word bits).
func DefaultProbeTable() []transmux.ProbeEntry {
	return []transmux.ProbeEntry{
		{
			Name:               "fmp4",
			Probe:              fmp4.Probe,
			MinProbeByteLength: fmp4.MinProbeByteLength,
			NewDemuxer:         fmp4.New,
			NewRemuxer:         passthrough.New,
		},
		{
			Name:               "ts",
			Probe:              ts.Probe,
			MinProbeByteLength: ts.MinProbeByteLength,
			NewDemuxer:         ts.New,
			NewRemuxer:         remuxfmp4.New,
		},
		{
			Name:               "aac",
			Probe:              adts.Probe,
			MinProbeByteLength: adts.MinProbeByteLength,
			NewDemuxer:         adts.New,
			NewRemuxer:         remuxfmp4.New,
		},
		{
			Name:               "mp3",
			Probe:              mp3.Probe,
			MinProbeByteLength: mp3.MinProbeByteLength,
			NewDemuxer:         mp3.New,
			NewRemuxer:         remuxfmp4.New,
		},
	}
}

// DefaultFallback is the entry used when nothing in DefaultProbeTable
// matches: pass the bytes through as-is rather than stall waiting for a
// format that will never be identified.
func DefaultFallback() transmux.ProbeEntry {
	return transmux.ProbeEntry{
		Name:               "passthrough",
		Probe:              func([]byte) bool { return true },
		MinProbeByteLength: 0,
		NewDemuxer:         fmp4.New,
		NewRemuxer:         passthrough.New,
	}
}

// New builds a Transmuxer wired to the default probe table. emitter and
// clock are forwarded to transmux.New unchanged (both may be nil); log
// defaults to slog.Default() when nil.
func New(opts transmux.Options, emitter transmux.EventEmitter, clock transmux.Clock, log *slog.Logger) *transmux.Transmuxer {
	if log == nil {
		log = slog.Default()
	}
	return transmux.New(opts, DefaultProbeTable(), DefaultFallback(), emitter, clock, log)
}
