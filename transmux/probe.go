package transmux

// ProbeEntry pairs a container family's detection predicate with the
// factories that build its demuxer and remuxer. The probe table is a fixed,
// ordered list of these; Configure-time wiring (see package pipeline)
// supplies the concrete factories so that this package never imports a
// concrete container implementation.
type ProbeEntry struct {
	// Name identifies the container family ("fmp4", "ts", "aac", "mp3",
	// "passthrough"); used only for logging and to detect a family change
	// when deciding whether existing demuxer/remuxer instances can be reused.
	Name string

	// Probe reports whether data looks like this entry's container format.
	// Called with whatever bytes have accumulated so far, which may be fewer
	// than MinProbeByteLength.
	Probe func(data []byte) bool

	// MinProbeByteLength is the minimum byte count this entry's Probe needs
	// to decide reliably.
	MinProbeByteLength int

	NewDemuxer DemuxerFactory
	NewRemuxer RemuxerFactory
}

// probeTableMinLength returns the maximum MinProbeByteLength across all
// entries, floored at 1024 bytes per §4.2.
func probeTableMinLength(table []ProbeEntry) int {
	min := 1024
	for _, e := range table {
		if e.MinProbeByteLength > min {
			min = e.MinProbeByteLength
		}
	}
	return min
}

// selectOrFallback scans the table in order and returns the first entry
// whose Probe matches. If none match, it returns the fallback entry (the
// table's passthrough pair) and ok=false so the caller can log a warning;
// this makes the pipeline always make forward progress on unidentified
// content rather than stalling, at the cost of possibly garbled output that
// downstream will reject.
func selectOrFallback(table []ProbeEntry, fallback ProbeEntry, data []byte) (ProbeEntry, bool) {
	for _, e := range table {
		if e.Probe != nil && e.Probe(data) {
			return e, true
		}
	}
	return fallback, false
}
