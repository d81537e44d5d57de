// Package transmux implements a stateful media segment transmuxer: it
// ingests encrypted or plain-text adaptive-streaming segment bytes, probes
// the container format, decrypts (AES-128 or SAMPLE-AES), demuxes elementary
// streams, and remuxes them into fragmented MP4 ready for a browser media
// source buffer.
//
// The central type is [Transmuxer]. Callers drive it with Configure, Push,
// and Flush, mirroring the lifecycle of one playlist-level worker: one
// Transmuxer per quality level, reused across every segment of that level's
// playback.
//
// Concrete container demuxers ([container/ts], [container/fmp4],
// [container/adts], [container/mp3]) and remuxers ([remux]) are external
// collaborators; Transmuxer owns instances of them through the [Demuxer] and
// [Remuxer] interfaces and never inspects their internals.
package transmux
