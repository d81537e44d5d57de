package transmux

import (
	"context"
	"fmt"
	"log/slog"
)

// Transmuxer is the C5 orchestrator: it owns the chunk cache (C1), the probe
// table (C2), the decrypter adapter (C3), and the transmux config/state (C4),
// and drives exactly one Demuxer/Remuxer pair selected by probing. One
// Transmuxer is created per playlist level and reused across every segment
// pushed through that level, mirroring hls.js's TransmuxerInterface lifecycle.
type Transmuxer struct {
	log      *slog.Logger
	emitter  EventEmitter
	clock    Clock
	opts     Options
	table    []ProbeEntry
	fallback ProbeEntry

	cache     chunkCache
	decrypter decrypterAdapter

	config      TransmuxConfig
	configured  bool
	state       TransmuxState
	currentName string

	demuxer Demuxer
	remuxer Remuxer

	pending     bool          // an async decrypt is in flight; Invariant 1 (§3)
	pendingDone chan struct{} // closed when the in-flight decrypt resolves
	destroyed   bool
}

// New constructs a Transmuxer. table is scanned in order by probe; fallback
// is the passthrough entry used when nothing in table matches and at least
// probeTableMinLength(table) bytes are available. emitter may be nil (events
// are then dropped); clock and log default to the system clock and
// slog.Default() when nil.
func New(opts Options, table []ProbeEntry, fallback ProbeEntry, emitter EventEmitter, clock Clock, log *slog.Logger) *Transmuxer {
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transmuxer{
		log:      log,
		emitter:  emitter,
		clock:    clock,
		opts:     opts,
		table:    table,
		fallback: fallback,
	}
}

// Configure installs a new TransmuxConfig (§4.5.1). It never touches the
// current demuxer/remuxer pair directly — the next Push reconciles them via
// resetInitSegment/resetInitialTimestamp once probing (re)selects a family —
// but it does reset the decrypter's cipher chaining state, since a
// reconfigure always precedes a new, unrelated stream of segments.
func (t *Transmuxer) Configure(config TransmuxConfig) error {
	if t.destroyed {
		return ErrDestroyed
	}
	t.config = config
	t.configured = true
	t.decrypter.reset()
	return nil
}

// Push ingests one chunk of segment bytes (§4.5.2). It returns either a
// *Result (the chunk resolved synchronously — possibly empty, if bytes were
// absorbed into the pre-probe cache or consumed as an encrypted residue with
// no plaintext yet available) or a *ResultFuture (the chunk requires
// asynchronous decryption), never both.
//
// state, if non-nil, replaces the orchestrator's held continuity state
// before this push is processed; pass nil to reuse the state left by the
// previous push (see advanceState).
func (t *Transmuxer) Push(ctx context.Context, data []byte, key *LevelKey, meta *ChunkMetadata, state *TransmuxState) (*Result, *ResultFuture, error) {
	if t.destroyed {
		return nil, nil, ErrDestroyed
	}
	if !t.configured {
		return nil, nil, ErrNotConfigured
	}
	if t.pending {
		return nil, nil, ErrDecryptionInFlight
	}
	if meta == nil {
		meta = &ChunkMetadata{}
	}
	if state != nil {
		t.state = *state
	}
	meta.Transmuxing.ExecuteStart = t.clock.NowMillis()

	kd := deriveKeyData(key, len(data))
	return t.dispatchEncryption(ctx, data, kd, meta)
}

// dispatchEncryption implements the §4.5.2 step-3 branch on KeyData.Method:
// AES-128 full-segment decryption (software, synchronous, or hardware,
// asynchronous) versus clear/SAMPLE-AES data, which proceeds straight to
// continuePush.
func (t *Transmuxer) dispatchEncryption(ctx context.Context, data []byte, kd KeyData, meta *ChunkMetadata) (*Result, *ResultFuture, error) {
	if kd.Method != MethodAES128 {
		return t.continuePush(ctx, data, kd, meta)
	}

	if t.opts.EnableSoftwareAES {
		plain, err := t.decrypter.softwareDecrypt(data, kd.Key, kd.IV)
		if err != nil {
			return nil, nil, err
		}
		if plain == nil {
			// No full block decryptable yet; bytes are buffered inside the
			// decrypter, not lost. This is not the same as "nothing to do":
			// the caller still gets a (empty) Result, not an error.
			meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
			return emptyResult(meta), nil, nil
		}
		return t.continuePush(ctx, plain, KeyData{}, meta)
	}

	t.pending = true
	t.pendingDone = make(chan struct{})
	fut := newResultFuture()
	ch := t.decrypter.webCryptoDecrypt(ctx, data, kd.Key, kd.IV)
	go func() {
		out := <-ch
		if out.err != nil {
			t.pending = false
			close(t.pendingDone)
			fut.resolve(nil, out.err)
			return
		}
		// t.pending stays true across continuePush: a concurrent Flush
		// (§9 Design Notes) must wait for this push's mutation of
		// t.demuxer/t.remuxer/t.state to finish before it reads them.
		res, _, err := t.continuePush(ctx, out.plaintext, KeyData{}, meta)
		t.pending = false
		close(t.pendingDone)
		fut.resolve(res, err)
	}()
	return nil, fut, nil
}

// continuePush implements §4.5.2 steps 4 through 8: the reset policy, the
// probe/accumulation loop, the demux+remux dispatch (including the
// SAMPLE-AES asynchronous branch), state advance, and the final timing
// stamp. data is always clear at this point: either it never was encrypted,
// or it was AES-128-decrypted by dispatchEncryption.
func (t *Transmuxer) continuePush(ctx context.Context, data []byte, kd KeyData, meta *ChunkMetadata) (*Result, *ResultFuture, error) {
	if t.destroyed {
		// An async AES-128/SAMPLE-AES decrypt can still resolve after
		// Destroy ran (§5 Concurrency/Resource Model); Destroy already
		// nilled t.demuxer/t.remuxer, so resolving into them here would
		// silently revive a destroyed orchestrator. Make it a no-op.
		return nil, nil, ErrDestroyed
	}
	t.applyResetPolicy()

	if t.needsProbing() {
		probeInput := append(t.cache.flush(), data...)

		if !t.configureTransmuxer(probeInput) {
			t.cache.append(probeInput)
			meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
			return emptyResult(meta), nil, nil
		}
		data = probeInput
	}

	if kd.Method == MethodSampleAES {
		// Per-sample SAMPLE-AES demuxing is the other asynchronous
		// suspension point alongside hardware AES-128 (§3 Invariant 1); it
		// must hold t.pending for the same reason dispatchEncryption's
		// webCryptoDecrypt branch does — a concurrent Push or Flush must not
		// observe t.state/t.demuxer/t.remuxer mid-mutation.
		t.pending = true
		t.pendingDone = make(chan struct{})
		fut := newResultFuture()
		go func() {
			res, err := t.finishSampleAES(ctx, data, kd, meta)
			t.pending = false
			close(t.pendingDone)
			fut.resolve(res, err)
		}()
		return nil, fut, nil
	}

	demuxed, err := t.demuxer.Demux(data, t.state.TimeOffset, t.state.Contiguous, !t.opts.Progressive)
	if err != nil {
		return nil, nil, fmt.Errorf("transmux: demux: %w", err)
	}
	rr := t.remuxer.Remux(demuxed.Audio, demuxed.Video, demuxed.ID3, demuxed.Text,
		t.state.TimeOffset, t.state.AccurateTimeOffset, false, chunkID(meta))

	t.advanceState()
	meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
	return &Result{ChunkMeta: meta, Remux: rr}, nil, nil
}

// finishSampleAES runs the SAMPLE-AES demux/remux pair off the calling
// goroutine; SAMPLE-AES decryption is always modeled as asynchronous (§4.4)
// regardless of Options.EnableSoftwareAES, since per-sample decryption keys
// off the demuxer's own parse of the elementary stream rather than a single
// whole-segment buffer.
func (t *Transmuxer) finishSampleAES(ctx context.Context, data []byte, kd KeyData, meta *ChunkMetadata) (*Result, error) {
	demuxed, err := t.demuxer.DemuxSampleAES(ctx, data, kd, t.state.TimeOffset)
	if err != nil {
		return nil, fmt.Errorf("transmux: sample-aes demux: %w", err)
	}
	rr := t.remuxer.Remux(demuxed.Audio, demuxed.Video, demuxed.ID3, demuxed.Text,
		t.state.TimeOffset, t.state.AccurateTimeOffset, false, chunkID(meta))

	t.advanceState()
	meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
	return &Result{ChunkMeta: meta, Remux: rr}, nil
}

// applyResetPolicy implements §4.5.2 step 4: discontinuity, a track switch or
// an init segment change forces a fresh init segment; discontinuity or an
// init segment change (a track switch keeps the timeline) also reseeds the
// initial timestamp; anything non-contiguous
// breaks demuxer-level continuity assumptions (buffered partial NAL/PES
// state).
func (t *Transmuxer) applyResetPolicy() {
	if t.state.Discontinuity || t.state.TrackSwitch || t.state.InitSegmentChange {
		t.resetInitSegment()
	}
	if t.state.Discontinuity || t.state.InitSegmentChange {
		t.resetInitialTimestamp()
	}
	if !t.state.Contiguous {
		t.resetContiguity()
	}
}

// needsProbing reports whether the probe/selection step (§4.5.2 step 5) must
// run before data can be demuxed: no pair is selected yet, or a
// discontinuity/track switch means the previous selection can no longer be
// trusted.
func (t *Transmuxer) needsProbing() bool {
	return t.demuxer == nil || t.remuxer == nil || t.state.Discontinuity || t.state.TrackSwitch
}

// configureTransmuxer runs the probe table against data (prefixed with any
// drained cache) and, on a confident match (a real probe matched, or enough
// bytes accumulated to commit to the passthrough fallback), wires up the
// selected Demuxer/Remuxer pair. Returns false when there isn't yet enough
// data to decide, in which case the caller must re-buffer data and wait for
// more.
func (t *Transmuxer) configureTransmuxer(data []byte) bool {
	entry, matched := selectOrFallback(t.table, t.fallback, data)
	if !matched {
		if len(data) < probeTableMinLength(t.table) {
			return false
		}
		t.log.Warn("transmux: no container matched; falling back to passthrough", "bytes", len(data))
	}

	if entry.Name != t.currentName {
		if t.demuxer != nil {
			t.demuxer.Destroy()
		}
		if t.remuxer != nil {
			t.remuxer.Destroy()
		}
		t.demuxer = entry.NewDemuxer(t.emitter, t.config, t.opts.TypeSupported)
		t.remuxer = entry.NewRemuxer(t.emitter, t.config, t.opts.TypeSupported, t.opts.Vendor)
		t.currentName = entry.Name
	}

	// Unconditional: a freshly selected pair has no init state, and a
	// reused pair must still pick up the most recent Configure.
	t.resetInitSegment()
	t.resetInitialTimestamp()
	return true
}

func (t *Transmuxer) resetInitSegment() {
	if t.demuxer != nil {
		t.demuxer.ResetInitSegment(t.config.InitSegmentData, t.config.AudioCodec, t.config.VideoCodec, t.config.Duration)
	}
	if t.remuxer != nil {
		t.remuxer.ResetInitSegment(t.config.InitSegmentData, t.config.AudioCodec, t.config.VideoCodec)
	}
}

func (t *Transmuxer) resetInitialTimestamp() {
	var pts int64
	if t.config.HasDefaultPts {
		pts = t.config.DefaultInitPts
	}
	if t.demuxer != nil {
		t.demuxer.ResetTimeStamp(pts)
	}
	if t.remuxer != nil {
		t.remuxer.ResetTimeStamp(pts)
	}
}

func (t *Transmuxer) resetContiguity() {
	if t.demuxer != nil {
		t.demuxer.ResetContiguity()
	}
	if t.remuxer != nil {
		t.remuxer.ResetNextTimestamp()
	}
}

// advanceState implements §4.5.2 step 7: a successful push makes every
// subsequent push (until the caller says otherwise) discontinuity-free,
// contiguous, and not a track switch.
func (t *Transmuxer) advanceState() {
	t.state.Contiguous = true
	t.state.Discontinuity = false
	t.state.TrackSwitch = false
	t.state.InitSegmentChange = false
}

// Flush drains any buffered state at end-of-segment (§4.5.3): residue left
// in the AES decrypter, bytes still sitting in the pre-probe cache, and
// whatever the current demuxer/remuxer pair itself buffers internally. It
// returns either the ordered list of Results produced, or a *ResultsFuture
// if an async decrypt in flight from the last Push must resolve first; any
// async work started by this Flush itself is awaited before it returns.
func (t *Transmuxer) Flush(ctx context.Context, meta *ChunkMetadata) ([]*Result, *ResultsFuture, error) {
	if t.destroyed {
		return nil, nil, ErrDestroyed
	}
	if !t.configured {
		return nil, nil, ErrNotConfigured
	}
	if meta == nil {
		meta = &ChunkMetadata{}
	}

	if t.pending {
		fut := newResultsFuture()
		wait := t.pendingDone
		go func() {
			<-wait
			results, _, err := t.Flush(ctx, meta)
			fut.resolve(results, err)
		}()
		return nil, fut, nil
	}

	var results []*Result

	if residue, err := t.decrypter.flushSoftware(); err != nil {
		return nil, nil, fmt.Errorf("transmux: aes flush: %w", err)
	} else if len(residue) > 0 {
		res, fut, err := t.continuePush(ctx, residue, KeyData{}, meta.Clone())
		if err != nil {
			return nil, nil, err
		}
		if fut != nil {
			r, err := fut.Wait()
			if err != nil {
				return nil, nil, err
			}
			if r != nil {
				results = append(results, r)
			}
		} else if res != nil {
			results = append(results, res)
		}
	}

	if t.demuxer == nil || t.remuxer == nil {
		if cached := t.cache.len(); cached >= probeTableMinLength(t.table) {
			data := t.cache.flush()
			if t.emitter != nil {
				t.emitter.Emit(EventError, ErrorEvent{
					Type:    ErrorTypeMedia,
					Details: ErrorDetailsFragParsing,
					Fatal:   true,
					Reason:  fmt.Sprintf("unable to identify container after %d bytes", len(data)),
				})
			}
			meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
			results = append(results, emptyResult(meta))
			return results, nil, nil
		}
		// Fewer bytes than any probe needs ever arrived for this segment;
		// nothing more can be done with it. Same placeholder-result shape
		// as the fatal branch above: Flush always returns at least one
		// Result per call, whether or not any container was identified.
		t.cache.reset()
		meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
		results = append(results, emptyResult(meta))
		return results, nil, nil
	}

	demuxed, err := t.demuxer.Flush(t.state.TimeOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("transmux: demux flush: %w", err)
	}
	rr := t.remuxer.Remux(demuxed.Audio, demuxed.Video, demuxed.ID3, demuxed.Text,
		t.state.TimeOffset, t.state.AccurateTimeOffset, true, chunkID(meta))

	meta.Transmuxing.ExecuteEnd = t.clock.NowMillis()
	results = append(results, &Result{ChunkMeta: meta, Remux: rr})
	return results, nil, nil
}

// chunkID derives the remuxer's opaque "id" parameter from chunk metadata.
func chunkID(meta *ChunkMetadata) string {
	if meta == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d", meta.Sequence, meta.Part)
}

// Destroy releases the current demuxer/remuxer pair and marks the
// Transmuxer unusable; any call after Destroy returns ErrDestroyed.
func (t *Transmuxer) Destroy() {
	if t.destroyed {
		return
	}
	if t.demuxer != nil {
		t.demuxer.Destroy()
		t.demuxer = nil
	}
	if t.remuxer != nil {
		t.remuxer.Destroy()
		t.remuxer = nil
	}
	t.destroyed = true
}
