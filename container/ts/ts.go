// Package ts implements the MPEG-TS demuxer: PAT/PMT discovery, PES
// reassembly, SCTE-35 splice_info_section extraction, and CEA-608/708
// closed captions decoded from H.264/H.265 SEI payloads.
package ts

import (
	"context"
	"encoding/binary"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/ccx"

	"github.com/zsiec/transmux/internal/aes128"
	"github.com/zsiec/transmux/internal/codecs"
	"github.com/zsiec/transmux/internal/isobmff"
	"github.com/zsiec/transmux/internal/mpegts"
	"github.com/zsiec/transmux/internal/scte35"
	"github.com/zsiec/transmux/media"
	"github.com/zsiec/transmux/transmux"
)

const (
	streamTypeH264   = 0x1B
	streamTypeH265   = 0x24
	streamTypeAAC    = 0x0F
	streamTypeMPEG1  = 0x03
	streamTypeMPEG2  = 0x04
	streamTypeSCTE35 = 0x86
)

// MinProbeByteLength is the minimum number of bytes Probe needs: three
// 188-byte packets, enough to confirm sync without over-committing on a
// single corrupt packet.
const MinProbeByteLength = 188 * 3

// Probe reports whether data opens with the TS sync byte and, when enough
// bytes are available, stays in sync every 188 bytes.
func Probe(data []byte) bool {
	if len(data) == 0 || data[0] != 0x47 {
		return false
	}
	for offset := 188; offset < len(data); offset += 188 {
		if data[offset] != 0x47 {
			return false
		}
	}
	return true
}

// Demuxer parses one elementary video and one elementary audio stream (plus
// SCTE-35 and captions) out of an MPEG-TS byte stream, across however many
// Demux calls a segment's bytes arrive in.
type Demuxer struct {
	log      *slog.Logger
	observer transmux.EventEmitter
	stream   *mpegts.StreamDemuxer

	videoPID   uint16
	isHEVC     bool
	audioPID   uint16
	audioMP3   bool
	scte35PID  uint16

	sps, pps, vps []byte

	cea608   map[int]*ccx.CEA608Decoder
	cea708   map[int]*ccx.CEA708Service
	dtvccBuf []byte

	sampleAESCounter uint64
}

// New constructs a Demuxer; matches transmux.DemuxerFactory.
func New(observer transmux.EventEmitter, _ transmux.TransmuxConfig, _ map[string]bool) transmux.Demuxer {
	return &Demuxer{
		log:      slog.Default().With("component", "ts"),
		observer: observer,
		stream:   mpegts.NewStreamDemuxer(),
		cea608:   newCEA608Decoders(),
		cea708:   newCEA708Services(),
	}
}

func newCEA608Decoders() map[int]*ccx.CEA608Decoder {
	return map[int]*ccx.CEA608Decoder{
		1: ccx.NewCEA608Decoder(), 2: ccx.NewCEA608Decoder(),
		3: ccx.NewCEA608Decoder(), 4: ccx.NewCEA608Decoder(),
	}
}

func newCEA708Services() map[int]*ccx.CEA708Service {
	return map[int]*ccx.CEA708Service{
		1: ccx.NewCEA708Service(), 2: ccx.NewCEA708Service(), 3: ccx.NewCEA708Service(),
		4: ccx.NewCEA708Service(), 5: ccx.NewCEA708Service(), 6: ccx.NewCEA708Service(),
	}
}

// Demux parses data (clear content) into samples.
func (d *Demuxer) Demux(data []byte, timeOffset float64, contiguous, flush bool) (media.DemuxResult, error) {
	items, err := d.stream.Push(data)
	if err != nil {
		return media.DemuxResult{}, err
	}
	if flush {
		flushed, ferr := d.stream.Flush()
		if ferr == nil {
			items = append(items, flushed...)
		}
	}
	return d.process(items, nil), nil
}

// DemuxSampleAES behaves like Demux but decrypts each reassembled sample
// (NAL unit or ADTS/MP3 frame) individually, using a per-sample IV derived
// from kd.IV XORed with a monotonically increasing sample counter.
func (d *Demuxer) DemuxSampleAES(ctx context.Context, data []byte, kd transmux.KeyData, timeOffset float64) (media.DemuxResult, error) {
	items, err := d.stream.Push(data)
	if err != nil {
		return media.DemuxResult{}, err
	}
	flushed, ferr := d.stream.Flush()
	if ferr == nil {
		items = append(items, flushed...)
	}
	return d.process(items, d.sampleDecrypter(kd)), nil
}

// sampleDecrypter returns a per-sample decrypt function for SAMPLE-AES,
// or nil if kd describes a clear segment.
func (d *Demuxer) sampleDecrypter(kd transmux.KeyData) func([]byte) []byte {
	if kd.Method != transmux.MethodSampleAES || len(kd.Key) == 0 || len(kd.IV) == 0 {
		return nil
	}
	return func(sample []byte) []byte {
		iv := deriveSampleIV(kd.IV, d.sampleAESCounter)
		d.sampleAESCounter++
		return aes128.DecryptSample(kd.Key, iv, sample)
	}
}

// deriveSampleIV XORs counter, big-endian, into the low 8 bytes of base.
func deriveSampleIV(base []byte, counter uint64) []byte {
	iv := append([]byte(nil), base...)
	if len(iv) != 16 {
		return iv
	}
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], counter)
	for i := 0; i < 8; i++ {
		iv[8+i] ^= c[i]
	}
	return iv
}

// Flush drains any buffered partial PES packet as a best-effort final
// sample, fanning video and audio reassembly out concurrently when both
// tracks are present.
func (d *Demuxer) Flush(timeOffset float64) (media.DemuxResult, error) {
	items, err := d.stream.Flush()
	if err != nil {
		return media.DemuxResult{}, err
	}
	if len(items) == 0 {
		return media.DemuxResult{}, nil
	}

	var videoItems, audioItems, otherItems []*mpegts.DemuxerData
	for _, item := range items {
		switch {
		case item.PES != nil && item.FirstPacket != nil && item.FirstPacket.Header.PID == d.videoPID:
			videoItems = append(videoItems, item)
		case item.PES != nil && item.FirstPacket != nil && item.FirstPacket.Header.PID == d.audioPID:
			audioItems = append(audioItems, item)
		default:
			otherItems = append(otherItems, item)
		}
	}

	var video *media.VideoTrack
	var audio *media.AudioTrack
	var g errgroup.Group
	g.Go(func() error {
		video = d.process(videoItems, nil).Video
		return nil
	})
	g.Go(func() error {
		audio = d.process(audioItems, nil).Audio
		return nil
	})
	_ = g.Wait()

	rest := d.process(otherItems, nil)
	rest.Video = video
	rest.Audio = audio
	return rest, nil
}

// ResetInitSegment clears cached parameter sets; the next keyframe's SPS/
// PPS (or VPS/SPS/PPS) rebuilds them. audioCodec/videoCodec/trackDuration
// are advisory only — this demuxer determines codecs from the PMT.
func (d *Demuxer) ResetInitSegment(media.InitSegmentData, string, string, float64) {
	d.sps, d.pps, d.vps = nil, nil, nil
}

// ResetTimeStamp is a no-op: PTS/DTS are always derived fresh from each
// PES packet's own timestamps.
func (d *Demuxer) ResetTimeStamp(int64) {}

// ResetContiguity discards all buffered packet/PSI state, used on a
// discontinuous push.
func (d *Demuxer) ResetContiguity() {
	d.stream.Reset()
	d.videoPID, d.audioPID, d.scte35PID = 0, 0, 0
	d.cea608 = newCEA608Decoders()
	d.cea708 = newCEA708Services()
	d.dtvccBuf = nil
}

// Destroy releases no resources.
func (d *Demuxer) Destroy() {}

func (d *Demuxer) process(items []*mpegts.DemuxerData, decrypt func([]byte) []byte) media.DemuxResult {
	var video *media.VideoTrack
	var audio *media.AudioTrack
	var id3 *media.ID3Track
	var text *media.TextTrack

	for _, item := range items {
		switch {
		case item.PMT != nil:
			d.applyPMT(item.PMT)
		case item.Opaque != nil && item.Opaque.PID == d.scte35PID:
			d.handleSCTE35(item.Opaque.Data, &id3)
		case item.PES != nil && item.FirstPacket != nil:
			pid := item.FirstPacket.Header.PID
			pts, dts := ptsDtsOf(item.PES)
			switch {
			case pid == d.videoPID:
				d.handleVideo(item.PES.Data, pts, dts, decrypt, &video, &text)
			case pid == d.audioPID:
				d.handleAudio(item.PES.Data, pts, decrypt, &audio)
			}
		}
	}

	return media.DemuxResult{Video: video, Audio: audio, ID3: id3, Text: text}
}

func (d *Demuxer) applyPMT(pmt *mpegts.PMTData) {
	for _, es := range pmt.ElementaryStreams {
		switch es.StreamType {
		case streamTypeH264:
			if d.videoPID == 0 {
				d.videoPID, d.isHEVC = es.ElementaryPID, false
			}
		case streamTypeH265:
			if d.videoPID == 0 {
				d.videoPID, d.isHEVC = es.ElementaryPID, true
			}
		case streamTypeAAC:
			if d.audioPID == 0 {
				d.audioPID, d.audioMP3 = es.ElementaryPID, false
			}
		case streamTypeMPEG1, streamTypeMPEG2:
			if d.audioPID == 0 {
				d.audioPID, d.audioMP3 = es.ElementaryPID, true
			}
		case streamTypeSCTE35:
			if d.scte35PID == 0 {
				d.scte35PID = es.ElementaryPID
				d.stream.RegisterOpaquePID(d.scte35PID)
			}
		}
	}
}

// ptsDtsOf converts a PES packet's 90kHz PTS/DTS into microseconds.
func ptsDtsOf(pes *mpegts.PESData) (pts, dts int64) {
	if pes.Header == nil || pes.Header.OptionalHeader == nil {
		return 0, 0
	}
	if pes.Header.OptionalHeader.PTS != nil {
		pts = pes.Header.OptionalHeader.PTS.Base * 1000000 / 90000
	}
	if pes.Header.OptionalHeader.DTS != nil {
		dts = pes.Header.OptionalHeader.DTS.Base * 1000000 / 90000
	} else {
		dts = pts
	}
	return pts, dts
}

func (d *Demuxer) handleVideo(data []byte, pts, dts int64, decrypt func([]byte) []byte, video **media.VideoTrack, text **media.TextTrack) {
	if len(data) == 0 {
		return
	}
	if d.isHEVC {
		d.handleVideoHEVC(data, pts, dts, decrypt, video, text)
	} else {
		d.handleVideoH264(data, pts, dts, decrypt, video, text)
	}
}

func (d *Demuxer) handleVideoH264(data []byte, pts, dts int64, decrypt func([]byte) []byte, video **media.VideoTrack, text **media.TextTrack) {
	nalus := codecs.ParseAnnexB(data)
	if len(nalus) == 0 {
		return
	}

	isKeyframe := false
	var naluBytes [][]byte

	for _, nalu := range nalus {
		if nalu.Type == codecs.NALTypeAUD || nalu.Type == codecs.NALTypeFillerData {
			continue
		}

		payload := nalu.Data
		if decrypt != nil && (nalu.Type == codecs.NALTypeSlice || nalu.Type == codecs.NALTypeIDR) {
			payload = decrypt(payload)
		}

		switch {
		case codecs.IsSPS(nalu.Type):
			d.sps = append([]byte(nil), payload...)
			isKeyframe = true
		case codecs.IsPPS(nalu.Type):
			d.pps = append([]byte(nil), payload...)
		case codecs.IsKeyframe(nalu.Type):
			isKeyframe = true
		case nalu.Type == codecs.NALTypeSEI:
			d.handleCaptionSEI(payload, pts, text)
		}

		naluBytes = append(naluBytes, annexBToStartCode(payload))
	}

	d.emitVideo(isKeyframe, naluBytes, "h264", pts, dts, video)
}

func (d *Demuxer) handleVideoHEVC(data []byte, pts, dts int64, decrypt func([]byte) []byte, video **media.VideoTrack, text **media.TextTrack) {
	nalus := codecs.ParseAnnexBHEVC(data)
	if len(nalus) == 0 {
		return
	}

	isKeyframe := false
	var naluBytes [][]byte

	for _, nalu := range nalus {
		if nalu.Type == codecs.HEVCNALAUD || nalu.Type == codecs.HEVCNALFillerData {
			continue
		}

		payload := nalu.Data
		if decrypt != nil && codecs.IsHEVCKeyframe(nalu.Type) {
			payload = decrypt(payload)
		}

		switch {
		case codecs.IsHEVCVPS(nalu.Type):
			d.vps = append([]byte(nil), payload...)
		case codecs.IsHEVCSPS(nalu.Type):
			d.sps = append([]byte(nil), payload...)
		case codecs.IsHEVCPPS(nalu.Type):
			d.pps = append([]byte(nil), payload...)
		case codecs.IsHEVCKeyframe(nalu.Type):
			isKeyframe = true
		case nalu.Type == codecs.HEVCNALSEIPrefix:
			d.handleCaptionSEI(payload, pts, text)
		}

		naluBytes = append(naluBytes, annexBToStartCode(payload))
	}

	d.emitVideo(isKeyframe, naluBytes, "h265", pts, dts, video)
}

// annexBToStartCode restores the 4-byte start code stripped by
// ParseAnnexB/ParseAnnexBHEVC, the framing internal/isobmff.AnnexBToAVC1
// expects on the remux side.
func annexBToStartCode(nalu []byte) []byte {
	out := make([]byte, 4+len(nalu))
	out[3] = 1
	copy(out[4:], nalu)
	return out
}

func (d *Demuxer) emitVideo(isKeyframe bool, naluBytes [][]byte, codec string, pts, dts int64, video **media.VideoTrack) {
	if *video == nil {
		*video = &media.VideoTrack{Codec: codec, SPS: d.sps, PPS: d.pps, VPS: d.vps}
		switch codec {
		case "h264":
			if info, err := codecs.ParseSPS(d.sps); err == nil {
				(*video).Width, (*video).Height = info.Width, info.Height
			}
		case "h265":
			if info, err := codecs.ParseHEVCSPS(d.sps); err == nil {
				(*video).Width, (*video).Height = info.Width, info.Height
			}
		}
	}
	sample := isobmff.AnnexBToAVC1(naluBytes)
	(*video).Samples = append((*video).Samples, media.VideoSample{PTS: pts, DTS: dts, IsKeyframe: isKeyframe, Data: sample})
}

func (d *Demuxer) handleAudio(data []byte, pts int64, decrypt func([]byte) []byte, audio **media.AudioTrack) {
	if len(data) == 0 {
		return
	}
	if d.audioMP3 {
		frames, err := codecs.ParseMP3(data)
		if err != nil {
			d.log.Warn("invalid MP3 frame in PES payload", "error", err)
		}
		for _, f := range frames {
			payload := f.Data
			if decrypt != nil {
				payload = decrypt(payload)
			}
			if *audio == nil {
				*audio = &media.AudioTrack{Codec: "mp3", SampleRate: f.SampleRate, Channels: f.Channels}
			}
			(*audio).Samples = append((*audio).Samples, media.AudioSample{PTS: pts, Data: payload})
		}
		return
	}

	frames, err := codecs.ParseADTS(data)
	if err != nil {
		d.log.Warn("invalid ADTS frame in PES payload", "error", err)
	}
	for _, f := range frames {
		payload := f.Data
		if decrypt != nil {
			payload = decrypt(payload)
		}
		stripped := stripADTSHeader(payload)
		if *audio == nil {
			*audio = &media.AudioTrack{Codec: "aac", SampleRate: f.SampleRate, Channels: f.Channels}
		}
		(*audio).Samples = append((*audio).Samples, media.AudioSample{PTS: pts, Data: stripped})
	}
}

// stripADTSHeader removes the 7- or 9-byte ADTS header from a frame whose
// payload may already have been SAMPLE-AES decrypted (the header itself is
// never encrypted).
func stripADTSHeader(frame []byte) []byte {
	if len(frame) < 7 {
		return frame
	}
	headerSize := 7
	if (frame[1] & 0x01) == 0 {
		headerSize = 9
	}
	if len(frame) <= headerSize {
		return frame
	}
	return frame[headerSize:]
}

func (d *Demuxer) handleCaptionSEI(seiData []byte, pts int64, text **media.TextTrack) {
	cd := ccx.ExtractCaptions(seiData)
	if cd == nil {
		return
	}

	appendText := func(data []byte) {
		if *text == nil {
			*text = &media.TextTrack{}
		}
		(*text).Samples = append((*text).Samples, media.TextSample{PTS: pts, Data: data})
	}

	for _, pair := range cd.CC608Pairs {
		dec := d.cea608[pair.Channel]
		if dec == nil {
			continue
		}
		if s := dec.Decode(pair.Data[0], pair.Data[1]); s != "" {
			appendText([]byte(s))
		}
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			d.drainDTVCC(pts, appendText)
			d.dtvccBuf = d.dtvccBuf[:0]
		}
		d.dtvccBuf = append(d.dtvccBuf, t.Data[0], t.Data[1])
	}
}

func (d *Demuxer) drainDTVCC(pts int64, appendText func([]byte)) {
	if len(d.dtvccBuf) < 1 {
		return
	}
	packetSize := ccx.DTVCCPacketSize(d.dtvccBuf[0])
	if len(d.dtvccBuf) < packetSize {
		return
	}
	for _, block := range ccx.ParseDTVCCPacket(d.dtvccBuf[:packetSize]) {
		svc := d.cea708[block.ServiceNum]
		if svc == nil {
			continue
		}
		if svc.ProcessBlock(block.Data) {
			if s := svc.DisplayText(); s != "" {
				appendText([]byte(s))
			}
		}
	}
}

func (d *Demuxer) handleSCTE35(section []byte, id3 **media.ID3Track) {
	sis, err := scte35.DecodeBytes(section)
	if err != nil {
		d.log.Warn("malformed SCTE-35 section", "error", err)
		if d.observer != nil {
			d.observer.Emit(transmux.EventError, transmux.ErrorEvent{
				Type: transmux.ErrorTypeMedia, Details: transmux.ErrorDetailsFragParsing,
				Fatal: false, Reason: err.Error(),
			})
		}
		return
	}
	if *id3 == nil {
		*id3 = &media.ID3Track{}
	}
	(*id3).Samples = append((*id3).Samples, media.ID3Sample{PTS: int64(sis.PTSAdjustment) * 1000000 / 90000, Data: section})
}
