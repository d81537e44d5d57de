package isobmff

// Sample is one fragment sample: Data is the sample payload already in its
// final muxed form (length-prefixed NALUs for video, raw AAC/MP3 frame
// payload for audio).
type Sample struct {
	Duration              uint32 // in the track's TimeScale
	CompositionTimeOffset int32  // CTS - DTS, in the track's TimeScale
	Sync                  bool   // true for a video keyframe; always true for audio
	Data                  []byte
}

const (
	trunFlagDataOffset       = 0x000001
	trunFlagSampleDuration   = 0x000100
	trunFlagSampleSize       = 0x000200
	trunFlagSampleFlags      = 0x000400
	trunFlagSampleCompOffset = 0x000800

	tfhdFlagDefaultBaseIsMoof = 0x020000

	sampleDependsOnOthers = 1 << 24 // sample_depends_on = 1 (depends on others)
	sampleIsNonSyncSample = 1 << 16
)

// BuildFragment builds one moof+mdat pair for a single track carrying
// samples. seq is the fragment's mfhd sequence_number (monotonically
// increasing across the life of the Transmuxer, not reset per segment).
// baseMediaDecodeTime is this fragment's tfdt, in the track's TimeScale.
func BuildFragment(seq uint32, trackID uint32, baseMediaDecodeTime uint64, samples []Sample) []byte {
	traf := buildTraf(trackID, baseMediaDecodeTime, samples)
	mfhd := box("mfhd", concat(fullBoxHeader(0, 0), u32(seq)))
	moofPayload := concat(mfhd, traf)

	// trun's data_offset is relative to the start of moof; mdat's payload
	// begins len(moof) + mdat's 8-byte header bytes in. We build moof
	// once to learn its size, then patch the data_offset we reserved.
	moof := box("moof", moofPayload)
	dataOffset := uint32(len(moof) + 8)
	patchTrunDataOffset(moof, dataOffset)

	var mdatPayload []byte
	for _, s := range samples {
		mdatPayload = append(mdatPayload, s.Data...)
	}
	mdat := box("mdat", mdatPayload)

	return concat(moof, mdat)
}

func buildTraf(trackID uint32, baseMediaDecodeTime uint64, samples []Sample) []byte {
	tfhd := box("tfhd", concat(fullBoxHeader(0, tfhdFlagDefaultBaseIsMoof), u32(trackID)))
	tfdt := box("tfdt", concat(fullBoxHeader(1, 0), u64(baseMediaDecodeTime)))
	trun := buildTrun(samples)
	return box("traf", concat(tfhd, tfdt, trun))
}

func buildTrun(samples []Sample) []byte {
	flags := uint32(trunFlagDataOffset | trunFlagSampleDuration | trunFlagSampleSize |
		trunFlagSampleFlags | trunFlagSampleCompOffset)

	payload := concat(
		fullBoxHeader(1, flags), // version 1: signed composition offsets
		u32(uint32(len(samples))),
		u32(0), // data_offset placeholder, patched by patchTrunDataOffset
	)
	for _, s := range samples {
		payload = append(payload, u32(s.Duration)...)
		payload = append(payload, u32(uint32(len(s.Data)))...)
		payload = append(payload, u32(sampleFlags(s.Sync))...)
		payload = append(payload, i32(s.CompositionTimeOffset)...)
	}
	return box("trun", payload)
}

func sampleFlags(sync bool) uint32 {
	if sync {
		return 0x02000000 // sample_depends_on = 2 (does not depend on others)
	}
	return sampleIsNonSyncSample | sampleDependsOnOthers
}

// patchTrunDataOffset overwrites the data_offset field reserved by
// buildTrun in place, now that moof's total size (and therefore the
// offset to mdat's payload) is known. trun is always the last box inside
// traf inside moof in this package's output, and its layout is fixed, so
// the offset field's position is computed rather than searched for.
func patchTrunDataOffset(moof []byte, dataOffset uint32) {
	// moof box header(8) + mfhd box(16) + traf box header(8) + tfhd box(8+4+4=16)
	// + tfdt box(8+4+8=20) + trun box header(8) + trun fullbox header(4)
	// + sample_count(4) = offset of data_offset field.
	const mfhdSize = 8 + 4 + 4 // header + version/flags + sequence_number
	const tfhdSize = 8 + 4 + 4 // header + version/flags + track_ID
	const tfdtSize = 8 + 4 + 8 // header + version/flags + baseMediaDecodeTime(64-bit)
	offset := 8 + mfhdSize + 8 /*traf header*/ + tfhdSize + tfdtSize + 8 /*trun header*/ + 4 /*trun version/flags*/ + 4 /*sample_count*/
	if offset+4 > len(moof) {
		return
	}
	copy(moof[offset:offset+4], u32(dataOffset))
}
