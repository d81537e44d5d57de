package isobmff

// aacSampleRateIndex maps a sample rate to its MPEG-4 Audio
// samplingFrequencyIndex (ISO/IEC 14496-3 Table 1.16), used by both ADTS
// framing and the AudioSpecificConfig carried in esds.
var aacSampleRateIndex = map[int]byte{
	96000: 0x0, 88200: 0x1, 64000: 0x2, 48000: 0x3,
	44100: 0x4, 32000: 0x5, 24000: 0x6, 22050: 0x7,
	16000: 0x8, 12000: 0x9, 11025: 0xA, 8000: 0xB, 7350: 0xC,
}

// BuildAudioSpecificConfig builds the 2-byte MPEG-4 AudioSpecificConfig
// (ISO/IEC 14496-3 §1.6.2.1) for AAC-LC, the profile HLS audio always uses.
func BuildAudioSpecificConfig(sampleRate, channels int) []byte {
	idx, ok := aacSampleRateIndex[sampleRate]
	if !ok {
		idx = 0x4 // 44100Hz fallback: keeps output parseable over silent failure
	}
	const audioObjectTypeAACLC = 2

	b0 := byte(audioObjectTypeAACLC<<3) | (idx >> 1)
	b1 := byte(idx&0x1)<<7 | byte(channels&0x0F)<<3
	return []byte{b0, b1}
}

// buildESDS wraps an AudioSpecificConfig in the MPEG-4 descriptor chain
// (ES_Descriptor > DecoderConfigDescriptor > DecoderSpecificInfo,
// SLConfigDescriptor) that the esds box carries, per ISO/IEC 14496-1 §7.2.6.
func buildESDS(asc []byte) []byte {
	decSpecificInfo := descriptor(0x05, asc)

	decoderConfig := descriptor(0x04, concat([]byte{
		0x40,       // objectTypeIndication: Audio ISO/IEC 14496-3
		0x15,       // streamType(6)=5 (AudioStream), upStream(1)=0, reserved(1)=1
		0x00, 0x00, 0x00, // bufferSizeDB
		0x00, 0x00, 0x00, 0x00, // maxBitrate
		0x00, 0x00, 0x00, 0x00, // avgBitrate
	}, decSpecificInfo))

	slConfig := descriptor(0x06, []byte{0x02}) // predefined = MP4

	esDescriptor := descriptor(0x03, concat([]byte{
		0x00, 0x00, // ES_ID
		0x00, // streamDependenceFlag(1)=0, URL_Flag(1)=0, OCRstreamFlag(1)=0, streamPriority(5)=0
	}, decoderConfig, slConfig))

	return box("esds", fullBoxHeader(0, 0), esDescriptor)
}

// descriptor encodes one MPEG-4 descriptor: a tag byte, a single-byte
// length (every length used by this package's descriptors fits in 7 bits),
// and its payload.
func descriptor(tag byte, payload []byte) []byte {
	return concat([]byte{tag, byte(len(payload))}, payload)
}
