package codecs

import "errors"

// ErrInvalidMP3Frame is returned when an MPEG audio frame header is
// malformed (bad bitrate or sample-rate index).
var ErrInvalidMP3Frame = errors.New("codecs: invalid MPEG audio frame header")

// mp3BitrateTable indexes [mpegVersionIsV1][layerIndex][bitrateIdx] in
// kbit/s, per the MPEG-1/2 Audio Layer I/II/III header tables. layerIndex is
// 0 for Layer III, 1 for Layer II, 2 for Layer I (the header's 2-bit layer
// field minus one).
var mp3BitrateTable = [2][3][16]int{
	{ // MPEG-1
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},    // Layer III
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},   // Layer II
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}, // Layer I
	},
	{ // MPEG-2/2.5
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},     // Layer III
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},     // Layer II
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}, // Layer I
	},
}

// mp3SampleRateTable indexes [mpegVersion][sampleRateIdx] in Hz, where
// mpegVersion is 0=MPEG-2.5, 1=reserved, 2=MPEG-2, 3=MPEG-1 (the header's
// raw 2-bit version field).
var mp3SampleRateTable = [4][3]int{
	{11025, 12000, 8000}, // MPEG-2.5
	{},                   // reserved
	{22050, 24000, 16000},
	{44100, 48000, 32000},
}

// MP3Frame represents a single MPEG audio frame (header + payload).
type MP3Frame struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// ProbeMP3 reports whether data opens with a plausible MPEG audio frame sync
// and a valid version/layer/bitrate/sample-rate combination.
func ProbeMP3(data []byte) bool {
	_, _, ok := parseMP3Header(data)
	return ok
}

func parseMP3Header(data []byte) (frameLen, sampleRate int, ok bool) {
	if len(data) < 4 {
		return 0, 0, false
	}
	if data[0] != 0xFF || (data[1]&0xE0) != 0xE0 {
		return 0, 0, false
	}

	version := (data[1] >> 3) & 0x03 // 0=MPEG2.5,2=MPEG2,3=MPEG1
	layer := (data[1] >> 1) & 0x03   // 1=LayerIII,2=LayerII,3=LayerI
	if version == 1 || layer == 0 {
		return 0, 0, false
	}

	bitrateIdx := (data[2] >> 4) & 0x0F
	sampleRateIdx := (data[2] >> 2) & 0x03
	padding := (data[2] >> 1) & 0x01

	if bitrateIdx == 0 || bitrateIdx == 15 || sampleRateIdx == 3 {
		return 0, 0, false
	}

	isV1 := 0
	if version == 3 {
		isV1 = 1
	}
	layerIdx := int(layer - 1) // LayerIII->0, LayerII->1, LayerI->2

	bitrate := mp3BitrateTable[1-isV1][layerIdx][bitrateIdx]
	rate := mp3SampleRateTable[version][sampleRateIdx]
	if bitrate == 0 || rate == 0 {
		return 0, 0, false
	}

	samplesPerFrame := 1152
	if layer == 3 { // Layer I
		samplesPerFrame = 384
	} else if layer == 2 && isV1 == 0 { // Layer II, MPEG-2/2.5
		samplesPerFrame = 1152
	}
	if layer == 1 && isV1 == 0 { // Layer III, MPEG-2/2.5
		samplesPerFrame = 576
	}

	length := (samplesPerFrame/8)*bitrate*1000/rate + int(padding)
	if length < 4 {
		return 0, 0, false
	}

	return length, rate, true
}

// ParseMP3 parses consecutive MPEG audio frames out of data.
func ParseMP3(data []byte) ([]MP3Frame, error) {
	var frames []MP3Frame
	offset := 0

	for offset < len(data) {
		frameLen, rate, ok := parseMP3Header(data[offset:])
		if !ok {
			offset++
			continue
		}
		if offset+frameLen > len(data) {
			break
		}

		channels := 2 // mono detection (channel mode byte) omitted: rarely affects remux
		frames = append(frames, MP3Frame{
			Data:       data[offset : offset+frameLen],
			SampleRate: rate,
			Channels:   channels,
		})
		offset += frameLen
	}

	return frames, nil
}
