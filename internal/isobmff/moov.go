package isobmff

// Track describes one elementary stream's decoder configuration for the
// purpose of building an initialization segment. At most one of the codec
// config fields (AVCC/HVCC/ASC) is set, matching Codec; none is set for mp3.
type Track struct {
	ID         uint32
	Video      bool // false => audio
	Codec      string // "h264", "h265", "aac", "mp3"
	TimeScale  uint32
	Width      int // video only
	Height     int // video only
	SampleRate int // audio only
	Channels   int // audio only
	AVCC       []byte
	HVCC       []byte
	ASC        []byte // AAC AudioSpecificConfig; unused for mp3
}

// BuildFtyp builds the file-type box every fMP4 initialization segment
// opens with, declaring ISO base media brands compatible with MSE.
func BuildFtyp() []byte {
	payload := concat(
		[]byte("iso5"),    // major_brand
		u32(512),          // minor_version
		[]byte("iso5"),    // compatible_brands...
		[]byte("iso6"),
		[]byte("mp41"),
	)
	return box("ftyp", payload)
}

// BuildMoov builds the movie box: one mvhd plus one trak per track.
func BuildMoov(tracks []Track, duration float64) []byte {
	var traks [][]byte
	for _, t := range tracks {
		traks = append(traks, buildTrak(t, duration))
	}
	payload := [][]byte{buildMvhd(tracks, duration)}
	payload = append(payload, traks...)
	return box("moov", concat(payload...))
}

func buildMvhd(tracks []Track, durationSeconds float64) []byte {
	const timescale = 1000
	duration := uint32(durationSeconds * timescale)
	var nextTrackID uint32 = 1
	for _, t := range tracks {
		if t.ID >= nextTrackID {
			nextTrackID = t.ID + 1
		}
	}
	payload := concat(
		fullBoxHeader(0, 0),
		u32(0), u32(0), // creation_time, modification_time
		u32(timescale),
		u32(duration),
		u32(0x00010000), // rate = 1.0
		u16(0x0100),     // volume = 1.0
		u16(0),          // reserved
		u32(0), u32(0),  // reserved
		identityMatrix(),
		make([]byte, 24), // pre_defined
		u32(nextTrackID),
	)
	return box("mvhd", payload)
}

func identityMatrix() []byte {
	return concat(
		i32(0x00010000), i32(0), i32(0),
		i32(0), i32(0x00010000), i32(0),
		i32(0), i32(0), i32(0x40000000),
	)
}

func buildTrak(t Track, durationSeconds float64) []byte {
	tkhd := buildTkhd(t, durationSeconds)
	mdia := buildMdia(t, durationSeconds)
	return box("trak", concat(tkhd, mdia))
}

func buildTkhd(t Track, durationSeconds float64) []byte {
	const timescale = 1000
	duration := uint32(durationSeconds * timescale)

	width, height := uint32(0), uint32(0)
	if t.Video {
		width = uint32(t.Width) << 16
		height = uint32(t.Height) << 16
	}

	payload := concat(
		fullBoxHeader(0, 0x7), // enabled | in movie | in preview
		u32(0), u32(0),        // creation_time, modification_time
		u32(t.ID),
		u32(0), // reserved
		u32(duration),
		u32(0), u32(0), // reserved
		u16(0),  // layer
		u16(0),  // alternate_group
		u16(volumeFor(t)),
		u16(0), // reserved
		identityMatrix(),
		u32(width),
		u32(height),
	)
	return box("tkhd", payload)
}

func volumeFor(t Track) uint16 {
	if t.Video {
		return 0
	}
	return 0x0100
}

func buildMdia(t Track, durationSeconds float64) []byte {
	mdhd := buildMdhd(t, durationSeconds)
	hdlr := buildHdlr(t)
	minf := buildMinf(t)
	return box("mdia", concat(mdhd, hdlr, minf))
}

func buildMdhd(t Track, durationSeconds float64) []byte {
	duration := uint32(durationSeconds * float64(t.TimeScale))
	payload := concat(
		fullBoxHeader(0, 0),
		u32(0), u32(0), // creation_time, modification_time
		u32(t.TimeScale),
		u32(duration),
		u16(0x55C4), // language = "und"
		u16(0),      // pre_defined
	)
	return box("mdhd", payload)
}

func buildHdlr(t Track) []byte {
	handlerType := "soun"
	name := "transmux sound handler"
	if t.Video {
		handlerType = "vide"
		name = "transmux video handler"
	}
	payload := concat(
		fullBoxHeader(0, 0),
		u32(0), // pre_defined
		[]byte(handlerType),
		make([]byte, 12), // reserved
		[]byte(name), []byte{0},
	)
	return box("hdlr", payload)
}

func buildMinf(t Track) []byte {
	var mhd []byte
	if t.Video {
		mhd = box("vmhd", concat(fullBoxHeader(0, 1), u16(0), make([]byte, 6)))
	} else {
		mhd = box("smhd", concat(fullBoxHeader(0, 0), u16(0), u16(0)))
	}
	dinf := buildDinf()
	stbl := buildStbl(t)
	return box("minf", concat(mhd, dinf, stbl))
}

func buildDinf() []byte {
	url := box("url ", fullBoxHeader(0, 1)) // self-contained
	dref := box("dref", concat(fullBoxHeader(0, 0), u32(1), url))
	return box("dinf", dref)
}

func buildStbl(t Track) []byte {
	stsd := buildStsd(t)
	empty32 := concat(fullBoxHeader(0, 0), u32(0))
	stts := box("stts", empty32)
	stsc := box("stsc", empty32)
	stsz := box("stsz", concat(fullBoxHeader(0, 0), u32(0), u32(0)))
	stco := box("stco", empty32)
	return box("stbl", concat(stsd, stts, stsc, stsz, stco))
}

func buildStsd(t Track) []byte {
	var entry []byte
	switch {
	case t.Codec == "h264":
		entry = buildAvc1(t)
	case t.Codec == "h265":
		entry = buildHvc1(t)
	case t.Codec == "aac":
		entry = buildMp4a(t)
	case t.Codec == "mp3":
		entry = buildMp3Entry(t)
	}
	payload := concat(fullBoxHeader(0, 0), u32(1), entry)
	return box("stsd", payload)
}

func sampleEntryHeader(dataReferenceIndex uint16) []byte {
	return concat(make([]byte, 6), u16(dataReferenceIndex))
}

func buildAvc1(t Track) []byte {
	avcC := box("avcC", t.AVCC)
	payload := concat(
		sampleEntryHeader(1),
		u16(0), u16(0), // pre_defined, reserved
		make([]byte, 12), // pre_defined[3]
		u16(uint16(t.Width)),
		u16(uint16(t.Height)),
		u32(0x00480000), // horizresolution = 72dpi
		u32(0x00480000), // vertresolution = 72dpi
		u32(0),          // reserved
		u16(1),          // frame_count
		make([]byte, 32), // compressorname
		u16(0x0018), // depth
		u16(0xFFFF), // pre_defined = -1
		avcC,
	)
	return box("avc1", payload)
}

func buildHvc1(t Track) []byte {
	hvcC := box("hvcC", t.HVCC)
	payload := concat(
		sampleEntryHeader(1),
		u16(0), u16(0),
		make([]byte, 12),
		u16(uint16(t.Width)),
		u16(uint16(t.Height)),
		u32(0x00480000),
		u32(0x00480000),
		u32(0),
		u16(1),
		make([]byte, 32),
		u16(0x0018),
		u16(0xFFFF),
		hvcC,
	)
	return box("hvc1", payload)
}

func buildMp4a(t Track) []byte {
	esds := buildESDS(t.ASC)
	payload := concat(
		sampleEntryHeader(1),
		u16(0), u16(0), // version, revision_level
		u32(0),         // vendor
		u16(uint16(t.Channels)),
		u16(16), // samplesize
		u16(0), u16(0), // pre_defined, reserved
		u32(uint32(t.SampleRate)<<16),
		esds,
	)
	return box("mp4a", payload)
}

// buildMp3Entry builds a ".mp3" AudioSampleEntry, the box type browsers'
// fMP4 MPEG-1/2 Audio Layer III demuxers (and hls.js's mp4-generator) use
// in place of mp4a+esds, since MP3 has no MPEG-4 decoder-config descriptor.
func buildMp3Entry(t Track) []byte {
	payload := concat(
		sampleEntryHeader(1),
		u16(0), u16(0),
		u32(0),
		u16(uint16(t.Channels)),
		u16(16),
		u16(0), u16(0),
		u32(uint32(t.SampleRate)<<16),
	)
	return box(".mp3", payload)
}
