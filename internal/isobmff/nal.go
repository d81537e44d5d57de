package isobmff

import "github.com/zsiec/transmux/internal/codecs"

// AnnexBToAVC1 converts Annex B NALUs (3- or 4-byte start-code prefixed) to
// AVC1/HVC1 sample format (4-byte big-endian length prefixed), the framing
// an mdat box requires.
func AnnexBToAVC1(nalus [][]byte) []byte {
	var total int
	for _, nalu := range nalus {
		raw := stripStartCode(nalu)
		total += 4 + len(raw)
	}

	out := make([]byte, 0, total)
	for _, nalu := range nalus {
		raw := stripStartCode(nalu)
		out = append(out, u32(uint32(len(raw)))...)
		out = append(out, raw...)
	}
	return out
}

func stripStartCode(nalu []byte) []byte {
	if len(nalu) >= 4 && nalu[0] == 0 && nalu[1] == 0 && nalu[2] == 0 && nalu[3] == 1 {
		return nalu[4:]
	}
	if len(nalu) >= 3 && nalu[0] == 0 && nalu[1] == 0 && nalu[2] == 1 {
		return nalu[3:]
	}
	return nalu
}

// StripADTS removes the ADTS header from a complete ADTS frame, returning
// the raw AAC payload. Returns the input unchanged if it is not a valid
// ADTS frame.
func StripADTS(data []byte) []byte {
	if len(data) < 7 {
		return data
	}
	if data[0] != 0xFF || (data[1]&0xF0) != 0xF0 {
		return data
	}
	headerSize := 7
	if (data[1] & 0x01) == 0 {
		headerSize = 9
	}
	if len(data) <= headerSize {
		return data
	}
	return data[headerSize:]
}

// BuildAVCDecoderConfig builds an AVCDecoderConfigurationRecord
// (ISO 14496-15 §5.2.4.1.1) from raw SPS and PPS NAL data (without start
// codes). The SPS must include the NAL header byte (0x67).
func BuildAVCDecoderConfig(sps, pps []byte) []byte {
	if len(sps) < 4 || len(pps) == 0 {
		return nil
	}

	buf := make([]byte, 0, 11+len(sps)+len(pps))
	buf = append(buf, 1)      // configurationVersion
	buf = append(buf, sps[1]) // AVCProfileIndication
	buf = append(buf, sps[2]) // profile_compatibility
	buf = append(buf, sps[3]) // AVCLevelIndication
	buf = append(buf, 0xFF)   // lengthSizeMinusOne = 3 | reserved 0xFC
	buf = append(buf, 0xE1)   // numOfSequenceParameterSets = 1 | reserved 0xE0

	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)

	buf = append(buf, 1) // numOfPictureParameterSets
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)

	return buf
}

// BuildHEVCDecoderConfig builds an HEVCDecoderConfigurationRecord
// (ISO 14496-15 §8.3.3.1.2) from raw VPS, SPS, and PPS NAL data (without
// start codes). The SPS must include the 2-byte NAL header.
func BuildHEVCDecoderConfig(vps, sps, pps []byte) []byte {
	if len(sps) < 4 || len(pps) == 0 || len(vps) == 0 {
		return nil
	}

	info, err := codecs.ParseHEVCSPS(sps)
	if err != nil {
		return nil
	}

	buf := make([]byte, 0, 23+5+len(vps)+5+len(sps)+5+len(pps))

	buf = append(buf, 1) // configurationVersion

	ptl := info.TierFlag<<5 | info.ProfileIDC
	buf = append(buf, ptl)

	var pcf [4]byte
	putU32(pcf[:], info.ProfileCompatibilityFlags)
	buf = append(buf, pcf[:]...)

	for i := 5; i >= 0; i-- {
		buf = append(buf, byte(info.ConstraintIndicatorFlags>>(i*8)))
	}

	buf = append(buf, info.LevelIDC)
	buf = append(buf, 0xF0, 0x00)                            // min_spatial_segmentation_idc, reserved
	buf = append(buf, 0xFC)                                  // parallelismType, reserved
	buf = append(buf, 0xFC|(info.ChromaFormatIdc&0x03))      // chromaFormat, reserved
	buf = append(buf, 0xF8|(info.BitDepthLumaMinus8&0x07))   // bitDepthLumaMinus8, reserved
	buf = append(buf, 0xF8|(info.BitDepthChromaMinus8&0x07)) // bitDepthChromaMinus8, reserved
	buf = append(buf, 0x00, 0x00) // avgFrameRate
	buf = append(buf, 0x0F)       // constantFrameRate, numTemporalLayers, temporalIdNested, lengthSizeMinusOne=3

	buf = append(buf, 3) // numOfArrays: VPS, SPS, PPS

	buf = append(buf, 0x20) // NAL_unit_type = 32 (VPS)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, byte(len(vps)>>8), byte(len(vps)))
	buf = append(buf, vps...)

	buf = append(buf, 0x21) // NAL_unit_type = 33 (SPS)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)

	buf = append(buf, 0x22) // NAL_unit_type = 34 (PPS)
	buf = append(buf, 0x00, 0x01)
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)

	return buf
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
