package scte35

import (
	"encoding/hex"
	"testing"
)

func BenchmarkDecode(b *testing.B) {
	data, _ := hex.DecodeString(goldenVectors["SpliceInsertOut"])
	b.SetBytes(int64(len(data)))

	for b.Loop() {
		DecodeBytes(data)
	}
}

func BenchmarkEncode(b *testing.B) {
	pts := uint64(900000)
	sis := SpliceInfoSection{
		SAPType: 3, Tier: 0xFFF,
		SpliceCommand: &timeSignal{SpliceTime: spliceTime{PTSTime: &pts}},
		SpliceDescriptors: []spliceDescriptor{
			&segmentationDescriptor{
				SegmentationEventID: 1,
				SegmentationTypeID:  segTypeProviderAdStart,
				SegmentNum:          1,
				SegmentsExpected:    1,
			},
		},
	}

	for b.Loop() {
		sis.Encode()
	}
}
