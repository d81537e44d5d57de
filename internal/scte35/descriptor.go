package scte35

const (
	segmentationDescriptorTag uint32 = 0x02
	cueIdentifier             uint32 = 0x43554549 // ASCII "CUEI"
)

// segmentationDescriptor carries segmentation information per SCTE-35
// 10.3.3. SegmentationTypeID is passed through as an opaque code on decode
// and encode; neither handleSCTE35's PTS-adjustment path nor the fMP4 ID3
// re-encode branch on it, so there's no table of named type IDs here.
type segmentationDescriptor struct {
	SegmentationEventID  uint32
	SegmentationTypeID   uint32
	SegmentationDuration *uint64
	SegmentNum           uint32
	SegmentsExpected     uint32
}

// Tag returns the splice_descriptor_tag.
func (sd *segmentationDescriptor) Tag() uint32 {
	return segmentationDescriptorTag
}

func (sd *segmentationDescriptor) decode(data []byte) error {
	r := newBitReader(data)
	r.skip(8)  // splice_descriptor_tag
	r.skip(8)  // descriptor_length
	r.skip(32) // identifier (CUEI)
	sd.SegmentationEventID = r.readUint32(32)
	cancelIndicator := r.readBit()
	r.skip(1) // segmentation_event_id_compliance_indicator
	r.skip(6) // reserved

	if !cancelIndicator {
		programSegmentationFlag := r.readBit()
		durationFlag := r.readBit()
		deliveryNotRestricted := r.readBit()

		if !deliveryNotRestricted {
			r.skip(5) // restriction flags
		} else {
			r.skip(5) // reserved
		}

		if !programSegmentationFlag {
			componentCount := int(r.readUint32(8))
			for i := 0; i < componentCount; i++ {
				r.skip(8)  // component_tag
				r.skip(7)  // reserved
				r.skip(33) // pts_offset
			}
		}

		if durationFlag {
			dur := r.readUint64(40)
			sd.SegmentationDuration = &dur
		}

		r.skip(8)                       // segmentation_upid_type
		upidLen := int(r.readUint32(8)) // segmentation_upid_length
		r.skip(upidLen * 8)             // skip UPID bytes
		sd.SegmentationTypeID = r.readUint32(8)
		sd.SegmentNum = r.readUint32(8)
		sd.SegmentsExpected = r.readUint32(8)

		// Skip optional sub-segment fields if present.
		if r.bitsLeft() >= 16 {
			r.skip(16)
		}
	}
	if r.overflowed() {
		return errTruncatedDescriptor
	}
	return nil
}

func (sd *segmentationDescriptor) encode() ([]byte, error) {
	length := sd.descriptorLength()
	w := newBitWriter(length + 2) // +2 for tag + length fields

	w.putUint32(8, segmentationDescriptorTag)
	w.putUint32(8, uint32(length))
	w.putUint32(32, cueIdentifier)
	w.putUint32(32, sd.SegmentationEventID)
	w.putBit(false)      // segmentation_event_cancel_indicator = 0
	w.putBit(true)       // segmentation_event_id_compliance_indicator (inverted: false → bit 1)
	w.putUint32(6, 0x3F) // reserved

	w.putBit(true)                           // program_segmentation_flag = 1
	w.putBit(sd.SegmentationDuration != nil) // segmentation_duration_flag
	w.putBit(true)                           // delivery_not_restricted_flag = 1
	w.putUint32(5, 0x1F)                     // reserved

	if sd.SegmentationDuration != nil {
		w.putUint64(40, *sd.SegmentationDuration)
	}

	w.putUint32(8, 0x00) // segmentation_upid_type = Not Used
	w.putUint32(8, 0x00) // segmentation_upid_length = 0
	w.putUint32(8, sd.SegmentationTypeID)
	w.putUint32(8, sd.SegmentNum)
	w.putUint32(8, sd.SegmentsExpected)

	return w.bytes(), nil
}

func (sd *segmentationDescriptor) descriptorLength() int {
	bits := 32 // identifier
	bits += 32 // segmentation_event_id
	bits += 1  // cancel_indicator
	bits += 1  // compliance_indicator
	bits += 6  // reserved

	// cancel=false, so remaining fields are present:
	bits += 1 // program_segmentation_flag
	bits += 1 // segmentation_duration_flag
	bits += 1 // delivery_not_restricted_flag
	bits += 5 // reserved (delivery_not_restricted=true)

	if sd.SegmentationDuration != nil {
		bits += 40
	}

	bits += 8 // segmentation_upid_type
	bits += 8 // segmentation_upid_length (0)
	bits += 8 // segmentation_type_id
	bits += 8 // segment_num
	bits += 8 // segments_expected

	return bits / 8
}
