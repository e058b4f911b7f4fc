package descriptors

import (
	"encoding/binary"
	"io"
)

// HIDDescriptor as defined in HID spec 1.11, section 6.2.1.
type HIDDescriptor struct {
	HIDVersion     BinaryCodedDecimal
	CountryCode    uint8
	NumDescriptors uint8

	// First subordinate descriptor entry; report descriptors in practice.
	ReportType   DescriptorType
	ReportLength uint16
}

func (hd *HIDDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 9 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeHID {
		return ErrInvalidDescriptor
	}
	hd.HIDVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[2:4]))
	hd.CountryCode = buf[4]
	hd.NumDescriptors = buf[5]
	hd.ReportType = DescriptorType(buf[6])
	hd.ReportLength = binary.LittleEndian.Uint16(buf[7:9])
	return nil
}

func (hd *HIDDescriptor) Type() DescriptorType { return DescriptorTypeHID }
