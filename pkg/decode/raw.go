package decode

import (
	"encoding/hex"
	"fmt"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

// decodeRaw is the terminal fallback: read what little structure the
// minimum record header allows and dump the rest as hex/ASCII.
func decodeRaw(frame []byte) *DecodedData {
	fields := map[string]string{
		"length":          fmt.Sprintf("%d", len(frame)),
		"first_byte":      fmt.Sprintf("0x%02X", frame[0]),
		"descriptor_type": descriptors.DescriptorType(frame[0]).String(),
	}
	if len(frame) >= 2 {
		fields["second_byte"] = fmt.Sprintf("0x%02X", frame[1])
	}
	return &DecodedData{
		DataType:    "Raw Data",
		Description: fmt.Sprintf("%d bytes of unclassified data", len(frame)),
		Fields:      fields,
		Details:     hexDump(frame),
	}
}

func hexDump(buf []byte) string {
	return hex.Dump(buf)
}
