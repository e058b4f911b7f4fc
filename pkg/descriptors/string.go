package descriptors

import (
	"encoding/binary"
	"io"
	"unicode"
	"unicode/utf16"
)

// StringDescriptor as defined in USB 2.0 spec, section 9.6.7. The payload is
// UTF-16LE; captures occasionally contain torn strings, so decoding is
// best-effort per octet pair and corrupt characters are dropped instead of
// failing the record.
type StringDescriptor struct {
	String string
}

func (sd *StringDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeString {
		return ErrInvalidDescriptor
	}
	length := int(buf[0])
	units := make([]uint16, 0, (length-2)/2)
	for i := 2; i+1 < length; i += 2 {
		units = append(units, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	runes := utf16.Decode(units)
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		if r == unicode.ReplacementChar {
			continue
		}
		out = append(out, r)
	}
	sd.String = string(out)
	return nil
}

func (sd *StringDescriptor) Type() DescriptorType { return DescriptorTypeString }

// LanguageIDs interprets string descriptor index zero, which carries the
// supported LANGID list instead of text.
func LanguageIDs(buf []byte) []uint16 {
	if len(buf) < 4 || DescriptorType(buf[1]) != DescriptorTypeString {
		return nil
	}
	length := int(buf[0])
	if length > len(buf) {
		length = len(buf)
	}
	ids := make([]uint16, 0, (length-2)/2)
	for i := 2; i+1 < length; i += 2 {
		ids = append(ids, binary.LittleEndian.Uint16(buf[i:i+2]))
	}
	return ids
}
