// Package descriptors decodes the standard USB descriptor records captured
// off the bus into a typed tree. Parsing is deliberately forgiving: analyzer
// hardware frequently hands us truncated or garbled regions, so a bad record
// is recorded and skipped rather than failing the scan.
package descriptors

import (
	"encoding"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidDescriptor = errors.New("invalid descriptor")

type Descriptor interface {
	encoding.BinaryUnmarshaler
	Type() DescriptorType
}

// ParseError records a single descriptor record that failed to parse. The
// surrounding scan continues past it.
type ParseError struct {
	Offset int
	Kind   DescriptorType
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("descriptor %s at offset %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Unmarshal decodes a single length-prefixed descriptor record. Types without
// a dedicated parser land in ClassSpecificDescriptor (0x21-0x2F) or
// UnknownDescriptor so undocumented codes survive with their raw bytes.
func Unmarshal(buf []byte) (Descriptor, error) {
	if len(buf) < 2 {
		return nil, io.ErrShortBuffer
	}
	var desc Descriptor
	switch DescriptorType(buf[1]) {
	case DescriptorTypeDevice:
		desc = &DeviceDescriptor{}
	case DescriptorTypeConfiguration, DescriptorTypeOtherSpeedConfiguration:
		desc = &ConfigurationDescriptor{}
	case DescriptorTypeString:
		desc = &StringDescriptor{}
	case DescriptorTypeInterface:
		desc = &InterfaceDescriptor{}
	case DescriptorTypeEndpoint:
		desc = &EndpointDescriptor{}
	case DescriptorTypeDeviceQualifier:
		desc = &DeviceQualifierDescriptor{}
	case DescriptorTypeInterfaceAssociation:
		desc = &InterfaceAssociationDescriptor{}
	case DescriptorTypeBOS:
		desc = &BOSDescriptor{}
	case DescriptorTypeDeviceCapability:
		desc = &DeviceCapabilityDescriptor{}
	case DescriptorTypeHID:
		desc = &HIDDescriptor{}
	case DescriptorTypeSSEndpointCompanion:
		desc = &SuperSpeedEndpointCompanionDescriptor{}
	default:
		if DescriptorType(buf[1]).IsClassSpecific() {
			desc = &ClassSpecificDescriptor{}
		} else {
			desc = &UnknownDescriptor{}
		}
	}
	return desc, desc.UnmarshalBinary(buf)
}

// Parse scans a flat byte region as a sequence of {length, type, payload}
// records, length inclusive of the two byte header. A zero length advances by
// one byte; a record whose declared length exceeds the remaining buffer ends
// the scan (partial trailing data is discarded, not an error). Per-record
// parse failures are returned alongside the descriptors that did parse.
func Parse(buf []byte) ([]Descriptor, []error) {
	var descs []Descriptor
	var errs []error
	for i := 0; i < len(buf); {
		length := int(buf[i])
		if length == 0 {
			i++
			continue
		}
		if i+length > len(buf) {
			break
		}
		if length < 2 {
			errs = append(errs, &ParseError{Offset: i, Err: io.ErrShortBuffer})
			i += length
			continue
		}
		desc, err := Unmarshal(buf[i : i+length])
		if err != nil {
			errs = append(errs, &ParseError{Offset: i, Kind: DescriptorType(buf[i+1]), Err: err})
		} else {
			descs = append(descs, desc)
		}
		i += length
	}
	return descs, errs
}

type UnknownDescriptor struct {
	DescriptorType DescriptorType
	Raw            []byte
}

func (ud *UnknownDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	ud.DescriptorType = DescriptorType(buf[1])
	ud.Raw = make([]byte, len(buf))
	copy(ud.Raw, buf)
	return nil
}

func (ud *UnknownDescriptor) Type() DescriptorType { return ud.DescriptorType }
