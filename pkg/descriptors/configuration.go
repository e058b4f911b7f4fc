package descriptors

import (
	"encoding/binary"
	"io"
)

// ConfigurationDescriptor as defined in USB 2.0 spec, section 9.6.3. The
// Interfaces tree is populated by Link, not by UnmarshalBinary, since captured
// configuration regions arrive as a flat record sequence.
type ConfigurationDescriptor struct {
	TotalLength        uint16
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8

	// MaxPower is the raw bMaxPower field in 2 mA units.
	MaxPower uint8

	// Resolved from the string table by Link; empty when unresolved.
	Configuration string

	Interfaces []*InterfaceDescriptor
}

func (cd *ConfigurationDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 9 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	switch DescriptorType(buf[1]) {
	case DescriptorTypeConfiguration, DescriptorTypeOtherSpeedConfiguration:
	default:
		return ErrInvalidDescriptor
	}
	cd.TotalLength = binary.LittleEndian.Uint16(buf[2:4])
	cd.NumInterfaces = buf[4]
	cd.ConfigurationValue = buf[5]
	cd.ConfigurationIndex = buf[6]
	cd.Attributes = buf[7]
	cd.MaxPower = buf[8]
	return nil
}

func (cd *ConfigurationDescriptor) Type() DescriptorType { return DescriptorTypeConfiguration }

func (cd *ConfigurationDescriptor) MaxPowerMilliAmps() int { return int(cd.MaxPower) * 2 }

func (cd *ConfigurationDescriptor) SelfPowered() bool { return cd.Attributes&0x40 != 0 }

func (cd *ConfigurationDescriptor) RemoteWakeup() bool { return cd.Attributes&0x20 != 0 }

// InterfaceDescriptor as defined in USB 2.0 spec, section 9.6.5.
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    ClassCode
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8

	// Resolved from the string table by Link; empty when unresolved.
	Description string

	Endpoints []*EndpointDescriptor

	// ClassSpecific holds the class and vendor defined records (type byte
	// 0x21-0x2F) that followed this interface in the capture.
	ClassSpecific []Descriptor
}

func (id *InterfaceDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 9 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeInterface {
		return ErrInvalidDescriptor
	}
	id.InterfaceNumber = buf[2]
	id.AlternateSetting = buf[3]
	id.NumEndpoints = buf[4]
	id.InterfaceClass = ClassCode(buf[5])
	id.InterfaceSubClass = buf[6]
	id.InterfaceProtocol = buf[7]
	id.InterfaceIndex = buf[8]
	return nil
}

func (id *InterfaceDescriptor) Type() DescriptorType { return DescriptorTypeInterface }

// EndpointDescriptor as defined in USB 2.0 spec, section 9.6.6.
type EndpointDescriptor struct {
	EndpointAddress uint8
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8

	// Companion is attached by Link for SuperSpeed captures.
	Companion *SuperSpeedEndpointCompanionDescriptor
}

func (ed *EndpointDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 7 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeEndpoint {
		return ErrInvalidDescriptor
	}
	ed.EndpointAddress = buf[2]
	ed.Attributes = buf[3]
	ed.MaxPacketSize = binary.LittleEndian.Uint16(buf[4:6])
	ed.Interval = buf[6]
	return nil
}

func (ed *EndpointDescriptor) Type() DescriptorType { return DescriptorTypeEndpoint }

func (ed *EndpointDescriptor) Number() uint8 { return ed.EndpointAddress & 0x0F }

func (ed *EndpointDescriptor) Direction() EndpointDirection {
	return EndpointDirection(ed.EndpointAddress & 0x80)
}

func (ed *EndpointDescriptor) TransferType() EndpointTransferType {
	return EndpointTransferType(ed.Attributes & 0x03)
}

// InterfaceAssociationDescriptor as defined in the USB IAD ECN.
type InterfaceAssociationDescriptor struct {
	FirstInterface   uint8
	InterfaceCount   uint8
	FunctionClass    ClassCode
	FunctionSubClass uint8
	FunctionProtocol uint8
	FunctionIndex    uint8
}

func (iad *InterfaceAssociationDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 8 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeInterfaceAssociation {
		return ErrInvalidDescriptor
	}
	iad.FirstInterface = buf[2]
	iad.InterfaceCount = buf[3]
	iad.FunctionClass = ClassCode(buf[4])
	iad.FunctionSubClass = buf[5]
	iad.FunctionProtocol = buf[6]
	iad.FunctionIndex = buf[7]
	return nil
}

func (iad *InterfaceAssociationDescriptor) Type() DescriptorType {
	return DescriptorTypeInterfaceAssociation
}
