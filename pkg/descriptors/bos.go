package descriptors

import (
	"encoding/binary"
	"io"
)

// BOSDescriptor as defined in USB 3.2 spec, section 9.6.2. Capability records
// following the header are separate records in the capture and are attached
// by Link.
type BOSDescriptor struct {
	TotalLength   uint16
	NumDeviceCaps uint8

	Capabilities []*DeviceCapabilityDescriptor
}

func (bd *BOSDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 5 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeBOS {
		return ErrInvalidDescriptor
	}
	bd.TotalLength = binary.LittleEndian.Uint16(buf[2:4])
	bd.NumDeviceCaps = buf[4]
	return nil
}

func (bd *BOSDescriptor) Type() DescriptorType { return DescriptorTypeBOS }

type DeviceCapabilityType uint8

const (
	DeviceCapabilityTypeWirelessUSB       DeviceCapabilityType = 0x01
	DeviceCapabilityTypeUSB20Extension    DeviceCapabilityType = 0x02
	DeviceCapabilityTypeSuperSpeedUSB     DeviceCapabilityType = 0x03
	DeviceCapabilityTypeContainerID       DeviceCapabilityType = 0x04
	DeviceCapabilityTypePlatform          DeviceCapabilityType = 0x05
	DeviceCapabilityTypeSuperSpeedPlusUSB DeviceCapabilityType = 0x0A
)

func (dc DeviceCapabilityType) String() string {
	switch dc {
	case DeviceCapabilityTypeWirelessUSB:
		return "Wireless USB"
	case DeviceCapabilityTypeUSB20Extension:
		return "USB 2.0 Extension"
	case DeviceCapabilityTypeSuperSpeedUSB:
		return "SuperSpeed USB"
	case DeviceCapabilityTypeContainerID:
		return "Container ID"
	case DeviceCapabilityTypePlatform:
		return "Platform"
	case DeviceCapabilityTypeSuperSpeedPlusUSB:
		return "SuperSpeedPlus USB"
	}
	return "Unknown"
}

// DeviceCapabilityDescriptor as defined in USB 3.2 spec, section 9.6.2.
type DeviceCapabilityDescriptor struct {
	CapabilityType DeviceCapabilityType
	Data           []byte
}

func (dc *DeviceCapabilityDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 3 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeDeviceCapability {
		return ErrInvalidDescriptor
	}
	dc.CapabilityType = DeviceCapabilityType(buf[2])
	dc.Data = make([]byte, len(buf)-3)
	copy(dc.Data, buf[3:])
	return nil
}

func (dc *DeviceCapabilityDescriptor) Type() DescriptorType { return DescriptorTypeDeviceCapability }

// SuperSpeedEndpointCompanionDescriptor as defined in USB 3.2 spec,
// section 9.6.7.
type SuperSpeedEndpointCompanionDescriptor struct {
	MaxBurst         uint8
	Attributes       uint8
	BytesPerInterval uint16
}

func (ss *SuperSpeedEndpointCompanionDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 6 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeSSEndpointCompanion {
		return ErrInvalidDescriptor
	}
	ss.MaxBurst = buf[2]
	ss.Attributes = buf[3]
	ss.BytesPerInterval = binary.LittleEndian.Uint16(buf[4:6])
	return nil
}

func (ss *SuperSpeedEndpointCompanionDescriptor) Type() DescriptorType {
	return DescriptorTypeSSEndpointCompanion
}
