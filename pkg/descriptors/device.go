package descriptors

import (
	"encoding/binary"
	"io"
)

// DeviceDescriptor as defined in USB 2.0 spec, section 9.6.1.
type DeviceDescriptor struct {
	USBVersion        BinaryCodedDecimal
	DeviceClass       ClassCode
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     BinaryCodedDecimal
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8

	// Resolved from the string table by Link; empty when unresolved.
	Manufacturer string
	Product      string
	SerialNumber string
}

const deviceDescriptorLength = 18

func (dd *DeviceDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < deviceDescriptorLength || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeDevice {
		return ErrInvalidDescriptor
	}
	dd.USBVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[2:4]))
	dd.DeviceClass = ClassCode(buf[4])
	dd.DeviceSubClass = buf[5]
	dd.DeviceProtocol = buf[6]
	dd.MaxPacketSize0 = buf[7]
	dd.VendorID = binary.LittleEndian.Uint16(buf[8:10])
	dd.ProductID = binary.LittleEndian.Uint16(buf[10:12])
	dd.DeviceVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[12:14]))
	dd.ManufacturerIndex = buf[14]
	dd.ProductIndex = buf[15]
	dd.SerialNumberIndex = buf[16]
	dd.NumConfigurations = buf[17]
	return nil
}

func (dd *DeviceDescriptor) Type() DescriptorType { return DescriptorTypeDevice }

func (dd *DeviceDescriptor) VendorName() string { return VendorName(dd.VendorID) }

// DeviceQualifierDescriptor as defined in USB 2.0 spec, section 9.6.2.
type DeviceQualifierDescriptor struct {
	USBVersion        BinaryCodedDecimal
	DeviceClass       ClassCode
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	NumConfigurations uint8
}

func (dq *DeviceQualifierDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 9 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeDeviceQualifier {
		return ErrInvalidDescriptor
	}
	dq.USBVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[2:4]))
	dq.DeviceClass = ClassCode(buf[4])
	dq.DeviceSubClass = buf[5]
	dq.DeviceProtocol = buf[6]
	dq.MaxPacketSize0 = buf[7]
	dq.NumConfigurations = buf[8]
	return nil
}

func (dq *DeviceQualifierDescriptor) Type() DescriptorType { return DescriptorTypeDeviceQualifier }
