package descriptors

import (
	"encoding/binary"
	"io"
)

// ClassSpecificDescriptor is the catch-all for class and vendor defined
// records (type byte 0x21-0x2F) that have no dedicated parser. The subtype
// byte is kept separately since every class family uses that layout.
type ClassSpecificDescriptor struct {
	DescriptorType DescriptorType
	Subtype        uint8
	Raw            []byte
}

func (cs *ClassSpecificDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 2 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	cs.DescriptorType = DescriptorType(buf[1])
	if len(buf) > 2 {
		cs.Subtype = buf[2]
	}
	cs.Raw = make([]byte, len(buf))
	copy(cs.Raw, buf)
	return nil
}

func (cs *ClassSpecificDescriptor) Type() DescriptorType { return cs.DescriptorType }

// Refine reinterprets a generic class-specific record once the owning
// interface class is known. It returns the input unchanged when no richer
// parse applies.
func (cs *ClassSpecificDescriptor) Refine(class ClassCode) Descriptor {
	if cs.DescriptorType != DescriptorTypeClassSpecificInterface {
		return cs
	}
	var refined Descriptor
	switch class {
	case ClassCodeCDCControl:
		switch CDCFunctionalSubtype(cs.Subtype) {
		case CDCFunctionalSubtypeHeader:
			refined = &CDCHeaderDescriptor{}
		case CDCFunctionalSubtypeCallManagement:
			refined = &CDCCallManagementDescriptor{}
		case CDCFunctionalSubtypeACM:
			refined = &CDCACMDescriptor{}
		case CDCFunctionalSubtypeUnion:
			refined = &CDCUnionDescriptor{}
		}
	case ClassCodeAudio:
		if AudioControlSubtype(cs.Subtype) == AudioControlSubtypeHeader {
			refined = &AudioControlHeaderDescriptor{}
		}
	case ClassCodeVideo:
		if VideoControlSubtype(cs.Subtype) == VideoControlSubtypeHeader {
			refined = &VideoControlHeaderDescriptor{}
		}
	}
	if refined == nil {
		return cs
	}
	if err := refined.UnmarshalBinary(cs.Raw); err != nil {
		return cs
	}
	return refined
}

type CDCFunctionalSubtype uint8

const (
	CDCFunctionalSubtypeHeader         CDCFunctionalSubtype = 0x00
	CDCFunctionalSubtypeCallManagement CDCFunctionalSubtype = 0x01
	CDCFunctionalSubtypeACM            CDCFunctionalSubtype = 0x02
	CDCFunctionalSubtypeUnion          CDCFunctionalSubtype = 0x06
)

// CDCHeaderDescriptor as defined in CDC spec 1.2, section 5.2.3.1.
type CDCHeaderDescriptor struct {
	CDCVersion BinaryCodedDecimal
}

func (ch *CDCHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 5 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if CDCFunctionalSubtype(buf[2]) != CDCFunctionalSubtypeHeader {
		return ErrInvalidDescriptor
	}
	ch.CDCVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[3:5]))
	return nil
}

func (ch *CDCHeaderDescriptor) Type() DescriptorType { return DescriptorTypeClassSpecificInterface }

// CDCCallManagementDescriptor as defined in PSTN spec 1.2, section 5.3.1.
type CDCCallManagementDescriptor struct {
	Capabilities  uint8
	DataInterface uint8
}

func (cm *CDCCallManagementDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 5 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if CDCFunctionalSubtype(buf[2]) != CDCFunctionalSubtypeCallManagement {
		return ErrInvalidDescriptor
	}
	cm.Capabilities = buf[3]
	cm.DataInterface = buf[4]
	return nil
}

func (cm *CDCCallManagementDescriptor) Type() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

// CDCACMDescriptor as defined in PSTN spec 1.2, section 5.3.2.
type CDCACMDescriptor struct {
	Capabilities uint8
}

func (ac *CDCACMDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 4 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if CDCFunctionalSubtype(buf[2]) != CDCFunctionalSubtypeACM {
		return ErrInvalidDescriptor
	}
	ac.Capabilities = buf[3]
	return nil
}

func (ac *CDCACMDescriptor) Type() DescriptorType { return DescriptorTypeClassSpecificInterface }

// CDCUnionDescriptor as defined in CDC spec 1.2, section 5.2.3.2.
type CDCUnionDescriptor struct {
	ControlInterface      uint8
	SubordinateInterfaces []uint8
}

func (cu *CDCUnionDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 4 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if CDCFunctionalSubtype(buf[2]) != CDCFunctionalSubtypeUnion {
		return ErrInvalidDescriptor
	}
	cu.ControlInterface = buf[3]
	cu.SubordinateInterfaces = make([]uint8, int(buf[0])-4)
	copy(cu.SubordinateInterfaces, buf[4:buf[0]])
	return nil
}

func (cu *CDCUnionDescriptor) Type() DescriptorType { return DescriptorTypeClassSpecificInterface }

type AudioControlSubtype uint8

const (
	AudioControlSubtypeHeader AudioControlSubtype = 0x01
)

// AudioControlHeaderDescriptor as defined in UAC spec 1.0, section 4.3.2.
type AudioControlHeaderDescriptor struct {
	AudioVersion BinaryCodedDecimal
	TotalLength  uint16
}

func (ah *AudioControlHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 7 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if AudioControlSubtype(buf[2]) != AudioControlSubtypeHeader {
		return ErrInvalidDescriptor
	}
	ah.AudioVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[3:5]))
	ah.TotalLength = binary.LittleEndian.Uint16(buf[5:7])
	return nil
}

func (ah *AudioControlHeaderDescriptor) Type() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}

type VideoControlSubtype uint8

const (
	VideoControlSubtypeHeader VideoControlSubtype = 0x01
)

// VideoControlHeaderDescriptor as defined in UVC spec 1.5, section 3.7.2.
type VideoControlHeaderDescriptor struct {
	VideoVersion   BinaryCodedDecimal
	TotalLength    uint16
	ClockFrequency uint32
}

func (vh *VideoControlHeaderDescriptor) UnmarshalBinary(buf []byte) error {
	if len(buf) < 11 || len(buf) < int(buf[0]) {
		return io.ErrShortBuffer
	}
	if DescriptorType(buf[1]) != DescriptorTypeClassSpecificInterface {
		return ErrInvalidDescriptor
	}
	if VideoControlSubtype(buf[2]) != VideoControlSubtypeHeader {
		return ErrInvalidDescriptor
	}
	vh.VideoVersion = BinaryCodedDecimal(binary.LittleEndian.Uint16(buf[3:5]))
	vh.TotalLength = binary.LittleEndian.Uint16(buf[5:7])
	vh.ClockFrequency = binary.LittleEndian.Uint32(buf[7:11])
	return nil
}

func (vh *VideoControlHeaderDescriptor) Type() DescriptorType {
	return DescriptorTypeClassSpecificInterface
}
