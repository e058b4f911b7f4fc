package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

// TransferType classifies a reconstructed transaction by the USB transfer
// kind it belongs to.
type TransferType uint8

const (
	TransferTypeUnknown TransferType = iota
	TransferTypeControl
	TransferTypeBulk
	TransferTypeInterrupt
	TransferTypeIsochronous
)

func (tt TransferType) String() string {
	switch tt {
	case TransferTypeControl:
		return "Control"
	case TransferTypeBulk:
		return "Bulk"
	case TransferTypeInterrupt:
		return "Interrupt"
	case TransferTypeIsochronous:
		return "Isochronous"
	}
	return "Unknown"
}

// Handshake is the status stage outcome of a transaction.
type Handshake uint8

const (
	HandshakeACK   Handshake = 0x00
	HandshakeNAK   Handshake = 0x01
	HandshakeSTALL Handshake = 0x02
	HandshakeData  Handshake = 0x03

	HandshakeNone Handshake = 0xFF
)

func (h Handshake) String() string {
	switch h {
	case HandshakeACK:
		return "ACK"
	case HandshakeNAK:
		return "NAK"
	case HandshakeSTALL:
		return "STALL"
	case HandshakeData:
		return "DATA"
	case HandshakeNone:
		return "NONE"
	}
	return fmt.Sprintf("UNKNOWN (0x%02X)", uint8(h))
}

// SetupPacket is the 8-byte payload of a control transfer's setup stage.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

func (p *SetupPacket) UnmarshalBinary(buf []byte) error {
	if len(buf) < 8 {
		return io.ErrShortBuffer
	}
	p.RequestType = buf[0]
	p.Request = buf[1]
	p.Value = binary.LittleEndian.Uint16(buf[2:4])
	p.Index = binary.LittleEndian.Uint16(buf[4:6])
	p.Length = binary.LittleEndian.Uint16(buf[6:8])
	return nil
}

// IsDeviceToHost reports the direction bit of bmRequestType.
func (p *SetupPacket) IsDeviceToHost() bool {
	return p.RequestType&0x80 != 0
}

// IsStandard reports whether the type bits of bmRequestType select a
// standard request.
func (p *SetupPacket) IsStandard() bool {
	return p.RequestType&0x60 == 0x00
}

// Standard request codes, USB 2.0 table 9-4.
const (
	requestGetStatus        = 0x00
	requestClearFeature     = 0x01
	requestSetFeature       = 0x03
	requestSetAddress       = 0x05
	requestGetDescriptor    = 0x06
	requestSetDescriptor    = 0x07
	requestGetConfiguration = 0x08
	requestSetConfiguration = 0x09
	requestGetInterface     = 0x0A
	requestSetInterface     = 0x0B
	requestSynchFrame       = 0x0C
)

// Description renders a one-line human summary of the request. Standard
// requests get a request-specific rendering; class and vendor requests only
// identify the request code.
func (p *SetupPacket) Description() string {
	switch p.RequestType & 0x60 {
	case 0x20:
		return fmt.Sprintf("Class Request 0x%02X", p.Request)
	case 0x40:
		return fmt.Sprintf("Vendor Request 0x%02X", p.Request)
	case 0x60:
		return fmt.Sprintf("Reserved Request 0x%02X", p.Request)
	}

	switch p.Request {
	case requestGetStatus:
		return "Get Status"
	case requestClearFeature:
		return fmt.Sprintf("Clear Feature %d", p.Value)
	case requestSetFeature:
		return fmt.Sprintf("Set Feature %d", p.Value)
	case requestSetAddress:
		return fmt.Sprintf("Set Address to %d", p.Value)
	case requestGetDescriptor:
		return fmt.Sprintf("Get %s Descriptor", descriptors.DescriptorType(p.Value>>8))
	case requestSetDescriptor:
		return fmt.Sprintf("Set %s Descriptor", descriptors.DescriptorType(p.Value>>8))
	case requestGetConfiguration:
		return "Get Configuration"
	case requestSetConfiguration:
		return fmt.Sprintf("Set Configuration %d", p.Value&0xFF)
	case requestGetInterface:
		return fmt.Sprintf("Get Interface %d Alternate", p.Index)
	case requestSetInterface:
		return fmt.Sprintf("Set Interface %d Alternate %d", p.Index, p.Value)
	case requestSynchFrame:
		return fmt.Sprintf("Synch Frame, endpoint %d", p.Index&0x0F)
	}
	return fmt.Sprintf("Standard Request 0x%02X", p.Request)
}

// fields returns the setup packet rendered as flat string fields for the
// decoded output.
func (p *SetupPacket) fields() map[string]string {
	return map[string]string{
		"bmRequestType": fmt.Sprintf("0x%02X", p.RequestType),
		"bRequest":      fmt.Sprintf("0x%02X", p.Request),
		"wValue":        fmt.Sprintf("0x%04X", p.Value),
		"wIndex":        fmt.Sprintf("0x%04X", p.Index),
		"wLength":       fmt.Sprintf("%d", p.Length),
	}
}

// Transaction is one reconstructed USB transaction. IDs increase
// monotonically per decoder session and are assigned by the orchestrator;
// they are bookkeeping, not wire data, and are left out of the decoded
// output so equal frames decode identically.
type Transaction struct {
	ID            uint64
	Type          TransferType
	DeviceAddress uint8
	Endpoint      uint8
	Direction     descriptors.EndpointDirection
	Setup         *SetupPacket
	Data          []byte
	Status        Handshake
	Fields        map[string]string

	description string
	framing     string
}

func (t *Transaction) decoded() *DecodedData {
	fields := map[string]string{
		"transfer_type":  t.Type.String(),
		"device_address": fmt.Sprintf("%d", t.DeviceAddress),
		"endpoint":       fmt.Sprintf("%d", t.Endpoint),
		"framing":        t.framing,
	}
	if t.Status != HandshakeNone {
		fields["status"] = t.Status.String()
	}
	if len(t.Data) > 0 {
		fields["data_length"] = fmt.Sprintf("%d", len(t.Data))
	}
	if t.Setup != nil {
		for k, v := range t.Setup.fields() {
			fields[k] = v
		}
	}
	for k, v := range t.Fields {
		fields[k] = v
	}
	dd := &DecodedData{
		DataType:    "USB Transaction",
		Description: t.description,
		Fields:      fields,
	}
	if len(t.Data) > 0 {
		dd.Details = hexDump(t.Data)
	}
	return dd
}
