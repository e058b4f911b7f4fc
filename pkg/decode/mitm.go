package decode

import (
	"fmt"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

// Headers used by the man-in-the-middle capture framing, an alternate
// encoding emitted when the analyzer sits inline between host and device
// instead of sniffing passively.
const (
	mitmHeaderSetup       = 0x80
	mitmHeaderControlData = 0x81
	mitmHeaderStatus      = 0x82
	mitmHeaderBulkIntr    = 0x83
)

// parseMitmFrame reconstructs a transaction from an inline capture frame.
// Frames too short for their specific header shape, and any other frame
// with bit 7 of the header set, land in a generic catch-all rather than
// failing. Returns nil when bit 7 is clear.
func parseMitmFrame(frame []byte) *Transaction {
	if len(frame) == 0 || frame[0]&0x80 == 0 {
		return nil
	}

	switch frame[0] {
	case mitmHeaderSetup:
		if len(frame) >= 10 {
			setup := &SetupPacket{}
			if err := setup.UnmarshalBinary(frame[2:10]); err == nil {
				return &Transaction{
					Type:          TransferTypeControl,
					DeviceAddress: frame[1],
					Setup:         setup,
					Data:          frame[10:],
					Status:        HandshakeNone,
					description:   fmt.Sprintf("Control SETUP, device %d: %s", frame[1], setup.Description()),
					framing:       "mitm",
				}
			}
		}
	case mitmHeaderControlData:
		if len(frame) >= 2 {
			return &Transaction{
				Type:          TransferTypeControl,
				DeviceAddress: frame[1],
				Data:          frame[2:],
				Status:        HandshakeNone,
				description:   fmt.Sprintf("Control DATA, device %d, %d bytes", frame[1], len(frame)-2),
				framing:       "mitm",
			}
		}
	case mitmHeaderStatus:
		if len(frame) >= 3 {
			status := Handshake(frame[2])
			return &Transaction{
				Type:          TransferTypeControl,
				DeviceAddress: frame[1],
				Status:        status,
				description:   fmt.Sprintf("Control STATUS, device %d: %s", frame[1], status),
				framing:       "mitm",
			}
		}
	case mitmHeaderBulkIntr:
		if len(frame) >= 2 {
			endpoint := frame[1] & 0x0F
			direction := descriptors.EndpointDirection(frame[1] & 0x80)
			payload := frame[2:]
			t := &Transaction{
				Type:          TransferTypeBulk,
				Endpoint:      endpoint,
				Direction:     direction,
				Data:          payload,
				Status:        HandshakeNone,
				description:   fmt.Sprintf("Bulk/Interrupt %s, endpoint %d, %d bytes", direction, endpoint, len(payload)),
				framing:       "mitm",
			}
			if sample := payloadSample(payload); sample != "" {
				t.Fields = map[string]string{"sample": sample}
			}
			return t
		}
	}

	// Catch-all: bit 7 set but no recognizable shape.
	return &Transaction{
		Type:        TransferTypeUnknown,
		Data:        frame[1:],
		Status:      HandshakeNone,
		Fields:      map[string]string{"header": fmt.Sprintf("0x%02X", frame[0])},
		description: fmt.Sprintf("Unrecognized capture header 0x%02X, %d bytes", frame[0], len(frame)-1),
		framing:     "mitm",
	}
}

// payloadSample renders up to the first 16 payload bytes as hex for quick
// inspection without dumping the whole buffer.
func payloadSample(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	sample := payload
	if len(sample) > 16 {
		sample = sample[:16]
	}
	return fmt.Sprintf("% X", sample)
}
