package decode

import (
	"fmt"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

// Token identifies the packet kind carried by a standard capture frame.
// The analyzer emits the PID value in the high nibble; some firmware
// revisions instead emit the full PID byte with its check nibble, so both
// encodings are accepted.
type Token uint8

const (
	TokenSetup Token = 0xD0
	TokenIn    Token = 0x90
	TokenOut   Token = 0x10
	TokenData0 Token = 0xC0
	TokenData1 Token = 0x40
	TokenACK   Token = 0x20
	TokenNAK   Token = 0xA0
	TokenSTALL Token = 0xE0
)

var tokenNames = map[Token]string{
	TokenSetup: "SETUP",
	TokenIn:    "IN",
	TokenOut:   "OUT",
	TokenData0: "DATA0",
	TokenData1: "DATA1",
	TokenACK:   "ACK",
	TokenNAK:   "NAK",
	TokenSTALL: "STALL",
}

// checkedTokens maps the full-PID-byte frame headers seen from older
// firmware onto the canonical token values.
var checkedTokens = map[uint8]Token{
	0x2D: TokenSetup,
	0x69: TokenIn,
	0xE1: TokenOut,
	0xC3: TokenData0,
	0x4B: TokenData1,
	0xD2: TokenACK,
	0x5A: TokenNAK,
	0x1E: TokenSTALL,
}

func (t Token) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN (0x%02X)", uint8(t))
}

func lookupToken(header uint8) (Token, bool) {
	if _, ok := tokenNames[Token(header)]; ok {
		return Token(header), true
	}
	if tok, ok := checkedTokens[header]; ok {
		return tok, true
	}
	return 0, false
}

func (t Token) transferType() TransferType {
	switch t {
	case TokenSetup:
		return TransferTypeControl
	case TokenIn, TokenOut, TokenData0, TokenData1:
		return TransferTypeBulk
	}
	return TransferTypeUnknown
}

func (t Token) handshake() (Handshake, bool) {
	switch t {
	case TokenACK:
		return HandshakeACK, true
	case TokenNAK:
		return HandshakeNAK, true
	case TokenSTALL:
		return HandshakeSTALL, true
	}
	return HandshakeNone, false
}

// parseStandardFrame reconstructs a transaction from a standard capture
// frame: {token, endpoint, device address, payload length} followed by the
// payload. Returns nil when the frame does not carry a known token header.
func parseStandardFrame(frame []byte) *Transaction {
	if len(frame) < 4 {
		return nil
	}
	token, ok := lookupToken(frame[0])
	if !ok {
		return nil
	}

	endpoint := frame[1]
	payloadLen := int(frame[3])
	payload := frame[4:]
	if payloadLen < len(payload) {
		payload = payload[:payloadLen]
	}

	t := &Transaction{
		Type:          token.transferType(),
		DeviceAddress: frame[2],
		Endpoint:      endpoint & 0x0F,
		Direction:     descriptors.EndpointDirection(endpoint & 0x80),
		Data:          payload,
		Status:        HandshakeNone,
		Fields: map[string]string{
			"token":          token.String(),
			"payload_length": fmt.Sprintf("%d", payloadLen),
		},
		framing: "token",
	}
	if hs, ok := token.handshake(); ok {
		t.Status = hs
	}

	switch {
	case token == TokenSetup && payloadLen >= 8 && len(payload) >= 8:
		setup := &SetupPacket{}
		if err := setup.UnmarshalBinary(payload[:8]); err == nil {
			t.Setup = setup
			t.description = fmt.Sprintf("SETUP, device %d: %s", t.DeviceAddress, setup.Description())
			return t
		}
		fallthrough
	default:
		t.description = fmt.Sprintf("%s, device %d, endpoint %d, %d bytes",
			token, t.DeviceAddress, t.Endpoint, payloadLen)
	}
	return t
}
