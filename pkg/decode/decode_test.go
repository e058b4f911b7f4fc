package decode

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

func setupFrame(addr uint8) []byte {
	// SETUP token, endpoint 0, GET_DESCRIPTOR for the device descriptor.
	return []byte{0xD0, 0x00, addr, 0x08, 0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
}

func TestDecodeSetupFrame(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode(setupFrame(1))
	if dd == nil {
		t.Fatal("Decode returned nil")
	}
	if dd.DataType != "USB Transaction" {
		t.Errorf("DataType = %q, want USB Transaction", dd.DataType)
	}
	want := "Get DEVICE Descriptor"
	if !strings.Contains(dd.Description, want) {
		t.Errorf("Description = %q, want it to contain %q", dd.Description, want)
	}
	if dd.Fields["bmRequestType"] != "0x80" {
		t.Errorf("bmRequestType = %q, want 0x80", dd.Fields["bmRequestType"])
	}
	if dd.Fields["wLength"] != "18" {
		t.Errorf("wLength = %q, want 18", dd.Fields["wLength"])
	}
	if dd.Fields["device_address"] != "1" {
		t.Errorf("device_address = %q, want 1", dd.Fields["device_address"])
	}
}

func TestDecodeCheckedTokenForm(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	frame := setupFrame(2)
	frame[0] = 0x2D // full PID byte encoding of SETUP
	dd := d.Decode(frame)
	if dd == nil || !strings.Contains(dd.Description, "Get DEVICE Descriptor") {
		t.Fatalf("Decode = %+v, want setup description", dd)
	}
}

func TestDecodeDescriptorFrame(t *testing.T) {
	frame := []byte{
		0x12, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x40,
		0x50, 0x1d, 0x5b, 0x61, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01,
	}
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode(frame)
	if dd.DataType != "USB Descriptors" {
		t.Fatalf("DataType = %q, want USB Descriptors", dd.DataType)
	}
	if dd.Fields["vendor_id"] != "0x1D50" {
		t.Errorf("vendor_id = %q, want 0x1D50", dd.Fields["vendor_id"])
	}
	if len(dd.Descriptors) != 1 {
		t.Errorf("Descriptors = %d, want 1", len(dd.Descriptors))
	}
	if d.TransactionCount() != 0 {
		t.Errorf("TransactionCount = %d, want 0 for descriptor data", d.TransactionCount())
	}
}

func TestDecodeMitmStatus(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	tests := []struct {
		code byte
		want string
	}{
		{0x00, "ACK"},
		{0x01, "NAK"},
		{0x02, "STALL"},
		{0x03, "DATA"},
	}
	for _, tt := range tests {
		dd := d.Decode([]byte{0x82, 0x01, tt.code})
		if dd.Fields["status"] != tt.want {
			t.Errorf("status byte %#02x: status = %q, want %q", tt.code, dd.Fields["status"], tt.want)
		}
	}
}

func TestDecodeMitmBulk(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode([]byte{0x83, 0x82, 0xDE, 0xAD, 0xBE, 0xEF})
	if !strings.Contains(dd.Description, "endpoint 2") {
		t.Errorf("Description = %q, want endpoint 2", dd.Description)
	}
	if !strings.Contains(dd.Description, "IN") {
		t.Errorf("Description = %q, want IN direction", dd.Description)
	}
	if dd.Fields["sample"] == "" {
		t.Error("sample field missing")
	}
}

func TestDecodeMitmCatchAll(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode([]byte{0xFF, 0x01, 0x02})
	if dd.Fields["header"] != "0xFF" {
		t.Errorf("header = %q, want 0xFF", dd.Fields["header"])
	}
}

func TestDecodeFieldMap(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode([]byte("log {addr: 1, ep=2, flag}"))
	if dd.DataType != "Field Map" {
		t.Fatalf("DataType = %q, want Field Map", dd.DataType)
	}
	want := map[string]string{"addr": "1", "ep": "2", "flag": ""}
	if !reflect.DeepEqual(dd.Fields, want) {
		t.Errorf("Fields = %v, want %v", dd.Fields, want)
	}
}

func TestDecodeRawFallback(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	dd := d.Decode([]byte{0x07})
	if dd.DataType != "Raw Data" {
		t.Fatalf("DataType = %q, want Raw Data", dd.DataType)
	}
	if dd.Details == "" {
		t.Error("Details hex dump missing")
	}
}

func TestDecodeTotality(t *testing.T) {
	d := NewDecoder(descriptors.SpeedAuto)
	for n := 0; n <= 128; n++ {
		frame := make([]byte, n)
		for i := range frame {
			frame[i] = byte(i*31 + n*7)
		}
		dd := d.Decode(frame)
		if n == 0 {
			if dd != nil {
				t.Fatal("Decode(empty) != nil")
			}
			continue
		}
		if dd == nil {
			t.Fatalf("Decode returned nil for %d byte frame", n)
		}
		if dd.DataType == "" || dd.Description == "" {
			t.Fatalf("empty result for %d byte frame: %+v", n, dd)
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	frames := [][]byte{
		setupFrame(1),
		{0x82, 0x01, 0x00},
		{0x07},
		[]byte("log {addr: 1}"),
	}
	for _, frame := range frames {
		d := NewDecoder(descriptors.SpeedAuto)
		first := d.Decode(frame)
		second := d.Decode(frame)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("frame %x: repeated decode differs:\n%+v\n%+v", frame, first, second)
		}
	}
}

func TestDecodeOversizeFlag(t *testing.T) {
	low := NewDecoder(descriptors.SpeedLow)
	dd := low.Decode(setupFrame(1)) // 12 bytes, over the 8 byte low-speed limit
	if dd.Fields["oversize"] != "true" {
		t.Errorf("oversize = %q, want true", dd.Fields["oversize"])
	}

	high := NewDecoder(descriptors.SpeedHigh)
	frame := make([]byte, 512)
	frame[0] = 0x83
	dd = high.Decode(frame)
	if _, ok := dd.Fields["oversize"]; ok {
		t.Error("512 byte frame flagged oversize at high speed")
	}
}

func TestSetSpeedResetsOnlyOnChange(t *testing.T) {
	d := NewDecoder(descriptors.SpeedHigh)
	d.Decode(setupFrame(1))
	d.Decode([]byte{0x82, 0x01, 0x00})
	if d.TransactionCount() != 2 {
		t.Fatalf("TransactionCount = %d, want 2", d.TransactionCount())
	}

	d.SetSpeed(descriptors.SpeedHigh)
	if d.TransactionCount() != 2 {
		t.Error("redundant SetSpeed reset the session")
	}
	d.SetSpeed(descriptors.SpeedFull)
	if d.TransactionCount() != 0 {
		t.Error("speed change did not reset the session")
	}
}
