// Package requests defines the analyzer's vendor control protocol: the
// request codes and value encodings accepted on endpoint zero of the capture
// hardware.
package requests

import (
	"time"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

type RequestType uint8

const (
	// RequestTypeVendorOut is a host-to-device, vendor, device-recipient
	// request (bmRequestType 0x40).
	RequestTypeVendorOut RequestType = 0x40

	// RequestTypeVendorIn is the device-to-host direction of the same
	// (bmRequestType 0xC0).
	RequestTypeVendorIn RequestType = 0xC0
)

type RequestCode uint8

const (
	// RequestCodeCapture starts or stops capture. wValue bit 0 is the run
	// flag; bits 1-2 carry the speed selection.
	RequestCodeCapture RequestCode = 0x01

	// RequestCodeStatus reads the analyzer's run state.
	RequestCodeStatus RequestCode = 0x02

	// RequestCodeTestSignal configures the optional on-board test signal
	// generator. wValue bit 0 enables it.
	RequestCodeTestSignal RequestCode = 0x03
)

const (
	// ModeChangeTimeout bounds start/stop capture requests. Device-side
	// mode transitions are slower than polling, hence the longer bound.
	ModeChangeTimeout = 3 * time.Second

	// StatusTimeout bounds steady-state status polls.
	StatusTimeout = 1 * time.Second
)

const captureRunFlag = 0x01

// speedBits encodes the capture speed into wValue bits 1-2. The hardware
// knows three explicit speeds; auto and the SuperSpeed classes fall back to
// the high-speed sampling configuration.
func speedBits(speed descriptors.Speed) uint16 {
	switch speed {
	case descriptors.SpeedLow:
		return 0x02
	case descriptors.SpeedFull:
		return 0x04
	case descriptors.SpeedHigh:
		return 0x06
	}
	return 0x06
}

// CaptureValue builds the wValue for RequestCodeCapture.
func CaptureValue(run bool, speed descriptors.Speed) uint16 {
	value := speedBits(speed)
	if run {
		value |= captureRunFlag
	}
	return value
}

// TestSignalValue builds the wValue for RequestCodeTestSignal.
func TestSignalValue(enable bool) uint16 {
	if enable {
		return 0x01
	}
	return 0x00
}
