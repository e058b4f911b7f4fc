package usbcap

import (
	"fmt"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
	"github.com/tracewire/go-usbcap/pkg/requests"
)

// StartCapture puts the analyzer into capture mode at the given speed.
func (a *Analyzer) StartCapture(speed descriptors.Speed) error {
	_, err := a.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorOut),
		uint8(requests.RequestCodeCapture),
		requests.CaptureValue(true, speed),
		0, nil,
		requests.ModeChangeTimeout,
	)
	if err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}
	a.captureSpeed = speed
	a.logger.Infof("capture started, %s speed", speed)
	return nil
}

// StopCapture takes the analyzer out of capture mode.
func (a *Analyzer) StopCapture() error {
	_, err := a.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorOut),
		uint8(requests.RequestCodeCapture),
		requests.CaptureValue(false, a.captureSpeed),
		0, nil,
		requests.ModeChangeTimeout,
	)
	if err != nil {
		return fmt.Errorf("stopping capture: %w", err)
	}
	a.logger.Info("capture stopped")
	return nil
}

// Status polls whether the analyzer is currently capturing.
func (a *Analyzer) Status() (bool, error) {
	buf := make([]byte, 1)
	n, err := a.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorIn),
		uint8(requests.RequestCodeStatus),
		0, 0, buf,
		requests.StatusTimeout,
	)
	if err != nil {
		return false, fmt.Errorf("reading capture status: %w", err)
	}
	if n < 1 {
		return false, fmt.Errorf("short capture status read")
	}
	return buf[0]&0x01 != 0, nil
}

// ConfigureTestSignal switches the on-board test signal generator, for
// exercising the capture path without a device under test.
func (a *Analyzer) ConfigureTestSignal(enable bool) error {
	_, err := a.handle.ControlTransfer(
		uint8(requests.RequestTypeVendorOut),
		uint8(requests.RequestCodeTestSignal),
		requests.TestSignalValue(enable),
		0, nil,
		requests.ModeChangeTimeout,
	)
	if err != nil {
		return fmt.Errorf("configuring test signal: %w", err)
	}
	return nil
}
