// Package usbcap drives a USB protocol analyzer over usbdevfs: it opens the
// capture hardware, configures capture runs through its vendor control
// protocol and streams raw capture frames from the bulk-in endpoint.
package usbcap

import (
	"errors"
	"fmt"
	"sync/atomic"

	usb "github.com/kevmo314/go-usb"
	"golang.org/x/sys/unix"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
	"github.com/tracewire/go-usbcap/pkg/log"
	"github.com/tracewire/go-usbcap/pkg/transfers"
)

// Default analyzer identity (OpenMoko-assigned).
const (
	DefaultVendorID  uint16 = 0x1D50
	DefaultProductID uint16 = 0x615B
)

var (
	ErrAnalyzerNotFound        = errors.New("analyzer not found")
	ErrCaptureEndpointNotFound = errors.New("capture endpoint not found")
)

// Analyzer is an open capture device. It wraps the usbdevfs handle together
// with the located capture interface and endpoint.
type Analyzer struct {
	handle *usb.DeviceHandle
	closed *atomic.Bool
	logger log.Logger

	iface         uint8
	endpoint      uint8
	maxPacketSize int

	captureSpeed descriptors.Speed
}

// Open finds the first device matching vid:pid and opens it.
func Open(vid, pid uint16) (*Analyzer, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Descriptor.VendorID != vid || dev.Descriptor.ProductID != pid {
			continue
		}
		handle, err := dev.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %04x:%04x: %w", vid, pid, err)
		}
		return newAnalyzer(handle)
	}
	return nil, ErrAnalyzerNotFound
}

// OpenPath opens an analyzer by its /dev/bus/usb node path.
func OpenPath(path string) (*Analyzer, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	a, err := OpenFileDescriptor(uintptr(fd))
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return a, nil
}

// OpenFileDescriptor wraps an already-open usbdevfs file descriptor, for
// callers that receive the device from a permission broker. The analyzer
// takes ownership of the descriptor.
func OpenFileDescriptor(fd uintptr) (*Analyzer, error) {
	handle, err := usb.WrapSysDevice(int(fd))
	if err != nil {
		return nil, err
	}
	return newAnalyzer(handle)
}

func newAnalyzer(handle *usb.DeviceHandle) (*Analyzer, error) {
	a := &Analyzer{
		handle:       handle,
		closed:       &atomic.Bool{},
		captureSpeed: descriptors.SpeedAuto,
		logger:       log.GetLogger().WithField("component", "analyzer"),
	}
	if err := a.bindCaptureInterface(); err != nil {
		handle.Close()
		return nil, err
	}
	return a, nil
}

// bindCaptureInterface locates the vendor-specific interface carrying the
// bulk-in capture endpoint and claims it, detaching any kernel driver first.
func (a *Analyzer) bindCaptureInterface() error {
	config, err := a.handle.ConfigDescriptorByValue(0)
	if err != nil {
		return fmt.Errorf("reading configuration descriptor: %w", err)
	}
	for i := range config.Interfaces {
		for _, alt := range config.Interfaces[i].AltSettings {
			if alt.InterfaceClass != uint8(descriptors.ClassCodeVendorSpecific) {
				continue
			}
			for _, ep := range alt.Endpoints {
				if !ep.IsInput() || ep.TransferType() != usb.TransferType(descriptors.EndpointTransferTypeBulk) {
					continue
				}
				if err := a.handle.DetachKernelDriver(alt.InterfaceNumber); err != nil {
					a.logger.WithError(err).Debug("kernel driver detach skipped")
				}
				if err := a.handle.ClaimInterface(alt.InterfaceNumber); err != nil {
					return fmt.Errorf("claiming interface %d: %w", alt.InterfaceNumber, err)
				}
				a.iface = alt.InterfaceNumber
				a.endpoint = ep.EndpointAddr
				a.maxPacketSize = int(ep.MaxPacketSize)
				a.logger.Infof("capture endpoint 0x%02X on interface %d, %d byte packets",
					a.endpoint, a.iface, a.maxPacketSize)
				return nil
			}
		}
	}
	return ErrCaptureEndpointNotFound
}

func (a *Analyzer) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.handle.Close()
}

// Speed reports the analyzer's own negotiated bus speed from the usbdevfs
// speed code.
func (a *Analyzer) Speed() (descriptors.Speed, error) {
	code, err := a.handle.GetSpeed()
	if err != nil {
		return descriptors.SpeedAuto, fmt.Errorf("reading device speed: %w", err)
	}
	return speedFromCode(uint8(code)), nil
}

// speedFromCode maps the kernel's usb_device_speed enum onto Speed. Unknown
// and wireless codes answer auto, the permissive default.
func speedFromCode(code uint8) descriptors.Speed {
	switch code {
	case 1:
		return descriptors.SpeedLow
	case 2:
		return descriptors.SpeedFull
	case 3:
		return descriptors.SpeedHigh
	case 5:
		return descriptors.SpeedSuper
	case 6:
		return descriptors.SpeedSuperPlus
	}
	return descriptors.SpeedAuto
}

// Endpoint returns the bulk-in capture endpoint address.
func (a *Analyzer) Endpoint() uint8 { return a.endpoint }

// MaxPacketSize returns the capture endpoint's wMaxPacketSize.
func (a *Analyzer) MaxPacketSize() int { return a.maxPacketSize }

// NewPump builds a transfer pump bound to the capture endpoint. The pump
// copies the analyzer's endpoint configuration and owns its own transfer
// pool; several pumps can be created over the device's lifetime as capture
// sessions come and go.
func (a *Analyzer) NewPump(sink chan<- []byte, poolSize, maxBufferLen int) (*transfers.Pump, error) {
	return transfers.NewPump(a.handle, sink, a.endpoint, poolSize, maxBufferLen)
}

// DeviceInfo is one entry in a connected-device listing.
type DeviceInfo struct {
	Path       string
	Bus        uint8
	Address    uint8
	VendorID   uint16
	ProductID  uint16
	USBVersion descriptors.BinaryCodedDecimal
	Class      descriptors.ClassCode
	Vendor     string
}

// IsAnalyzer reports whether the entry matches the default analyzer
// identity.
func (di DeviceInfo) IsAnalyzer() bool {
	return di.VendorID == DefaultVendorID && di.ProductID == DefaultProductID
}

// ListDevices enumerates connected USB devices without opening them.
func ListDevices() ([]DeviceInfo, error) {
	devices, err := usb.DeviceList()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	infos := make([]DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		infos = append(infos, DeviceInfo{
			Path:       dev.Path,
			Bus:        dev.Bus,
			Address:    dev.Address,
			VendorID:   dev.Descriptor.VendorID,
			ProductID:  dev.Descriptor.ProductID,
			USBVersion: descriptors.BinaryCodedDecimal(dev.Descriptor.USBVersion),
			Class:      descriptors.ClassCode(dev.Descriptor.DeviceClass),
			Vendor:     descriptors.VendorName(dev.Descriptor.VendorID),
		})
	}
	return infos, nil
}
