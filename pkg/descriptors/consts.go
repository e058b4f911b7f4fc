package descriptors

import "fmt"

type DescriptorType uint8

const (
	DescriptorTypeDevice                  DescriptorType = 0x01
	DescriptorTypeConfiguration           DescriptorType = 0x02
	DescriptorTypeString                  DescriptorType = 0x03
	DescriptorTypeInterface               DescriptorType = 0x04
	DescriptorTypeEndpoint                DescriptorType = 0x05
	DescriptorTypeDeviceQualifier         DescriptorType = 0x06
	DescriptorTypeOtherSpeedConfiguration DescriptorType = 0x07
	DescriptorTypeInterfacePower          DescriptorType = 0x08
	DescriptorTypeOTG                     DescriptorType = 0x09
	DescriptorTypeDebug                   DescriptorType = 0x0A
	DescriptorTypeInterfaceAssociation    DescriptorType = 0x0B
	DescriptorTypeBOS                     DescriptorType = 0x0F
	DescriptorTypeDeviceCapability        DescriptorType = 0x10
	DescriptorTypeHID                     DescriptorType = 0x21
	DescriptorTypeHIDReport               DescriptorType = 0x22
	DescriptorTypeHIDPhysical             DescriptorType = 0x23
	DescriptorTypeClassSpecificInterface  DescriptorType = 0x24
	DescriptorTypeClassSpecificEndpoint   DescriptorType = 0x25
	DescriptorTypeSSEndpointCompanion     DescriptorType = 0x30
	DescriptorTypeSSPIsochCompanion       DescriptorType = 0x31
)

var descriptorTypeNames = map[DescriptorType]string{
	DescriptorTypeDevice:                  "DEVICE",
	DescriptorTypeConfiguration:           "CONFIGURATION",
	DescriptorTypeString:                  "STRING",
	DescriptorTypeInterface:               "INTERFACE",
	DescriptorTypeEndpoint:                "ENDPOINT",
	DescriptorTypeDeviceQualifier:         "DEVICE QUALIFIER",
	DescriptorTypeOtherSpeedConfiguration: "OTHER SPEED CONFIGURATION",
	DescriptorTypeInterfacePower:          "INTERFACE POWER",
	DescriptorTypeOTG:                     "OTG",
	DescriptorTypeDebug:                   "DEBUG",
	DescriptorTypeInterfaceAssociation:    "INTERFACE ASSOCIATION",
	DescriptorTypeBOS:                     "BOS",
	DescriptorTypeDeviceCapability:        "DEVICE CAPABILITY",
	DescriptorTypeHID:                     "HID",
	DescriptorTypeHIDReport:               "HID REPORT",
	DescriptorTypeHIDPhysical:             "HID PHYSICAL",
	DescriptorTypeClassSpecificInterface:  "CLASS SPECIFIC INTERFACE",
	DescriptorTypeClassSpecificEndpoint:   "CLASS SPECIFIC ENDPOINT",
	DescriptorTypeSSEndpointCompanion:     "SUPERSPEED ENDPOINT COMPANION",
	DescriptorTypeSSPIsochCompanion:       "SUPERSPEED PLUS ISOCH COMPANION",
}

func (dt DescriptorType) String() string {
	if name, ok := descriptorTypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN (0x%02X)", uint8(dt))
}

// IsClassSpecific reports whether the type byte falls in the class or
// vendor defined range 0x21-0x2F.
func (dt DescriptorType) IsClassSpecific() bool {
	return dt >= 0x21 && dt <= 0x2F
}

type ClassCode uint8

const (
	ClassCodeUseInterface       ClassCode = 0x00
	ClassCodeAudio              ClassCode = 0x01
	ClassCodeCDCControl         ClassCode = 0x02
	ClassCodeHID                ClassCode = 0x03
	ClassCodePhysical           ClassCode = 0x05
	ClassCodeImage              ClassCode = 0x06
	ClassCodePrinter            ClassCode = 0x07
	ClassCodeMassStorage        ClassCode = 0x08
	ClassCodeHub                ClassCode = 0x09
	ClassCodeCDCData            ClassCode = 0x0A
	ClassCodeSmartCard          ClassCode = 0x0B
	ClassCodeContentSecurity    ClassCode = 0x0D
	ClassCodeVideo              ClassCode = 0x0E
	ClassCodePersonalHealthcare ClassCode = 0x0F
	ClassCodeAudioVideo         ClassCode = 0x10
	ClassCodeBillboard          ClassCode = 0x11
	ClassCodeTypeCBridge        ClassCode = 0x12
	ClassCodeDiagnostic         ClassCode = 0xDC
	ClassCodeWirelessController ClassCode = 0xE0
	ClassCodeMiscellaneous      ClassCode = 0xEF
	ClassCodeApplication        ClassCode = 0xFE
	ClassCodeVendorSpecific     ClassCode = 0xFF
)

var classCodeNames = map[ClassCode]string{
	ClassCodeUseInterface:       "Defined at Interface Level",
	ClassCodeAudio:              "Audio",
	ClassCodeCDCControl:         "CDC Control",
	ClassCodeHID:                "HID",
	ClassCodePhysical:           "Physical",
	ClassCodeImage:              "Image",
	ClassCodePrinter:            "Printer",
	ClassCodeMassStorage:        "Mass Storage",
	ClassCodeHub:                "Hub",
	ClassCodeCDCData:            "CDC Data",
	ClassCodeSmartCard:          "Smart Card",
	ClassCodeContentSecurity:    "Content Security",
	ClassCodeVideo:              "Video",
	ClassCodePersonalHealthcare: "Personal Healthcare",
	ClassCodeAudioVideo:         "Audio/Video",
	ClassCodeBillboard:          "Billboard",
	ClassCodeTypeCBridge:        "USB Type-C Bridge",
	ClassCodeDiagnostic:         "Diagnostic",
	ClassCodeWirelessController: "Wireless Controller",
	ClassCodeMiscellaneous:      "Miscellaneous",
	ClassCodeApplication:        "Application Specific",
	ClassCodeVendorSpecific:     "Vendor Specific",
}

func (cc ClassCode) String() string {
	if name, ok := classCodeNames[cc]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (0x%02X)", uint8(cc))
}

// vendorNames covers vendors commonly seen on analyzer testbeds. The table is
// built once at init and never mutated.
var vendorNames = map[uint16]string{
	0x045E: "Microsoft",
	0x046D: "Logitech",
	0x04B4: "Cypress Semiconductor",
	0x04D8: "Microchip Technology",
	0x0483: "STMicroelectronics",
	0x05AC: "Apple",
	0x0781: "SanDisk",
	0x0925: "Lakeview Research",
	0x0BDA: "Realtek Semiconductor",
	0x1209: "pid.codes",
	0x138A: "Validity Sensors",
	0x16C0: "Van Ooijen Technische Informatica",
	0x1D50: "OpenMoko",
	0x1D6B: "Linux Foundation",
	0x2341: "Arduino",
	0x2E8A: "Raspberry Pi",
	0x8086: "Intel",
	0x8087: "Intel",
}

// VendorName returns a human readable vendor name for a USB vendor ID, or
// the empty string when the vendor is not in the table.
func VendorName(vid uint16) string {
	return vendorNames[vid]
}

type EndpointTransferType uint8

const (
	EndpointTransferTypeControl     EndpointTransferType = 0x00
	EndpointTransferTypeIsochronous EndpointTransferType = 0x01
	EndpointTransferTypeBulk        EndpointTransferType = 0x02
	EndpointTransferTypeInterrupt   EndpointTransferType = 0x03
)

func (et EndpointTransferType) String() string {
	switch et {
	case EndpointTransferTypeControl:
		return "Control"
	case EndpointTransferTypeIsochronous:
		return "Isochronous"
	case EndpointTransferTypeBulk:
		return "Bulk"
	case EndpointTransferTypeInterrupt:
		return "Interrupt"
	}
	return fmt.Sprintf("Unknown (0x%02X)", uint8(et))
}

type EndpointDirection uint8

const (
	EndpointDirectionOut EndpointDirection = 0x00
	EndpointDirectionIn  EndpointDirection = 0x80
)

func (ed EndpointDirection) String() string {
	if ed == EndpointDirectionIn {
		return "IN"
	}
	return "OUT"
}

// Speed is the negotiated USB bus speed, bounding the maximum packet size
// expected on the wire.
type Speed int

const (
	SpeedAuto Speed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
	SpeedSuper
	SpeedSuperPlus
)

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "low"
	case SpeedFull:
		return "full"
	case SpeedHigh:
		return "high"
	case SpeedSuper:
		return "super"
	case SpeedSuperPlus:
		return "super+"
	case SpeedAuto:
		return "auto"
	}
	return fmt.Sprintf("speed(%d)", int(s))
}

// MaxFrameSize is the largest packet the capture hardware should hand us at
// this speed. Auto answers the most permissive bound since the real speed is
// not yet known.
func (s Speed) MaxFrameSize() int {
	switch s {
	case SpeedLow:
		return 8
	case SpeedFull:
		return 64
	case SpeedHigh:
		return 512
	case SpeedSuper, SpeedSuperPlus:
		return 1024
	}
	return 1024
}

// ParseSpeed maps a config-file speed name to a Speed, defaulting to auto.
func ParseSpeed(name string) (Speed, error) {
	switch name {
	case "", "auto":
		return SpeedAuto, nil
	case "low":
		return SpeedLow, nil
	case "full":
		return SpeedFull, nil
	case "high":
		return SpeedHigh, nil
	case "super":
		return SpeedSuper, nil
	case "super+", "superplus":
		return SpeedSuperPlus, nil
	}
	return SpeedAuto, fmt.Errorf("unknown speed %q", name)
}
