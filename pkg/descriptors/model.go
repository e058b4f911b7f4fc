package descriptors

// Device aggregates one capture's descriptor records into the USB device
// tree. It is rebuilt from scratch on every decode call; no device state is
// trusted to survive malformed or out-of-order capture input.
type Device struct {
	Descriptor     *DeviceDescriptor
	Configurations []*ConfigurationDescriptor

	// Strings holds string descriptors in arrival order. String descriptors
	// carry no self-index on the wire, so index field i resolves to entry
	// i-1 (index zero means "none" per the USB spec).
	Strings []*StringDescriptor

	Qualifier *DeviceQualifierDescriptor
	BOS       *BOSDescriptor

	// Orphans are records that had no parent to attach to, kept so nothing
	// observed on the bus is silently discarded.
	Orphans []Descriptor
}

// Link walks a flat record list and builds the descriptor tree: Interface
// records attach to the most recently seen Configuration, Endpoint records to
// the most recently seen Interface, and class-specific records (type byte
// 0x21-0x2F) to the most recently seen Interface, refined by its class. A
// second pass resolves string-index fields against the string table; indices
// out of table bounds are left unresolved, never an error.
func Link(descs []Descriptor) *Device {
	dev := &Device{}
	var config *ConfigurationDescriptor
	var iface *InterfaceDescriptor
	var endpoint *EndpointDescriptor
	var bos *BOSDescriptor

	for _, d := range descs {
		switch d := d.(type) {
		case *DeviceDescriptor:
			if dev.Descriptor == nil {
				dev.Descriptor = d
			}
		case *ConfigurationDescriptor:
			dev.Configurations = append(dev.Configurations, d)
			config, iface, endpoint = d, nil, nil
		case *InterfaceDescriptor:
			if config == nil {
				dev.Orphans = append(dev.Orphans, d)
				continue
			}
			config.Interfaces = append(config.Interfaces, d)
			iface, endpoint = d, nil
		case *EndpointDescriptor:
			if iface == nil {
				dev.Orphans = append(dev.Orphans, d)
				continue
			}
			iface.Endpoints = append(iface.Endpoints, d)
			endpoint = d
		case *SuperSpeedEndpointCompanionDescriptor:
			if endpoint == nil || endpoint.Companion != nil {
				dev.Orphans = append(dev.Orphans, d)
				continue
			}
			endpoint.Companion = d
		case *StringDescriptor:
			dev.Strings = append(dev.Strings, d)
		case *DeviceQualifierDescriptor:
			if dev.Qualifier == nil {
				dev.Qualifier = d
			}
		case *BOSDescriptor:
			if dev.BOS == nil {
				dev.BOS = d
			}
			bos = d
		case *DeviceCapabilityDescriptor:
			if bos == nil {
				dev.Orphans = append(dev.Orphans, d)
				continue
			}
			bos.Capabilities = append(bos.Capabilities, d)
		default:
			if d.Type().IsClassSpecific() && iface != nil {
				if cs, ok := d.(*ClassSpecificDescriptor); ok {
					d = cs.Refine(iface.InterfaceClass)
				}
				iface.ClassSpecific = append(iface.ClassSpecific, d)
				continue
			}
			dev.Orphans = append(dev.Orphans, d)
		}
	}

	dev.resolveStrings()
	return dev
}

// StringAt resolves a descriptor string-index field. Index zero and indices
// beyond the table answer false.
func (d *Device) StringAt(index uint8) (string, bool) {
	if index == 0 || int(index) > len(d.Strings) {
		return "", false
	}
	return d.Strings[index-1].String, true
}

func (d *Device) resolveStrings() {
	if dd := d.Descriptor; dd != nil {
		if s, ok := d.StringAt(dd.ManufacturerIndex); ok {
			dd.Manufacturer = s
		}
		if s, ok := d.StringAt(dd.ProductIndex); ok {
			dd.Product = s
		}
		if s, ok := d.StringAt(dd.SerialNumberIndex); ok {
			dd.SerialNumber = s
		}
	}
	for _, config := range d.Configurations {
		if s, ok := d.StringAt(config.ConfigurationIndex); ok {
			config.Configuration = s
		}
		for _, iface := range config.Interfaces {
			if s, ok := d.StringAt(iface.InterfaceIndex); ok {
				iface.Description = s
			}
		}
	}
}
