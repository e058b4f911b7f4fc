package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// linkTypeUSBLinuxMmapped is DLT_USB_LINUX_MMAPPED (220), the closest
// registered link type for Linux USB captures. gopacket has no named
// constant for it.
const linkTypeUSBLinuxMmapped = layers.LinkType(220)

// pcapSnapLen mirrors the usual tcpdump default.
const pcapSnapLen = 262144

// ExportPCAP writes the capture's raw frames as a pcap stream so the
// capture can be opened in Wireshark and friends. Decoded data is not
// carried over; consumers re-dissect the raw frames.
func (d *Document) ExportPCAP(w io.Writer) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(pcapSnapLen, linkTypeUSBLinuxMmapped); err != nil {
		return fmt.Errorf("writing pcap header: %w", err)
	}
	base := d.StartedAt
	if base.IsZero() {
		base = time.Unix(0, 0)
	}
	for i, rec := range d.Records {
		ci := gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(rec.Timestamp * float64(time.Second))),
			CaptureLength: len(rec.RawData),
			Length:        len(rec.RawData),
		}
		if err := pw.WritePacket(ci, rec.RawData); err != nil {
			return fmt.Errorf("writing pcap record %d: %w", i, err)
		}
	}
	return nil
}
