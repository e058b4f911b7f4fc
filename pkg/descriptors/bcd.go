package descriptors

import "fmt"

type BinaryCodedDecimal uint16

// String renders the usual bcdUSB form, e.g. 0x0210 -> "2.10".
func (bcd BinaryCodedDecimal) String() string {
	return fmt.Sprintf("%x.%02x", uint16(bcd)>>8, uint16(bcd)&0xff)
}
