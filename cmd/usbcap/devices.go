package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	usbcap "github.com/tracewire/go-usbcap"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected USB devices",
	Long: `List the USB devices visible through usbdevfs. Analyzer hardware
matching the default identity is marked with an asterisk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := usbcap.ListDevices()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, " \tBUS:ADDR\tID\tUSB\tCLASS\tVENDOR")
		for _, di := range infos {
			marker := " "
			if di.IsAnalyzer() {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%03d:%03d\t%04x:%04x\t%s\t%s\t%s\n",
				marker, di.Bus, di.Address, di.VendorID, di.ProductID,
				di.USBVersion, di.Class, di.Vendor)
		}
		return w.Flush()
	},
}
