package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tracewire/go-usbcap/pkg/capture"
)

var (
	decodePCAP    string
	decodeVerbose bool
	decodeSpeed   string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <capture.json>",
	Short: "Re-decode a saved capture and print it",
	Long: `Load a saved capture document, re-derive the decoded view of every
record from its raw frame and print the result. The raw frames are the
source of truth; the decode always reflects the current decoder, not
whatever was saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	f := decodeCmd.Flags()
	f.StringVar(&decodePCAP, "pcap", "", "export the capture to this pcap file instead of printing")
	f.BoolVarP(&decodeVerbose, "verbose", "v", false, "print decoded fields and hex details")
	f.StringVar(&decodeSpeed, "speed", "", "re-decode at this speed instead of the recorded one")
}

func runDecode(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := capture.LoadJSON(f)
	if err != nil {
		return err
	}
	if decodeSpeed != "" {
		doc.Speed = decodeSpeed
	}
	if err := doc.Redecode(); err != nil {
		return err
	}

	if decodePCAP != "" {
		if err := writePCAP(doc, decodePCAP); err != nil {
			return err
		}
		fmt.Printf("exported %s\n", decodePCAP)
		return nil
	}

	fmt.Printf("session %s, %s speed, %d records\n", doc.SessionID, doc.Speed, len(doc.Records))
	for i, rec := range doc.Records {
		printRecord(i, rec)
	}
	return nil
}

func printRecord(i int, rec capture.Record) {
	if rec.Decoded == nil {
		fmt.Printf("%6d  %12.6f  (empty frame)\n", i, rec.Timestamp)
		return
	}
	fmt.Printf("%6d  %12.6f  %-16s %s\n", i, rec.Timestamp, rec.Decoded.DataType, rec.Decoded.Description)
	if !decodeVerbose {
		return
	}
	keys := make([]string, 0, len(rec.Decoded.Fields))
	for k := range rec.Decoded.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("        %s: %s\n", k, rec.Decoded.Fields[k])
	}
	if rec.Decoded.Details != "" {
		fmt.Println(rec.Decoded.Details)
	}
}
