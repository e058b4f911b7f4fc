package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	usbcap "github.com/tracewire/go-usbcap"
	"github.com/tracewire/go-usbcap/pkg/capture"
	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

var (
	captureOutput     string
	capturePCAP       string
	captureDuration   time.Duration
	captureSpeed      string
	captureTestSignal bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run a capture session against the analyzer",
	Long: `Open the analyzer, start a capture run and record decoded frames
until interrupted (or until --duration elapses). The capture is saved as a
JSON document and can additionally be exported as a pcap file.`,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringVarP(&captureOutput, "output", "o", "capture.json", "capture document output path")
	f.StringVar(&capturePCAP, "pcap", "", "also export the capture to this pcap file")
	f.DurationVarP(&captureDuration, "duration", "d", 0, "stop after this long (default: run until interrupted)")
	f.StringVar(&captureSpeed, "speed", "", "capture speed (auto, low, full, high, super, superplus); overrides config")
	f.BoolVar(&captureTestSignal, "test-signal", false, "enable the analyzer's on-board test signal generator")
}

func runCapture(cmd *cobra.Command, args []string) error {
	sessCfg, err := cfg.Capture.SessionConfig()
	if err != nil {
		return err
	}
	if captureSpeed != "" {
		speed, err := descriptors.ParseSpeed(captureSpeed)
		if err != nil {
			return err
		}
		sessCfg.Speed = speed
	}

	analyzer, err := openAnalyzer()
	if err != nil {
		return err
	}
	defer analyzer.Close()

	if captureTestSignal || cfg.Capture.TestSignal {
		if err := analyzer.ConfigureTestSignal(true); err != nil {
			return err
		}
		defer analyzer.ConfigureTestSignal(false)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	session := capture.NewSession(analyzer, sessCfg)
	if err := session.Run(ctx); err != nil {
		return err
	}

	doc := session.Document()
	fmt.Printf("captured %d records (session %s)\n", len(doc.Records), doc.SessionID)

	if captureOutput != "" {
		if err := writeDocument(doc, captureOutput); err != nil {
			return err
		}
		fmt.Printf("saved %s\n", captureOutput)
	}
	if capturePCAP != "" {
		if err := writePCAP(doc, capturePCAP); err != nil {
			return err
		}
		fmt.Printf("exported %s\n", capturePCAP)
	}
	return nil
}

// openAnalyzer opens the device the configuration names. An explicit device
// path wins over the vendor:product pair.
func openAnalyzer() (*usbcap.Analyzer, error) {
	if cfg.Device.Path != "" {
		return usbcap.OpenPath(cfg.Device.Path)
	}
	vid, pid, err := cfg.Device.IDs()
	if err != nil {
		return nil, err
	}
	return usbcap.Open(vid, pid)
}

func writeDocument(doc *capture.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := doc.SaveJSON(f); err != nil {
		return err
	}
	return f.Close()
}

func writePCAP(doc *capture.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := doc.ExportPCAP(f); err != nil {
		return err
	}
	return f.Close()
}
