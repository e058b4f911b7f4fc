// Command usbcap captures and decodes USB traffic from a hardware protocol
// analyzer.
package main

import (
	"github.com/spf13/cobra"

	"github.com/tracewire/go-usbcap/internal/config"
	"github.com/tracewire/go-usbcap/pkg/log"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "usbcap",
	Short: "USB protocol analyzer capture and decode tool",
	Long: `usbcap drives a USB protocol analyzer: it starts capture runs on the
hardware, streams raw frames from the capture endpoint, decodes them into
descriptors and transactions, and saves captures for later inspection or
pcap export.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return log.Configure(log.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
	},
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (default: built-in defaults plus USBCAP_* environment)")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(decodeCmd)
}
