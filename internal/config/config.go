// Package config loads the tool configuration with viper. Values come from
// an optional YAML file, USBCAP_* environment variables and built-in
// defaults, in that order of precedence.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tracewire/go-usbcap/pkg/capture"
	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Capture CaptureConfig `mapstructure:"capture"`
	Log     LogConfig     `mapstructure:"log"`
}

// DeviceConfig selects the analyzer. Path wins over vendor/product when set.
type DeviceConfig struct {
	VendorID  string `mapstructure:"vendor_id"`
	ProductID string `mapstructure:"product_id"`
	Path      string `mapstructure:"path"`
}

// IDs parses the hex vendor and product identifiers.
func (d DeviceConfig) IDs() (uint16, uint16, error) {
	vid, err := strconv.ParseUint(strings.TrimPrefix(d.VendorID, "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("device.vendor_id %q: %w", d.VendorID, err)
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(d.ProductID, "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("device.product_id %q: %w", d.ProductID, err)
	}
	return uint16(vid), uint16(pid), nil
}

type CaptureConfig struct {
	Speed      string `mapstructure:"speed"`
	PoolSize   int    `mapstructure:"pool_size"`
	BufferLen  int    `mapstructure:"buffer_len"`
	SinkDepth  int    `mapstructure:"sink_depth"`
	TestSignal bool   `mapstructure:"test_signal"`
}

// SessionConfig translates the capture section into a session configuration.
func (c CaptureConfig) SessionConfig() (capture.Config, error) {
	speed, err := descriptors.ParseSpeed(c.Speed)
	if err != nil {
		return capture.Config{}, fmt.Errorf("capture.speed: %w", err)
	}
	return capture.Config{
		Speed:     speed,
		PoolSize:  c.PoolSize,
		BufferLen: c.BufferLen,
		SinkDepth: c.SinkDepth,
	}, nil
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load builds the configuration. An empty path skips the file layer and
// uses environment variables and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("USBCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, _, err := c.Device.IDs(); err != nil {
		return err
	}
	if _, err := descriptors.ParseSpeed(c.Capture.Speed); err != nil {
		return fmt.Errorf("capture.speed: %w", err)
	}
	if c.Capture.PoolSize < 1 || c.Capture.PoolSize > 64 {
		return fmt.Errorf("capture.pool_size %d out of range [1,64]", c.Capture.PoolSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.vendor_id", "1d50")
	v.SetDefault("device.product_id", "615b")
	v.SetDefault("device.path", "")

	v.SetDefault("capture.speed", "auto")
	v.SetDefault("capture.pool_size", 4)
	v.SetDefault("capture.buffer_len", 16384)
	v.SetDefault("capture.sink_depth", 256)
	v.SetDefault("capture.test_signal", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}
