package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	vid, pid, err := cfg.Device.IDs()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1D50), vid)
	assert.Equal(t, uint16(0x615B), pid)

	assert.Equal(t, "auto", cfg.Capture.Speed)
	assert.Equal(t, 4, cfg.Capture.PoolSize)
	assert.Equal(t, 16384, cfg.Capture.BufferLen)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbcap.yaml")
	data := []byte(`
device:
  vendor_id: "0x1209"
  product_id: "0001"
capture:
  speed: high
  pool_size: 8
log:
  level: debug
  file: /tmp/usbcap.log
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	vid, pid, err := cfg.Device.IDs()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1209), vid)
	assert.Equal(t, uint16(0x0001), pid)
	assert.Equal(t, 8, cfg.Capture.PoolSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	sess, err := cfg.Capture.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, descriptors.SpeedHigh, sess.Speed)
	assert.Equal(t, 8, sess.PoolSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("USBCAP_CAPTURE_SPEED", "full")
	t.Setenv("USBCAP_DEVICE_VENDOR_ID", "16c0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Capture.Speed)

	vid, _, err := cfg.Device.IDs()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x16C0), vid)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("speed", func(t *testing.T) {
		t.Setenv("USBCAP_CAPTURE_SPEED", "warp")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("vendor id", func(t *testing.T) {
		t.Setenv("USBCAP_DEVICE_VENDOR_ID", "not-hex")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("pool size", func(t *testing.T) {
		t.Setenv("USBCAP_CAPTURE_POOL_SIZE", "500")
		_, err := Load("")
		require.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})
}
