package usbcap

import (
	"testing"

	"github.com/tracewire/go-usbcap/pkg/descriptors"
)

func TestSpeedFromCode(t *testing.T) {
	tests := []struct {
		code uint8
		want descriptors.Speed
	}{
		{0, descriptors.SpeedAuto},
		{1, descriptors.SpeedLow},
		{2, descriptors.SpeedFull},
		{3, descriptors.SpeedHigh},
		{4, descriptors.SpeedAuto}, // wireless, not meaningful here
		{5, descriptors.SpeedSuper},
		{6, descriptors.SpeedSuperPlus},
		{7, descriptors.SpeedAuto},
	}
	for _, tt := range tests {
		if got := speedFromCode(tt.code); got != tt.want {
			t.Errorf("speedFromCode(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestDeviceInfoIsAnalyzer(t *testing.T) {
	di := DeviceInfo{VendorID: DefaultVendorID, ProductID: DefaultProductID}
	if !di.IsAnalyzer() {
		t.Error("IsAnalyzer = false for default identity")
	}
	di.ProductID = 0x1234
	if di.IsAnalyzer() {
		t.Error("IsAnalyzer = true for foreign product")
	}
}
