package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDeviceTypeString(t *testing.T) {
	tests := []struct {
		device   DeviceType
		expected string
	}{
		{DeviceUnknown, "unknown"},
		{DeviceMobile, "mobile"},
		{DeviceTablet, "tablet"},
		{DeviceDesktop, "desktop"},
		{DeviceType(42), "device(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.device.String())
		})
	}
}

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		input       string
		expected    DeviceType
		expectError bool
	}{
		{"mobile", DeviceMobile, false},
		{"Tablet", DeviceTablet, false},
		{" desktop ", DeviceDesktop, false},
		{"unknown", DeviceUnknown, false},
		{"smartwatch", DeviceUnknown, true},
		{"", DeviceUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			device, err := ParseDeviceType(tt.input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, device)
			}
		})
	}
}

func TestDeviceTypeJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(DeviceTablet)
	require.NoError(t, err)
	assert.Equal(t, `"tablet"`, string(data))

	var device DeviceType
	require.NoError(t, json.Unmarshal([]byte(`"desktop"`), &device))
	assert.Equal(t, DeviceDesktop, device)

	// Numeric form is still accepted for older clients
	require.NoError(t, json.Unmarshal([]byte(`1`), &device))
	assert.Equal(t, DeviceMobile, device)

	assert.Error(t, json.Unmarshal([]byte(`7`), &device))
	assert.Error(t, json.Unmarshal([]byte(`"fridge"`), &device))
}

func TestAllVariants(t *testing.T) {
	variants := AllVariants()
	require.Len(t, variants, 6)

	seen := make(map[Variant]bool)
	for _, v := range variants {
		seen[v] = true
	}

	for _, device := range []DeviceType{DeviceDesktop, DeviceMobile, DeviceTablet} {
		for _, inlined := range []bool{true, false} {
			assert.True(t, seen[Variant{Device: device, Inlined: inlined}],
				"missing variant %s inlined=%v", device, inlined)
		}
	}
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "mobile/inline", Variant{Device: DeviceMobile, Inlined: true}.String())
	assert.Equal(t, "desktop/attachment", Variant{Device: DeviceDesktop, Inlined: false}.String())
}

func TestDurationUnmarshalYAML(t *testing.T) {
	tests := []struct {
		input       string
		expected    time.Duration
		expectError bool
	}{
		{"30s", 30 * time.Second, false},
		{"60m", time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"1.5d", 36 * time.Hour, false},
		{"banana", 0, true},
		{"30x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := yaml.Unmarshal([]byte("\""+tt.input+"\""), &d)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, d.ToDuration())
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	err := NewRenderError("https://example.com/a", "navigation failed", nil)
	assert.Contains(t, err.Error(), "https://example.com/a")
	assert.Contains(t, err.Error(), "navigation failed")
	assert.False(t, err.Timeout)

	timeoutErr := NewRenderTimeout("https://example.com/a", nil)
	assert.True(t, timeoutErr.Timeout)
	assert.Contains(t, timeoutErr.Error(), "timed out")
}
