package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeviceType identifies the device class a PDF variant is rendered for.
// The numeric values are persisted in the artifact store and must not change.
type DeviceType int

const (
	// DeviceUnknown is never produced by request validation but must remain
	// representable so stored rows are never rejected on read.
	DeviceUnknown DeviceType = 0
	DeviceMobile  DeviceType = 1
	DeviceTablet  DeviceType = 2
	DeviceDesktop DeviceType = 3
)

// String returns the string representation of DeviceType
func (d DeviceType) String() string {
	switch d {
	case DeviceMobile:
		return "mobile"
	case DeviceTablet:
		return "tablet"
	case DeviceDesktop:
		return "desktop"
	case DeviceUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("device(%d)", int(d))
	}
}

// Valid reports whether the device type is one of the closed enumeration values.
func (d DeviceType) Valid() bool {
	return d >= DeviceUnknown && d <= DeviceDesktop
}

// ParseDeviceType converts a string to a DeviceType
func ParseDeviceType(s string) (DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile":
		return DeviceMobile, nil
	case "tablet":
		return DeviceTablet, nil
	case "desktop":
		return DeviceDesktop, nil
	case "unknown":
		return DeviceUnknown, nil
	default:
		return DeviceUnknown, fmt.Errorf("unknown device type %q", s)
	}
}

// UnmarshalJSON accepts both string names ("mobile") and persisted numeric
// values (1) for backward compatibility with older clients.
func (d *DeviceType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		dt := DeviceType(n)
		if !dt.Valid() {
			return fmt.Errorf("device type out of range: %d", n)
		}
		*d = dt
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("device type must be a string or number, got %s", string(data))
	}

	dt, err := ParseDeviceType(s)
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// MarshalJSON implements json.Marshaler for DeviceType.
func (d DeviceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Variant identifies one rendering configuration of an article:
// a device class plus the inline (compact) vs attachment (paginated) layout.
type Variant struct {
	Device  DeviceType
	Inlined bool
}

// String returns a compact representation used in logs ("tablet/inline").
func (v Variant) String() string {
	layout := "attachment"
	if v.Inlined {
		layout = "inline"
	}
	return v.Device.String() + "/" + layout
}

// AllVariants returns the fixed six-way cross product of renderable devices
// and layouts. This is the set enqueued for every queued article URL.
func AllVariants() []Variant {
	return []Variant{
		{Device: DeviceDesktop, Inlined: true},
		{Device: DeviceDesktop, Inlined: false},
		{Device: DeviceMobile, Inlined: true},
		{Device: DeviceMobile, Inlined: false},
		{Device: DeviceTablet, Inlined: true},
		{Device: DeviceTablet, Inlined: false},
	}
}
