package device

import (
	"fmt"
	"strings"
)

// Validation limits.
const (
	maxIDLength     = 128
	maxNameLength   = 100
	maxStringLength = 64
)

// ValidateDevice checks a catalogue entry before persistence.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidDevice)
	}
	if len(d.ID) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidDevice, maxIDLength)
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"serial_number": d.SerialNumber,
		"phone_number":  d.PhoneNumber,
		"status":        d.Status,
	} {
		if len(v) > maxStringLength {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidDevice, field, maxStringLength)
		}
	}
	if d.BatteryPercentage < 0 || d.BatteryPercentage > 100 {
		return fmt.Errorf("%w: battery %d out of range", ErrInvalidDevice, d.BatteryPercentage)
	}
	return nil
}

// ValidateName checks a tracker name. Trackers may be unnamed.
func ValidateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}
