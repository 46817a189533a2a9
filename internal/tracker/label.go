package tracker

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Presentation constants for tracker entities.
const (
	// HomeLabel is the location label used while a tracker is on WiFi.
	HomeLabel = "home"

	// LocationAccuracy is the fixed accuracy reported for every position (metres).
	LocationAccuracy = 10

	// SourceType is the host-facing source of the position.
	SourceType = "gps"

	// Icon is the host-facing icon for tracker entities.
	Icon = "mdi:watch-variant"

	// Domain identifies this integration in device identifiers.
	Domain = "one2track"
)

// LocationLabel derives the human-facing location of a record.
//
// WiFi always wins and yields HomeLabel; otherwise a non-empty zone name is
// used; otherwise the raw address is returned unchanged.
func LocationLabel(rec DeviceRecord, zoneName string) string {
	if rec.LastLocation.LocationType == LocationTypeWiFi {
		return HomeLabel
	}
	if zoneName != "" {
		return zoneName
	}
	return rec.LastLocation.Address
}

// ParseCoordinate parses a numeric-string coordinate.
func ParseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCoordinateParse, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrCoordinateParse, s)
	}
	return v, nil
}

// Attributes is the attribute bag exposed for a tracker.
type Attributes struct {
	SerialNumber       string       `json:"serial_number"`
	UUID               string       `json:"uuid"`
	Name               string       `json:"name"`
	Status             string       `json:"status"`
	PhoneNumber        string       `json:"phone_number"`
	TariffType         string       `json:"tariff_type"`
	BalanceCents       int          `json:"balance_cents"`
	LastCommunication  string       `json:"last_communication"`
	LastLocationUpdate string       `json:"last_location_update"`
	Altitude           float64      `json:"altitude"`
	LocationType       LocationType `json:"location_type"`
	Address            string       `json:"address"`
	SignalStrength     int          `json:"signal_strength"`
	SatelliteCount     int          `json:"satellite_count"`
	Host               string       `json:"host"`
	Port               int          `json:"port"`
}

// AttributesOf flattens a record into its attribute bag.
// Timestamps are rendered as RFC 3339; a zero time renders as "".
func AttributesOf(rec DeviceRecord) Attributes {
	loc := rec.LastLocation
	return Attributes{
		SerialNumber:       rec.SerialNumber,
		UUID:               rec.UUID,
		Name:               rec.Name,
		Status:             rec.Status,
		PhoneNumber:        rec.PhoneNumber,
		TariffType:         rec.SimCard.TariffType,
		BalanceCents:       rec.SimCard.BalanceCents,
		LastCommunication:  formatTime(loc.LastCommunication),
		LastLocationUpdate: formatTime(loc.LastLocationUpdate),
		Altitude:           loc.Altitude,
		LocationType:       loc.LocationType,
		Address:            loc.Address,
		SignalStrength:     loc.SignalStrength,
		SatelliteCount:     loc.SatelliteCount,
		Host:               loc.Host,
		Port:               loc.Port,
	}
}

// DeviceInfo groups host-side device registry details.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	SerialNumber string   `json:"serial_number"`
	Name         string   `json:"name"`
}

// DeviceInfoOf returns the device registry details for a record.
func DeviceInfoOf(rec DeviceRecord) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{Domain + ":" + rec.UUID},
		SerialNumber: rec.SerialNumber,
		Name:         rec.Name,
	}
}
