package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// LocationType describes how the tracker obtained its last position.
type LocationType string

// Known location types reported by the remote API.
const (
	LocationTypeGPS  LocationType = "GPS"
	LocationTypeWiFi LocationType = "WIFI"
	LocationTypeLBS  LocationType = "LBS"
)

// SimCard holds the tracker's SIM subscription details.
type SimCard struct {
	TariffType   string `json:"tariff_type"`
	BalanceCents int    `json:"balance_cents"`
}

// Coordinate is a latitude or longitude as sent by the portal. It decodes
// from a JSON string or number and is parsed on read (see
// DeviceRecord.Coordinates), so one odd value never rejects a whole list.
type Coordinate string

// UnmarshalJSON accepts "52.09", 52.09 and null.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Coordinate(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("coordinate %s: %w", data, err)
	}
	*c = Coordinate(n.String())
	return nil
}

// timestampLayouts are tried in order; layouts without a zone are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
}

// ParseTimestamp reads a portal timestamp. Unknown formats yield the zero
// time, which AttributesOf renders as empty.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// decodeTimestamp accepts a string in any of timestampLayouts, a number of
// unix seconds, or null.
func decodeTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, _ := ParseTimestamp(s)
		return t
	}
	if secs, err := strconv.ParseFloat(string(raw), 64); err == nil && secs > 0 {
		return time.Unix(int64(secs), 0).UTC()
	}
	return time.Time{}
}

// LastLocation is the most recent position report of a tracker.
type LastLocation struct {
	Latitude           Coordinate   `json:"latitude"`
	Longitude          Coordinate   `json:"longitude"`
	LastCommunication  time.Time    `json:"last_communication"`
	LastLocationUpdate time.Time    `json:"last_location_update"`
	Altitude           float64      `json:"altitude"`
	LocationType       LocationType `json:"location_type"`
	Address            string       `json:"address"`
	SignalStrength     int          `json:"signal_strength"`
	SatelliteCount     int          `json:"satellite_count"`
	Host               string       `json:"host"`
	Port               int          `json:"port"`
	BatteryPercentage  int          `json:"battery_percentage"`
}

// UnmarshalJSON decodes the report with lenient timestamps.
func (l *LastLocation) UnmarshalJSON(data []byte) error {
	type plain LastLocation
	aux := struct {
		*plain
		LastCommunication  json.RawMessage `json:"last_communication"`
		LastLocationUpdate json.RawMessage `json:"last_location_update"`
	}{plain: (*plain)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.LastCommunication = decodeTimestamp(aux.LastCommunication)
	l.LastLocationUpdate = decodeTimestamp(aux.LastLocationUpdate)
	return nil
}

// DeviceRecord is one tracker as returned by a single fetch.
//
// UUID is the join key across snapshots. DeviceRecord contains no
// reference types, so a plain assignment is a full copy.
type DeviceRecord struct {
	UUID         string       `json:"uuid"`
	Name         string       `json:"name"`
	SerialNumber string       `json:"serial_number"`
	Status       string       `json:"status"`
	PhoneNumber  string       `json:"phone_number"`
	SimCard      SimCard      `json:"simcard"`
	LastLocation LastLocation `json:"last_location"`
}

// Coordinates parses the record's latitude and longitude.
//
// Returns ErrCoordinateParse (wrapped) if either value is not a finite number.
func (r DeviceRecord) Coordinates() (lat, lon float64, err error) {
	lat, err = ParseCoordinate(string(r.LastLocation.Latitude))
	if err != nil {
		return 0, 0, err
	}
	lon, err = ParseCoordinate(string(r.LastLocation.Longitude))
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

// Snapshot is the full result of one successful fetch.
//
// Snapshots are shared by every subscriber of a cycle and must not be
// modified after the Coordinator publishes them.
type Snapshot struct {
	Records   []DeviceRecord
	FetchedAt time.Time
	Cycle     uint64

	// Duration is how long the fetch took.
	Duration time.Duration
}

// Find returns the record with the given uuid.
func (s *Snapshot) Find(uuid string) (DeviceRecord, bool) {
	if s == nil {
		return DeviceRecord{}, false
	}
	for i := range s.Records {
		if s.Records[i].UUID == uuid {
			return s.Records[i], true
		}
	}
	return DeviceRecord{}, false
}

// UUIDs returns the uuids in snapshot order.
func (s *Snapshot) UUIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Records))
	for i := range s.Records {
		ids = append(ids, s.Records[i].UUID)
	}
	return ids
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// validateRecords checks the uuid invariant of a fetch result.
func validateRecords(records []DeviceRecord) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		id := records[i].UUID
		if id == "" {
			return fmt.Errorf("%w: record %d has no uuid", ErrInvalidSnapshot, i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate uuid %q at record %d", ErrInvalidSnapshot, id, i)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
