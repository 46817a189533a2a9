package device

import "time"

// Device is one catalogued tracker, keyed by its account uuid.
type Device struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SerialNumber      string    `json:"serial_number"`
	PhoneNumber       string    `json:"phone_number"`
	Status            string    `json:"status"`
	BatteryPercentage int       `json:"battery_percentage"`
	Available         bool      `json:"available"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
}

// Stats summarises the catalogue.
type Stats struct {
	TotalDevices     int `json:"total_devices"`
	AvailableDevices int `json:"available_devices"`
	LowBattery       int `json:"low_battery"`
}

// LowBatteryThreshold is the battery percentage counted as low in Stats.
const LowBatteryThreshold = 20
