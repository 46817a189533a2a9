package location

import "time"

// Zone is a circular geofence.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Radius    float64   `json:"radius"` // metres
	Passive   bool      `json:"passive"`
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HomeZoneSlug is the slug of the zone seeded from the site location.
const HomeZoneSlug = "home"

// DefaultHomeRadius is used when the site configures no home radius (metres).
const DefaultHomeRadius = 100.0
