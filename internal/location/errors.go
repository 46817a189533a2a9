package location

import "errors"

var (
	// ErrZoneNotFound is returned when a zone ID does not exist.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrZoneExists is returned when a zone slug is already taken.
	ErrZoneExists = errors.New("zone already exists")

	// ErrInvalidName is returned when a zone name is empty or too long.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidSlug is returned when a zone slug has the wrong format.
	ErrInvalidSlug = errors.New("invalid slug")

	// ErrInvalidCoordinates is returned when a centre lies outside WGS84 bounds.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidRadius is returned when a radius is not a positive number.
	ErrInvalidRadius = errors.New("invalid radius")
)
