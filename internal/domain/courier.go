package domain

import "time"

// VehicleType represents how a courier travels.
type VehicleType string

const (
	VehicleTypeBike VehicleType = "BIKE"
	VehicleTypeCar  VehicleType = "CAR"
	VehicleTypeFoot VehicleType = "FOOT"
)

// Courier represents a delivery courier in the system.
type Courier struct {
	ID          string
	BranchID    string
	Name        string
	Phone       string
	VehicleType VehicleType
	Rating      float64
	IsOnline    bool
	IsAvailable bool
	IsActive    bool
}

// GeoPoint is a latitude/longitude pair with the time it was recorded.
type GeoPoint struct {
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

// LocationFreshness is how recent a location report must be for the
// courier to count as "fresh" in candidate ranking and displays.
const LocationFreshness = 5 * time.Minute

// Fresh reports whether the point was recorded within the freshness
// window relative to now. The zero value is never fresh.
func (p GeoPoint) Fresh(now time.Time) bool {
	if p.RecordedAt.IsZero() {
		return false
	}
	return now.Sub(p.RecordedAt) <= LocationFreshness
}
