package model

import "time"

// Status is the alert state of a single reading
type Status string

const (
	// StatusNormal means no threshold or battery condition fired
	StatusNormal Status = "NORMAL"
	// StatusAlert means at least one condition fired
	StatusAlert Status = "ALERT"
)

// Reading is one telemetry sample published by a field sensor
type Reading struct {
	ID           string    `json:"id,omitempty"`
	SensorID     string    `json:"sensorId"`
	SensorType   string    `json:"sensorType"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit,omitempty"`
	BatteryLevel *int      `json:"batteryLevel,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Status       Status    `json:"status,omitempty"`

	// Topic the reading arrived on. Routing metadata only.
	Topic string `json:"topic,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present
func (r Reading) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
