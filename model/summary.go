package model

import "time"

// Area labels produced by the quadrant heuristic
const (
	AreaNortheast = "Nordeste"
	AreaNorthwest = "Noroeste"
	AreaSoutheast = "Sudeste"
	AreaSouthwest = "Sudoeste"
	AreaUnknown   = "Desconhecida"
)

// Summary is the aggregation result for one sensor over one window
type Summary struct {
	ID                string    `json:"id,omitempty"`
	SensorID          string    `json:"sensorId"`
	SensorType        string    `json:"sensorType"`
	AverageValue      float64   `json:"averageValue"`
	MinValue          float64   `json:"minValue"`
	MaxValue          float64   `json:"maxValue"`
	StandardDeviation float64   `json:"standardDeviation"`
	Unit              string    `json:"unit,omitempty"`
	Area              string    `json:"area"`
	StartPeriod       time.Time `json:"startPeriod"`
	EndPeriod         time.Time `json:"endPeriod"`
	SampleCount       int       `json:"sampleCount"`
	AlertTriggered    bool      `json:"alertTriggered"`
	AlertMessage      string    `json:"alertMessage,omitempty"`
}
