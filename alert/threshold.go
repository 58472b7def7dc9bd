package alert

import (
	"fmt"
	"strings"
)

// DefaultCriticalBattery is the battery percentage at or below which a reading alerts
const DefaultCriticalBattery = 10

// Bounds is an inclusive [Min, Max] range for one sensor type
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate reports whether value lies inside the bounds
func (b Bounds) Validate(value float64) error {
	if value < b.Min {
		return fmt.Errorf("value %v below minimum %v", value, b.Min)
	}
	if value > b.Max {
		return fmt.Errorf("value %v above maximum %v", value, b.Max)
	}
	return nil
}

// Thresholds is the alert configuration, built once at startup
type Thresholds struct {
	CriticalBattery int               `json:"criticalBattery"`
	Bounds          map[string]Bounds `json:"bounds"`
}

// DefaultThresholds returns the built-in temperature, humidity and pressure bounds
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalBattery: DefaultCriticalBattery,
		Bounds: map[string]Bounds{
			"temperature": {Min: 10.0, Max: 35.0},
			"humidity":    {Min: 20.0, Max: 80.0},
			"pressure":    {Min: 950.0, Max: 1050.0},
		},
	}
}

// normalized returns a copy with lowercased keys
func (t Thresholds) normalized() Thresholds {
	out := Thresholds{
		CriticalBattery: t.CriticalBattery,
		Bounds:          make(map[string]Bounds, len(t.Bounds)),
	}
	for sensorType, b := range t.Bounds {
		out.Bounds[strings.ToLower(sensorType)] = b
	}
	return out
}
