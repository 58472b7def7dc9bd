package alert

import (
	"strings"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// Evaluator flags readings that breach their type's bounds or report a
// critical battery. It is read-only after construction and safe for
// concurrent use.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator owning a private copy of thresholds
func NewEvaluator(thresholds Thresholds) *Evaluator {
	t := thresholds.normalized()
	logger.Info("alert thresholds configured for %d sensor types", len(t.Bounds))
	return &Evaluator{thresholds: t}
}

// Evaluate sets r.Status and reports whether any alert condition fired.
// Unknown sensor types can still alert on battery.
func (e *Evaluator) Evaluate(r *model.Reading) bool {
	triggered := false

	if r.BatteryLevel != nil && *r.BatteryLevel <= e.thresholds.CriticalBattery {
		logger.Warnw("critical battery level",
			"sensor_id", r.SensorID,
			"battery_level", *r.BatteryLevel,
			"critical", e.thresholds.CriticalBattery)
		triggered = true
	}

	sensorType := strings.ToLower(r.SensorType)
	if bounds, ok := e.thresholds.Bounds[sensorType]; ok {
		if err := bounds.Validate(r.Value); err != nil {
			logger.Warnw("reading out of range",
				"sensor_id", r.SensorID,
				"sensor_type", sensorType,
				"value", r.Value,
				"unit", r.Unit,
				"reason", err.Error())
			triggered = true
		}
	}

	if triggered {
		r.Status = model.StatusAlert
	} else {
		r.Status = model.StatusNormal
	}
	return triggered
}

// Thresholds returns a copy of the configured thresholds
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds.normalized()
}
