package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/relvacode/iso8601"
)

var (
	// ErrMissingSensorID is returned for payloads without a sensorId
	ErrMissingSensorID = errors.New("payload has no sensorId")
	// ErrMissingValue is returned for payloads without a numeric value
	ErrMissingValue = errors.New("payload has no value")
	// ErrTimestampOutOfRange is returned for timestamps before 1970 or past
	// what a unix nanosecond count can hold
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
	// ErrInvalidBatteryLevel is returned for battery levels that do not fit an int32
	ErrInvalidBatteryLevel = errors.New("batteryLevel out of range")
)

var (
	minTimestamp = time.Unix(0, 0).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// epochMillisThreshold separates unix seconds from unix milliseconds
const epochMillisThreshold = 1e12

// wireReading is the inbound JSON shape. Pointers tell absent from zero.
type wireReading struct {
	SensorID     string          `json:"sensorId"`
	SensorType   string          `json:"sensorType"`
	Value        *float64        `json:"value"`
	Unit         string          `json:"unit"`
	BatteryLevel *float64        `json:"batteryLevel"`
	Latitude     *float64        `json:"latitude"`
	Longitude    *float64        `json:"longitude"`
	Timestamp    json.RawMessage `json:"timestamp"`
}

// DecodeReading parses one inbound payload. A missing timestamp is left zero
// for the ingestor to stamp; any status sent by the publisher is ignored.
func DecodeReading(payload []byte) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if w.SensorID == "" {
		return Reading{}, ErrMissingSensorID
	}
	if w.Value == nil {
		return Reading{}, ErrMissingValue
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return Reading{}, fmt.Errorf("decode reading %s: %w", w.SensorID, err)
	}

	battery, err := batteryLevel(w.BatteryLevel)
	if err != nil {
		return Reading{}, fmt.Errorf("decode reading %s: %w", w.SensorID, err)
	}

	return Reading{
		SensorID:     w.SensorID,
		SensorType:   w.SensorType,
		Value:        *w.Value,
		Unit:         w.Unit,
		BatteryLevel: battery,
		Latitude:     w.Latitude,
		Longitude:    w.Longitude,
		Timestamp:    ts,
	}, nil
}

// parseTimestamp accepts ISO-8601 strings (zone optional, UTC assumed) and
// unix epoch numbers in seconds or milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		// compare as floats first, int64 conversion of huge values is undefined
		if epoch < 0 || epoch > float64(maxTimestamp.UnixMilli()) {
			return time.Time{}, fmt.Errorf("%w: %v", ErrTimestampOutOfRange, epoch)
		}
		if epoch > epochMillisThreshold {
			return checkTimestamp(time.UnixMilli(int64(epoch)).UTC())
		}
		sec, frac := math.Modf(epoch)
		return checkTimestamp(time.Unix(int64(sec), int64(frac*1e9)).UTC())
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be a string or a number: %w", err)
	}
	if s == "" {
		return time.Time{}, nil
	}

	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return checkTimestamp(t)
}

// checkTimestamp keeps timestamps within what SQL storage can hold as unix
// nanoseconds
func checkTimestamp(t time.Time) (time.Time, error) {
	if t.Before(minTimestamp) || t.After(maxTimestamp) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrTimestampOutOfRange, t.Format(time.RFC3339))
	}
	return t, nil
}

// batteryLevel accepts integral and fractional JSON numbers. Fractions are
// truncated toward zero.
func batteryLevel(v *float64) (*int, error) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || *v < math.MinInt32 || *v > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatteryLevel, *v)
	}
	level := int(math.Trunc(*v))
	return &level, nil
}
