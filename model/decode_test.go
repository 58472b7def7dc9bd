package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReading(t *testing.T) {
	payload := []byte(`{
		"sensorId": "temp-01",
		"sensorType": "Temperature",
		"value": 22.5,
		"unit": "C",
		"batteryLevel": 80,
		"latitude": -23.5,
		"longitude": -46.6,
		"timestamp": "2024-03-01T10:15:30Z",
		"status": "ALERT"
	}`)

	r, err := DecodeReading(payload)
	require.NoError(t, err)

	assert.Equal(t, "temp-01", r.SensorID)
	assert.Equal(t, "Temperature", r.SensorType)
	assert.Equal(t, 22.5, r.Value)
	assert.Equal(t, "C", r.Unit)
	require.NotNil(t, r.BatteryLevel)
	assert.Equal(t, 80, *r.BatteryLevel)
	assert.True(t, r.HasCoordinates())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC), r.Timestamp.UTC())
	assert.Empty(t, r.Status, "publisher status must be ignored")
}

func TestDecodeReading_OptionalFieldsAbsent(t *testing.T) {
	r, err := DecodeReading([]byte(`{"sensorId":"h-1","sensorType":"humidity","value":0}`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, r.Value)
	assert.Nil(t, r.BatteryLevel)
	assert.Nil(t, r.Latitude)
	assert.Nil(t, r.Longitude)
	assert.False(t, r.HasCoordinates())
	assert.True(t, r.Timestamp.IsZero())
}

func TestDecodeReading_Timestamps(t *testing.T) {
	want := time.Date(2024, 3, 1, 10, 15, 30, 0, time.UTC)

	tests := []struct {
		name string
		ts   string
		want time.Time
	}{
		{"rfc3339", `"2024-03-01T10:15:30Z"`, want},
		{"offset", `"2024-03-01T07:15:30-03:00"`, want},
		{"no zone", `"2024-03-01T10:15:30"`, want},
		{"unix seconds", `1709288130`, want},
		{"unix millis", `1709288130000`, want},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := DecodeReading([]byte(`{"sensorId":"s","sensorType":"t","value":1,"timestamp":` + tt.ts + `}`))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(r.Timestamp), "got %v", r.Timestamp)
		})
	}
}

func TestDecodeReading_FractionalBatteryLevel(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		{`{"sensorId":"t1","value":20,"batteryLevel":9.0}`, 9},
		{`{"sensorId":"t1","value":20,"batteryLevel":9.7}`, 9},
		{`{"sensorId":"t1","value":20,"batteryLevel":0}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			r, err := DecodeReading([]byte(tt.payload))
			require.NoError(t, err)
			require.NotNil(t, r.BatteryLevel)
			assert.Equal(t, tt.want, *r.BatteryLevel)
		})
	}
}

func TestDecodeReading_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		target  error
	}{
		{"malformed json", `{"sensorId":`, nil},
		{"missing sensor id", `{"sensorType":"t","value":1}`, ErrMissingSensorID},
		{"missing value", `{"sensorId":"s","sensorType":"t"}`, ErrMissingValue},
		{"bad timestamp", `{"sensorId":"s","value":1,"timestamp":"yesterday"}`, nil},
		{"timestamp object", `{"sensorId":"s","value":1,"timestamp":{}}`, nil},
		{"huge epoch", `{"sensorId":"t1","value":20,"timestamp":1e30}`, ErrTimestampOutOfRange},
		{"negative epoch", `{"sensorId":"t1","value":20,"timestamp":-5}`, ErrTimestampOutOfRange},
		{"epoch seconds past 2262", `{"sensorId":"t1","value":20,"timestamp":99999999999}`, ErrTimestampOutOfRange},
		{"iso before 1970", `{"sensorId":"t1","value":20,"timestamp":"0001-01-01T00:00:00Z"}`, ErrTimestampOutOfRange},
		{"iso past 2262", `{"sensorId":"t1","value":20,"timestamp":"3000-01-01T00:00:00Z"}`, ErrTimestampOutOfRange},
		{"battery out of range", `{"sensorId":"t1","value":20,"batteryLevel":1e12}`, ErrInvalidBatteryLevel},
		{"battery as string", `{"sensorId":"t1","value":20,"batteryLevel":"9"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReading([]byte(tt.payload))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}
