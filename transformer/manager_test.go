package transformer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/model"
)

const fahrenheitScript = `
function transform(payload) {
	var raw = parseJSON(payload);
	return {
		sensorId: raw.id,
		sensorType: "temperature",
		value: convertTemperature(raw.temp_f, "F", "C"),
		unit: "C",
		batteryLevel: raw.bat
	};
}
`

func TestManager_TransformProducesDecodableReading(t *testing.T) {
	m, err := NewManager(map[string]config.Transformer{
		"Temperature": {ScriptCode: fahrenheitScript},
	})
	require.NoError(t, err)
	assert.True(t, m.Has("temperature"))
	assert.True(t, m.Has("TEMPERATURE"))
	assert.False(t, m.Has("humidity"))

	out, err := m.Transform("temperature", []byte(`{"id":"t9","temp_f":212,"bat":80}`))
	require.NoError(t, err)

	r, err := model.DecodeReading(out)
	require.NoError(t, err)
	assert.Equal(t, "t9", r.SensorID)
	assert.InDelta(t, 100.0, r.Value, 1e-9)
	require.NotNil(t, r.BatteryLevel)
	assert.Equal(t, 80, *r.BatteryLevel)
}

func TestManager_UnknownSensorType(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	_, err = m.Transform("pressure", []byte(`{}`))
	assert.Error(t, err)
}

func TestNewManager_InvalidScripts(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Transformer
	}{
		{"empty config", config.Transformer{}},
		{"syntax error", config.Transformer{ScriptCode: "function transform( {"}},
		{"missing transform", config.Transformer{ScriptCode: "var x = 1;"}},
		{"transform not a function", config.Transformer{ScriptCode: "var transform = 1;"}},
		{"missing file", config.Transformer{ScriptPath: "/nonexistent/script.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(map[string]config.Transformer{"temperature": tt.cfg})
			assert.Error(t, err)
		})
	}
}

func TestManager_ScriptErrorIsReturned(t *testing.T) {
	m, err := NewManager(map[string]config.Transformer{
		"humidity": {ScriptCode: `function transform(p) { throw new Error("bad payload"); }`},
	})
	require.NoError(t, err)

	_, err = m.Transform("humidity", []byte(`x`))
	assert.ErrorContains(t, err, "bad payload")
}

func TestManager_ReloadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pressure.js")
	require.NoError(t, os.WriteFile(path, []byte(`function transform(p) { return {sensorId: "p1", value: 1000}; }`), 0644))

	m, err := NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, m.ReloadTransformer("pressure", config.Transformer{ScriptPath: path}))

	out, err := m.Transform("pressure", []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sensorId":"p1","value":1000}`, string(out))

	assert.Error(t, m.ReloadTransformer("pressure", config.Transformer{}))
	assert.True(t, m.Has("pressure"), "failed reload keeps the previous script")
}

func TestConvertTemperature(t *testing.T) {
	assert.InDelta(t, 0.0, convertTemperature(32, "F", "C"), 1e-9)
	assert.InDelta(t, 273.15, convertTemperature(0, "c", "k"), 1e-9)
	assert.InDelta(t, 212.0, convertTemperature(373.15, "K", "F"), 1e-9)
	assert.Equal(t, 42.0, convertTemperature(42, "X", "C"))
	assert.Equal(t, 10.0, convertTemperature(10, "C", "X"))
}
