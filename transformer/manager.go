package transformer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/eddielth/sensor-monitor/config"
	"github.com/eddielth/sensor-monitor/logger"
)

// Manager holds one payload normalization script per sensor type
type Manager struct {
	transformers map[string]*Transformer
	mutex        sync.RWMutex
}

// Transformer wraps a goja runtime exposing a transform(payload) function.
// A goja runtime is not safe for concurrent use, so calls are serialized.
type Transformer struct {
	mu        sync.Mutex
	vm        *goja.Runtime
	transform goja.Callable
}

// NewManager compiles every configured script. Sensor types are matched
// case-insensitively.
func NewManager(configs map[string]config.Transformer) (*Manager, error) {
	manager := &Manager{
		transformers: make(map[string]*Transformer),
	}

	for sensorType, cfg := range configs {
		t, err := load(cfg)
		if err != nil {
			return nil, fmt.Errorf("transformer for sensor type %s: %w", sensorType, err)
		}

		manager.transformers[strings.ToLower(sensorType)] = t
		logger.Info("loaded transformer for sensor type %s", sensorType)
	}

	return manager, nil
}

// load reads the script, preferring inline code over a file path
func load(cfg config.Transformer) (*Transformer, error) {
	var scriptCode string
	switch {
	case cfg.ScriptCode != "":
		scriptCode = cfg.ScriptCode
	case cfg.ScriptPath != "":
		scriptBytes, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("read script file %s: %w", cfg.ScriptPath, err)
		}
		scriptCode = string(scriptBytes)
	default:
		return nil, errors.New("neither script_code nor script_path is set")
	}

	return newTransformer(scriptCode)
}

func newTransformer(scriptCode string) (*Transformer, error) {
	vm := goja.New()

	_ = vm.Set("log", func(msg string) {
		logger.Info("[JS] %s", msg)
	})

	_ = vm.Set("parseJSON", func(jsonStr string) interface{} {
		var data interface{}
		if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
			logger.Warn("parseJSON failed: %v", err)
			return nil
		}
		return data
	})

	_ = vm.Set("formatDate", func(timestamp int64, format string) string {
		if format == "" {
			format = time.RFC3339
		}
		return time.Unix(timestamp, 0).UTC().Format(format)
	})

	_ = vm.Set("convertTemperature", convertTemperature)

	_ = vm.Set("validateRange", func(value float64, min float64, max float64) bool {
		return value >= min && value <= max
	})

	if _, err := vm.RunString(scriptCode); err != nil {
		return nil, fmt.Errorf("run script: %w", err)
	}

	transformValue := vm.Get("transform")
	if transformValue == nil {
		return nil, errors.New("script does not define a 'transform' function")
	}

	transform, ok := goja.AssertFunction(transformValue)
	if !ok {
		return nil, errors.New("'transform' is not a function")
	}

	return &Transformer{
		vm:        vm,
		transform: transform,
	}, nil
}

// convertTemperature converts between C, F and K. Unknown source units
// return the value unchanged, unknown targets return Celsius.
func convertTemperature(value float64, fromUnit string, toUnit string) float64 {
	var celsius float64
	switch strings.ToUpper(fromUnit) {
	case "C":
		celsius = value
	case "F":
		celsius = (value - 32) * 5 / 9
	case "K":
		celsius = value - 273.15
	default:
		return value
	}

	switch strings.ToUpper(toUnit) {
	case "F":
		return celsius*9/5 + 32
	case "K":
		return celsius + 273.15
	default:
		return celsius
	}
}

// Has reports whether a script is registered for sensorType
func (m *Manager) Has(sensorType string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, ok := m.transformers[strings.ToLower(sensorType)]
	return ok
}

// Transform runs the sensor type's script on payload and returns the result
// re-encoded as JSON, ready for model.DecodeReading.
func (m *Manager) Transform(sensorType string, payload []byte) ([]byte, error) {
	m.mutex.RLock()
	t, exists := m.transformers[strings.ToLower(sensorType)]
	m.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no transformer for sensor type %s", sensorType)
	}

	t.mu.Lock()
	result, err := t.transform(goja.Undefined(), t.vm.ToValue(string(payload)))
	var exported interface{}
	if err == nil {
		exported = result.Export()
	}
	t.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("run transform for %s: %w", sensorType, err)
	}
	if exported == nil {
		return nil, fmt.Errorf("transform for %s returned nothing", sensorType)
	}

	out, err := json.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("serialize transform result for %s: %w", sensorType, err)
	}
	return out, nil
}

// ReloadTransformer replaces the script for sensorType, registering it if new
func (m *Manager) ReloadTransformer(sensorType string, cfg config.Transformer) error {
	t, err := load(cfg)
	if err != nil {
		return fmt.Errorf("reload transformer for %s: %w", sensorType, err)
	}

	m.mutex.Lock()
	m.transformers[strings.ToLower(sensorType)] = t
	m.mutex.Unlock()

	logger.Info("reloaded transformer for sensor type %s", sensorType)
	return nil
}
