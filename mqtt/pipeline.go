package mqtt

import (
	"context"

	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
)

// Ingester consumes decoded readings
type Ingester interface {
	Ingest(ctx context.Context, r *model.Reading)
}

// Transformer rewrites a raw payload for a sensor type into reading JSON
type Transformer interface {
	Has(sensorType string) bool
	Transform(sensorType string, payload []byte) ([]byte, error)
}

// Pipeline turns raw MQTT messages into ingested readings
type Pipeline struct {
	transformers Transformer
	ingester     Ingester
}

// NewPipeline creates a pipeline. transformers may be nil.
func NewPipeline(transformers Transformer, ingester Ingester) *Pipeline {
	return &Pipeline{
		transformers: transformers,
		ingester:     ingester,
	}
}

// Handle decodes msg and forwards it to the ingester. Undecodable messages
// are logged and dropped.
func (p *Pipeline) Handle(ctx context.Context, msg Message) {
	sensorType := SensorTypeFromTopic(msg.Topic)
	payload := msg.Payload

	if sensorType != "" && p.transformers != nil && p.transformers.Has(sensorType) {
		transformed, err := p.transformers.Transform(sensorType, payload)
		if err != nil {
			logger.Errorw("failed to transform payload", "topic", msg.Topic, "sensor_type", sensorType, "error", err)
			return
		}
		payload = transformed
	}

	reading, err := model.DecodeReading(payload)
	if err != nil {
		logger.Warnw("dropping undecodable message", "topic", msg.Topic, "error", err)
		return
	}

	if reading.SensorType == "" {
		reading.SensorType = sensorType
	}
	if reading.SensorType == "" {
		logger.Warnw("reading has no sensor type", "topic", msg.Topic, "sensor_id", reading.SensorID)
	}
	reading.Topic = msg.Topic

	p.ingester.Ingest(ctx, &reading)
}
