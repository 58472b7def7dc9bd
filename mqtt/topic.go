package mqtt

import (
	"regexp"
	"strings"
)

// topics look like <prefix>/<sensorType>/<sensorId>, e.g. sensors/temperature/t1
var topicPattern = regexp.MustCompile(`^[^/]+/([^/]+)(?:/.*)?$`)

// SensorTypeFromTopic extracts the lowercased sensor type segment, or "" when
// the topic has no second level.
func SensorTypeFromTopic(topic string) string {
	matches := topicPattern.FindStringSubmatch(topic)
	if len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return ""
}
