package mqtt

import "fmt"

// Topic prefix for all ToF bridge topics.
//
// The bridge follows the flat Gray Logic scheme:
// graylogic/tof/{camera_id}/{category}/...
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "graylogic/tof"
)

// Topics provides builders for the ToF bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cloudTopic := topics.Stream("camera-01", "xyz")
//	// Returns: "graylogic/tof/camera-01/stream/xyz"
type Topics struct{}

// =============================================================================
// Stream Topics
// =============================================================================

// Stream returns the topic a buffer kind's messages are published on.
//
// Example: graylogic/tof/camera-01/stream/radial_distance
func (Topics) Stream(cameraID, kind string) string {
	return fmt.Sprintf("%s/%s/stream/%s", TopicPrefix, cameraID, kind)
}

// AllStreams returns a pattern matching every stream of one camera.
//
// Pattern: graylogic/tof/camera-01/stream/+
func (Topics) AllStreams(cameraID string) string {
	return fmt.Sprintf("%s/%s/stream/+", TopicPrefix, cameraID)
}

// =============================================================================
// Control Topics
// =============================================================================

// Request returns the topic a control request is received on. The operation
// name and caller-chosen request id are part of the topic so the handler can
// correlate the response without parsing the payload.
//
// Example: graylogic/tof/camera-01/request/dump/req-abc123
func (Topics) Request(cameraID, op, requestID string) string {
	return fmt.Sprintf("%s/%s/request/%s/%s", TopicPrefix, cameraID, op, requestID)
}

// AllRequests returns a pattern matching every control request for a camera.
//
// Pattern: graylogic/tof/camera-01/request/+/+
func (Topics) AllRequests(cameraID string) string {
	return fmt.Sprintf("%s/%s/request/+/+", TopicPrefix, cameraID)
}

// Response returns the topic a control response is published on.
//
// Example: graylogic/tof/camera-01/response/req-abc123
func (Topics) Response(cameraID, requestID string) string {
	return fmt.Sprintf("%s/%s/response/%s", TopicPrefix, cameraID, requestID)
}

// =============================================================================
// Status Topics
// =============================================================================

// Health returns the topic for bridge online/offline status. The broker
// publishes the LWT here when the bridge dies unexpectedly.
//
// Example: graylogic/tof/camera-01/health
func (Topics) Health(cameraID string) string {
	return fmt.Sprintf("%s/%s/health", TopicPrefix, cameraID)
}

// Lifecycle returns the topic the current lifecycle state is retained on.
//
// Example: graylogic/tof/camera-01/lifecycle
func (Topics) Lifecycle(cameraID string) string {
	return fmt.Sprintf("%s/%s/lifecycle", TopicPrefix, cameraID)
}
