package mqtt

import "fmt"

// Topic prefixes for the playout service.
//
// Timeline input arrives on graylogic/playout/timeline/{kind}; device
// output is published under graylogic/playout/device/{id}/...
const (
	// TopicPrefixPlayout is the base for all playout topics.
	TopicPrefixPlayout = "graylogic/playout"

	// TopicPrefixTimeline is the base for timeline input topics.
	TopicPrefixTimeline = "graylogic/playout/timeline"

	// TopicPrefixDevice is the base for per-device output topics.
	TopicPrefixDevice = "graylogic/playout/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for playout MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("cam-1")
//	// Returns: "graylogic/playout/device/cam-1/status"
type Topics struct{}

// =============================================================================
// Timeline Topics
// =============================================================================

// TimelineState returns the topic carrying resolved timeline snapshots.
//
// Example: graylogic/playout/timeline/state
func (Topics) TimelineState() string {
	return fmt.Sprintf("%s/state", TopicPrefixTimeline)
}

// TimelineClear returns the topic carrying clear-future requests.
//
// Example: graylogic/playout/timeline/clear
func (Topics) TimelineClear() string {
	return fmt.Sprintf("%s/clear", TopicPrefixTimeline)
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceStatus returns the retained status topic for a device.
//
// Example: graylogic/playout/device/cam-1/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// DeviceEvent returns the topic for one kind of device event.
//
// Example: graylogic/playout/device/cam-1/event/slow_command
func (Topics) DeviceEvent(deviceID, eventType string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefixDevice, deviceID, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the service status topic used for online/offline
// presence and the LWT.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStatuses returns a pattern matching every device status.
//
// Pattern: graylogic/playout/device/+/status
func (Topics) AllDeviceStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}

// AllDeviceEvents returns a pattern matching every device event.
//
// Pattern: graylogic/playout/device/+/event/+
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/+/event/+", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all playout topics.
//
// Pattern: graylogic/playout/#
func (Topics) AllTopics() string {
	return TopicPrefixPlayout + "/#"
}
