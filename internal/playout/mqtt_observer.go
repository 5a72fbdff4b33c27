package playout

import (
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/mqtt"
)

// Event types published by MQTTObserver.
const (
	EventDebug             = "debug"
	EventWarning           = "warning"
	EventError             = "error"
	EventConnectionChanged = "connection_changed"
	EventSlowCommand       = "slow_command"
	EventCommandError      = "command_error"
)

// Publisher is the MQTT surface MQTTObserver needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Event is the JSON body of a published device event.
type Event struct {
	DeviceID  string          `json:"device_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Message   string          `json:"message,omitempty"`
	Source    string          `json:"source,omitempty"`
	Error     string          `json:"error,omitempty"`
	Status    *Status         `json:"status,omitempty"`
	Command   *CommandContext `json:"command,omitempty"`
}

// MQTTObserver publishes device events to
// graylogic/playout/device/{id}/event/{type} and keeps a retained status
// on graylogic/playout/device/{id}/status.
//
// Debug events are not published unless PublishDebug is set.
type MQTTObserver struct {
	pub          Publisher
	qos          byte
	clock        clockwork.Clock
	logger       Logger
	PublishDebug bool
}

// NewMQTTObserver creates an observer publishing through pub.
func NewMQTTObserver(pub Publisher, qos byte, logger Logger) *MQTTObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTObserver{
		pub:    pub,
		qos:    qos,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

func (o *MQTTObserver) Debug(deviceID, msg string) {
	if o.PublishDebug {
		o.publish(Event{DeviceID: deviceID, Type: EventDebug, Message: msg})
	}
}

func (o *MQTTObserver) Warning(deviceID, msg string) {
	o.publish(Event{DeviceID: deviceID, Type: EventWarning, Message: msg})
}

func (o *MQTTObserver) Error(deviceID, source string, err error) {
	o.publish(Event{DeviceID: deviceID, Type: EventError, Source: source, Error: errString(err)})
}

// ConnectionChanged publishes the event and refreshes the retained status.
func (o *MQTTObserver) ConnectionChanged(deviceID string, status Status) {
	o.publish(Event{DeviceID: deviceID, Type: EventConnectionChanged, Status: &status})
	o.PublishStatus(status)
}

func (o *MQTTObserver) SlowCommand(deviceID, msg string) {
	o.publish(Event{DeviceID: deviceID, Type: EventSlowCommand, Message: msg})
}

func (o *MQTTObserver) CommandError(deviceID string, err error, cc CommandContext) {
	o.publish(Event{DeviceID: deviceID, Type: EventCommandError, Error: errString(err), Command: &cc})
}

// PublishStatus writes status as the retained device status.
func (o *MQTTObserver) PublishStatus(status Status) {
	payload, err := json.Marshal(status)
	if err != nil {
		o.logger.Error("marshalling device status", "device", status.DeviceID, "error", err)
		return
	}
	topic := mqtt.Topics{}.DeviceStatus(status.DeviceID)
	if err := o.pub.Publish(topic, payload, o.qos, true); err != nil {
		o.logger.Warn("publishing device status", "topic", topic, "error", err)
	}
}

func (o *MQTTObserver) publish(ev Event) {
	ev.Timestamp = o.clock.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		o.logger.Error("marshalling device event", "device", ev.DeviceID, "type", ev.Type, "error", err)
		return
	}
	topic := mqtt.Topics{}.DeviceEvent(ev.DeviceID, ev.Type)
	if err := o.pub.Publish(topic, payload, o.qos, false); err != nil {
		o.logger.Warn("publishing device event", "topic", topic, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
