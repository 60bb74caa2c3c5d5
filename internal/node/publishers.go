package node

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tof/internal/lifecycle"
)

// Bus is the publishing surface the node needs from the MQTT client.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// Logger is the logging surface the node needs. *logging.Logger satisfies
// it; tests use noopLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StreamPublisher fans one frame out to the per-buffer stream topics.
//
// It is gated: publishes are silently dropped until Activate, and again
// after Deactivate. The gate is what lets the acquisition loop keep a
// frame in flight during deactivation without leaking it onto the bus.
type StreamPublisher struct {
	bus      Bus
	codec    *Codec
	cameraID string
	qos      byte
	log      Logger

	active atomic.Bool
}

// NewStreamPublisher builds an inactive publisher.
func NewStreamPublisher(bus Bus, codec *Codec, cameraID string, qos byte, log Logger) *StreamPublisher {
	if log == nil {
		log = noopLogger{}
	}
	return &StreamPublisher{
		bus:      bus,
		codec:    codec,
		cameraID: cameraID,
		qos:      qos,
		log:      log,
	}
}

// Activate opens the gate.
func (p *StreamPublisher) Activate() { p.active.Store(true) }

// Deactivate closes the gate. In-flight PublishFrame calls may still land
// messages that passed the gate check; new calls are dropped.
func (p *StreamPublisher) Deactivate() { p.active.Store(false) }

// Active reports the gate state.
func (p *StreamPublisher) Active() bool { return p.active.Load() }

// PublishFrame publishes every buffer the frame carries. Image buffers are
// stamped with the optical frame id; the cloud and extrinsics with the
// camera frame id. Per-buffer publish errors are logged and do not stop
// the remaining buffers.
func (p *StreamPublisher) PublishFrame(frame *camera.Frame, opticalFrame, cameraFrame string) {
	if !p.active.Load() {
		return
	}

	optical := Header{FrameID: opticalFrame, CapturedAt: frame.CapturedAt, Count: frame.Count}
	mount := Header{FrameID: cameraFrame, CapturedAt: frame.CapturedAt, Count: frame.Count}

	for kind, img := range frame.Images {
		payload, err := p.codec.EncodeImage(optical, img)
		if err != nil {
			p.log.Error("encoding image message failed", "buffer", kind, "error", err)
			continue
		}
		p.publish(string(kind), payload)
	}

	if frame.Cloud != nil {
		payload, err := p.codec.EncodeCloud(mount, *frame.Cloud)
		if err != nil {
			p.log.Error("encoding cloud message failed", "error", err)
		} else {
			p.publish(string(camera.BufferXYZ), payload)
		}
	}

	if frame.Extrinsics != nil {
		payload, err := p.codec.EncodeExtrinsics(mount, *frame.Extrinsics)
		if err != nil {
			p.log.Error("encoding extrinsics message failed", "error", err)
		} else {
			p.publish(string(camera.BufferExtrinsics), payload)
		}
	}
}

func (p *StreamPublisher) publish(kind string, payload []byte) {
	topic := mqtt.Topics{}.Stream(p.cameraID, kind)
	if err := p.bus.Publish(topic, payload, p.qos, false); err != nil {
		p.log.Warn("stream publish failed", "topic", topic, "error", err)
	}
}

// lifecycleStatus is the retained state document on the lifecycle topic.
type lifecycleStatus struct {
	State      string    `json:"state"`
	Since      time.Time `json:"since"`
	Transition string    `json:"transition,omitempty"`
}

// PublishLifecycle retains the current lifecycle state so late subscribers
// see where the bridge is without waiting for a transition.
func PublishLifecycle(bus Bus, cameraID string, state lifecycle.State, transition string, log Logger) {
	if log == nil {
		log = noopLogger{}
	}
	payload, err := json.Marshal(lifecycleStatus{
		State:      string(state),
		Since:      time.Now().UTC(),
		Transition: transition,
	})
	if err != nil {
		log.Error("encoding lifecycle status failed", "error", err)
		return
	}
	topic := mqtt.Topics{}.Lifecycle(cameraID)
	if err := bus.PublishRetained(topic, payload); err != nil {
		log.Warn("lifecycle publish failed", "topic", topic, "error", err)
	}
}
