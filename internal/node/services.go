package node

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/mqtt"
)

// Control operations served over the request topics.
const (
	OpDump      = "dump"
	OpConfig    = "config"
	OpSoftOn    = "soft_on"
	OpSoftOff   = "soft_off"
	OpSetParams = "set_params"
	OpGetParams = "get_params"
)

// ControlBus is the request/response surface the services need.
type ControlBus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Response is the envelope every control response is wrapped in.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// setParamsResult is the data payload of a set_params response.
type setParamsResult struct {
	Accepted     bool     `json:"accepted"`
	NeedsReentry bool     `json:"needs_reentry"`
	Changed      []string `json:"changed,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// Services dispatches control requests from the MQTT request topics to the
// node. One instance serves one camera.
type Services struct {
	node     *Node
	bus      ControlBus
	cameraID string
	log      Logger
}

// NewServices builds the control dispatcher.
func NewServices(n *Node, bus ControlBus, cameraID string, log Logger) *Services {
	if log == nil {
		log = noopLogger{}
	}
	return &Services{node: n, bus: bus, cameraID: cameraID, log: log}
}

// Start subscribes to the camera's request topics. Handlers run on the
// MQTT client's delivery goroutines; every device-touching operation is
// serialized by the node's session lock.
func (s *Services) Start() error {
	topic := mqtt.Topics{}.AllRequests(s.cameraID)
	if err := s.bus.Subscribe(topic, 1, s.handleRequest); err != nil {
		return fmt.Errorf("subscribing to control requests: %w", err)
	}
	s.log.Info("control services ready", "topic", topic)
	return nil
}

// handleRequest parses the operation and request id out of the topic and
// dispatches. Malformed topics are dropped; they cannot be answered
// because the response topic is derived from the request id.
func (s *Services) handleRequest(topic string, payload []byte) error {
	op, requestID, ok := parseRequestTopic(topic)
	if !ok {
		s.log.Warn("dropping malformed request topic", "topic", topic)
		return nil
	}

	s.log.Debug("control request", "op", op, "request_id", requestID)
	resp := s.dispatch(op, payload)
	s.respond(requestID, resp)
	return nil
}

// dispatch runs one control operation and builds its response envelope.
func (s *Services) dispatch(op string, payload []byte) Response {
	switch op {
	case OpDump:
		blob, err := s.node.DumpConfiguration()
		if err != nil {
			return errResponse(err)
		}
		// The blob is embedded raw; a non-JSON dump would poison the
		// envelope and leave the requester without a reply.
		if !json.Valid(blob) {
			return Response{Error: "device returned a non-JSON configuration dump"}
		}
		return Response{OK: true, Data: json.RawMessage(blob)}

	case OpConfig:
		if len(payload) == 0 || !json.Valid(payload) {
			return Response{Error: "config payload must be a JSON document"}
		}
		if err := s.node.ApplyConfiguration(payload); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}

	case OpSoftOn:
		if err := s.node.SetSoftPower(true); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}

	case OpSoftOff:
		if err := s.node.SetSoftPower(false); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}

	case OpSetParams:
		var updates map[string]string
		if err := json.Unmarshal(payload, &updates); err != nil {
			return Response{Error: fmt.Sprintf("set_params payload: %v", err)}
		}
		if len(updates) == 0 {
			return Response{Error: "set_params payload is empty"}
		}
		result := s.node.ApplyParams(updates)
		data, _ := json.Marshal(setParamsResult{
			Accepted:     result.Accepted,
			NeedsReentry: result.NeedsReentry,
			Changed:      result.Changed,
			Reason:       result.Reason,
		})
		return Response{OK: result.Accepted, Error: result.Reason, Data: data}

	case OpGetParams:
		params := s.node.Params().Map()
		if params["password"] != "" {
			params["password"] = "<redacted>"
		}
		data, _ := json.Marshal(params)
		return Response{OK: true, Data: data}

	default:
		return Response{Error: fmt.Sprintf("unknown operation %q", op)}
	}
}

// respond publishes the envelope on the response topic at QoS 1.
func (s *Services) respond(requestID string, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("encoding response failed", "request_id", requestID, "error", err)
		return
	}
	topic := mqtt.Topics{}.Response(s.cameraID, requestID)
	if err := s.bus.Publish(topic, payload, 1, false); err != nil {
		s.log.Warn("response publish failed", "topic", topic, "error", err)
	}
}

// parseRequestTopic extracts the operation and request id from
// .../{camera_id}/request/{op}/{request_id}.
func parseRequestTopic(topic string) (op, requestID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", "", false
	}
	if parts[len(parts)-3] != "request" {
		return "", "", false
	}
	op = parts[len(parts)-2]
	requestID = parts[len(parts)-1]
	if op == "" || requestID == "" {
		return "", "", false
	}
	return op, requestID, true
}

func errResponse(err error) Response {
	return Response{Error: err.Error()}
}
