package node

import (
	"encoding/json"
	"testing"

	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-tof/internal/lifecycle"
)

func newTestServices(t *testing.T) (*Services, *Node, *fakeDialer, *fakeBus) {
	t.Helper()
	n, dialer, bus := newTestNode(t)
	svc := NewServices(n, bus, "cam-test", nil)
	if err := svc.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return svc, n, dialer, bus
}

// request drives one control request through the subscribed handler and
// returns the decoded response envelope.
func request(t *testing.T, bus *fakeBus, op, requestID string, payload []byte) Response {
	t.Helper()

	bus.mu.Lock()
	handler, ok := bus.handlers[mqtt.Topics{}.AllRequests("cam-test")]
	bus.mu.Unlock()
	if !ok {
		t.Fatal("no request handler subscribed")
	}

	topic := mqtt.Topics{}.Request("cam-test", op, requestID)
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	respTopic := mqtt.Topics{}.Response("cam-test", requestID)
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i := len(bus.messages) - 1; i >= 0; i-- {
		if bus.messages[i].topic != respTopic {
			continue
		}
		var resp Response
		if err := json.Unmarshal(bus.messages[i].payload, &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		return resp
	}
	t.Fatalf("no response published on %s", respTopic)
	return Response{}
}

func TestDumpRequest(t *testing.T) {
	_, n, _, bus := newTestServices(t)
	n.OnConfigure()
	defer n.OnCleanup()

	resp := request(t, bus, OpDump, "req-1", nil)
	if !resp.OK {
		t.Fatalf("dump failed: %s", resp.Error)
	}
	if !json.Valid(resp.Data) {
		t.Error("dump data is not valid JSON")
	}
}

func TestDumpWithoutSession(t *testing.T) {
	_, _, _, bus := newTestServices(t)

	resp := request(t, bus, OpDump, "req-1", nil)
	if resp.OK {
		t.Error("dump succeeded without a session")
	}
	if resp.Error == "" {
		t.Error("failed dump carries no error")
	}
}

func TestDumpNonJSONBlobStillAnswered(t *testing.T) {
	_, n, dialer, bus := newTestServices(t)
	n.OnConfigure()
	defer n.OnCleanup()

	conn := dialer.conn(t)
	conn.mu.Lock()
	conn.dumpBlob = []byte{0x00, 0xba, 0xd0}
	conn.mu.Unlock()

	// request fails the test if no response is published, so a garbage
	// dump must still produce an error envelope.
	resp := request(t, bus, OpDump, "req-10", nil)
	if resp.OK {
		t.Error("non-JSON dump reported OK")
	}
	if resp.Error == "" {
		t.Error("failed dump carries no error")
	}
}

func TestConfigRequest(t *testing.T) {
	_, n, dialer, bus := newTestServices(t)
	n.OnConfigure()
	defer n.OnCleanup()

	blob := []byte(`{"device":{"Name":"bench"}}`)
	resp := request(t, bus, OpConfig, "req-2", blob)
	if !resp.OK {
		t.Fatalf("config failed: %s", resp.Error)
	}
	if got := string(dialer.conn(t).config); got != string(blob) {
		t.Errorf("applied config = %s, want %s", got, blob)
	}
}

func TestConfigRejectsNonJSON(t *testing.T) {
	_, n, _, bus := newTestServices(t)
	n.OnConfigure()
	defer n.OnCleanup()

	resp := request(t, bus, OpConfig, "req-3", []byte("not json"))
	if resp.OK {
		t.Error("non-JSON config was accepted")
	}
}

func TestSoftPowerRequests(t *testing.T) {
	_, n, dialer, bus := newTestServices(t)
	n.OnConfigure()
	defer n.OnCleanup()

	if resp := request(t, bus, OpSoftOn, "req-4", nil); !resp.OK {
		t.Fatalf("soft_on failed: %s", resp.Error)
	}
	if resp := request(t, bus, OpSoftOff, "req-5", nil); !resp.OK {
		t.Fatalf("soft_off failed: %s", resp.Error)
	}

	conn := dialer.conn(t)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	want := []bool{true, false}
	if len(conn.power) != len(want) || conn.power[0] != want[0] || conn.power[1] != want[1] {
		t.Errorf("power commands = %v, want %v", conn.power, want)
	}
}

func TestSetParamsRequest(t *testing.T) {
	_, _, _, bus := newTestServices(t)

	resp := request(t, bus, OpSetParams, "req-6", []byte(`{"address":"10.1.2.3"}`))
	if !resp.OK {
		t.Fatalf("set_params failed: %s", resp.Error)
	}

	var result setParamsResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if !result.Accepted || !result.NeedsReentry {
		t.Errorf("result = %+v, want accepted with re-entry", result)
	}
}

func TestSetParamsRejection(t *testing.T) {
	_, n, _, bus := newTestServices(t)
	before := n.Params().Map()

	resp := request(t, bus, OpSetParams, "req-7", []byte(`{"timeout_millis":"0"}`))
	if resp.OK {
		t.Error("invalid batch reported OK")
	}
	if resp.Error == "" {
		t.Error("rejection carries no reason")
	}
	after := n.Params().Map()
	if after["timeout_millis"] != before["timeout_millis"] {
		t.Error("rejected batch changed parameters")
	}
}

func TestGetParamsRedactsPassword(t *testing.T) {
	_, n, _, bus := newTestServices(t)
	n.ApplyParams(map[string]string{"password": "hunter2"})

	resp := request(t, bus, OpGetParams, "req-8", nil)
	if !resp.OK {
		t.Fatalf("get_params failed: %s", resp.Error)
	}

	var params map[string]string
	if err := json.Unmarshal(resp.Data, &params); err != nil {
		t.Fatalf("decoding params: %v", err)
	}
	if params["password"] == "hunter2" {
		t.Error("password leaked through get_params")
	}
	if params["address"] == "" {
		t.Error("params missing address")
	}
}

func TestUnknownOperation(t *testing.T) {
	_, _, _, bus := newTestServices(t)

	resp := request(t, bus, "reboot", "req-9", nil)
	if resp.OK {
		t.Error("unknown operation reported OK")
	}
}

func TestParseRequestTopic(t *testing.T) {
	tests := []struct {
		topic  string
		op, id string
		wantOK bool
	}{
		{"graylogic/tof/cam-test/request/dump/req-1", "dump", "req-1", true},
		{"graylogic/tof/cam-test/request/set_params/abc", "set_params", "abc", true},
		{"graylogic/tof/cam-test/response/req-1", "", "", false},
		{"graylogic/tof/cam-test/request/dump", "", "", false},
		{"short", "", "", false},
	}
	for _, tt := range tests {
		op, id, ok := parseRequestTopic(tt.topic)
		if ok != tt.wantOK || op != tt.op || id != tt.id {
			t.Errorf("parseRequestTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.topic, op, id, ok, tt.op, tt.id, tt.wantOK)
		}
	}
}

func TestNotifyTransitionRetainsState(t *testing.T) {
	_, n, _, bus := newTestServices(t)

	n.NotifyTransition(lifecycle.StateUnconfigured, lifecycle.StateInactive, "configure")

	bus.mu.Lock()
	defer bus.mu.Unlock()
	found := false
	for _, m := range bus.messages {
		if m.topic == (mqtt.Topics{}.Lifecycle("cam-test")) && m.retained {
			var status struct {
				State string `json:"state"`
			}
			if err := json.Unmarshal(m.payload, &status); err != nil {
				t.Fatalf("decoding status: %v", err)
			}
			if status.State != "inactive" {
				t.Errorf("retained state = %q, want inactive", status.State)
			}
			found = true
		}
	}
	if !found {
		t.Error("no retained lifecycle status published")
	}
}
