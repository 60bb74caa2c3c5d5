package mqtt

import (
	"errors"
	"testing"
)

func TestTopics_Stream(t *testing.T) {
	got := Topics{}.Stream("camera-01", "radial_distance")
	want := "graylogic/tof/camera-01/stream/radial_distance"
	if got != want {
		t.Errorf("Stream() = %q, want %q", got, want)
	}
}

func TestTopics_RequestResponse(t *testing.T) {
	gotReq := Topics{}.Request("camera-01", "dump", "req-abc123")
	wantReq := "graylogic/tof/camera-01/request/dump/req-abc123"
	if gotReq != wantReq {
		t.Errorf("Request() = %q, want %q", gotReq, wantReq)
	}

	gotResp := Topics{}.Response("camera-01", "req-abc123")
	wantResp := "graylogic/tof/camera-01/response/req-abc123"
	if gotResp != wantResp {
		t.Errorf("Response() = %q, want %q", gotResp, wantResp)
	}
}

func TestTopics_Wildcards(t *testing.T) {
	if got, want := (Topics{}).AllRequests("cam"), "graylogic/tof/cam/request/+/+"; got != want {
		t.Errorf("AllRequests() = %q, want %q", got, want)
	}
	if got, want := (Topics{}).AllStreams("cam"), "graylogic/tof/cam/stream/+"; got != want {
		t.Errorf("AllStreams() = %q, want %q", got, want)
	}
}

// Validation paths below don't need a live broker; a zero Client is enough
// because input checks run before any network access.

func TestPublish_Validation(t *testing.T) {
	c := &Client{}

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("t", make([]byte, maxPayloadSize+1), 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversized) error = %v, want ErrPublishFailed", err)
	}
	if err := c.Publish("t", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish(disconnected) error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 0, func(string, []byte) error { return nil }); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty topic) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}
