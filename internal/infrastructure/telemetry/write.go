package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordFrame writes one point per delivered frame.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - interval: Time since the previous delivered frame
//   - buffers: Number of buffers the frame carried
func (c *Client) RecordFrame(interval time.Duration, buffers int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tof_frames",
		map[string]string{
			"camera_id": c.cameraID,
		},
		map[string]interface{}{
			"interval_secs": interval.Seconds(),
			"buffer_count":  buffers,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordTimeout counts one frame wait that elapsed without data. A rising
// rate of these with no frames in between is the first sign of a stalled
// or reparameterizing camera.
func (c *Client) RecordTimeout() {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tof_timeouts",
		map[string]string{
			"camera_id": c.cameraID,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
