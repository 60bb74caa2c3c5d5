// Package mqtt provides MQTT client connectivity for the Gray Logic ToF bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Frame stream publishing with QoS guarantees
//   - Control request subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the camera health topic
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT both as the outbound data plane (per-buffer frame
// streams) and as the control plane (request/response topics for dump,
// config, soft power and parameter updates):
//
//	ToF Bridge ↔ MQTT Broker ↔ Consumers / Orchestrator
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, "camera-01")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Serve control requests
//	err = client.Subscribe(mqtt.Topics{}.AllRequests("camera-01"), 1,
//	    func(topic string, payload []byte) error {
//	        // dispatch on the operation segment of the topic
//	        return nil
//	    })
//
//	// Publish a frame message
//	topic := mqtt.Topics{}.Stream("camera-01", "radial_distance")
//	client.Publish(topic, payload, 0, false)
package mqtt
