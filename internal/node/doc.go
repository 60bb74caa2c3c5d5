// Package node ties the camera session, the lifecycle callbacks, the
// acquisition loop and the MQTT control surface into one managed unit.
//
// The node never drives its own lifecycle. The host (cmd/tofbridge) owns
// the lifecycle.Machine and reacts to two channels:
//
//   - Errors() delivers hard acquisition failures; the host answers by
//     raising a lifecycle error so resources are torn down centrally.
//   - ReconfigureRequests() fires when an accepted parameter batch touched
//     a session-affecting value; the host cycles the node through
//     deactivate/cleanup/configure/activate to apply it.
//
// Locking: mu guards the parameter set and the session/loop handles.
// sessionMu serializes device operations, held for one operation at a
// time. The acquisition loop holds sessionMu only for the duration of a
// single bounded frame wait, so control requests are delayed by at most
// one frame timeout, never starved.
package node
