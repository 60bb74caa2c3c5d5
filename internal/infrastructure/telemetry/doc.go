// Package telemetry records frame acquisition metrics in InfluxDB.
//
// The bridge writes one point per delivered frame (inter-frame interval
// and buffer count) plus a timeout counter, tagged by camera id. Writes
// are non-blocking and batched by the InfluxDB client, so the acquisition
// loop never waits on the network.
//
// Telemetry is optional: when disabled in config the node simply receives
// a nil recorder and all calls become no-ops.
package telemetry
