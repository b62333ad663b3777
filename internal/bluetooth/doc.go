// Package bluetooth models Bluetooth LE advertisements as seen by the
// service and keeps the discovery cache.
//
// Advertisements arrive from BLE gateways (over MQTT) as JSON and are
// decoded into ServiceInfo values. The Cache keeps the latest observation
// per address until it goes stale, and is the candidate source for
// user-initiated setup.
//
// This package does not talk to a radio; scanning is the gateways' job.
package bluetooth
