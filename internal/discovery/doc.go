// Package discovery turns received Bluetooth advertisements into discovery
// flows and reports finished flows to the outside world.
//
// The Dispatcher keeps the advertisement cache current and starts one
// bluetooth flow per (domain, address) each time a device appears. A device
// is eligible again after it expires from the cache or after its config
// entry is removed.
//
// The Announcer publishes every finished flow on MQTT and records it in
// InfluxDB.
package discovery
