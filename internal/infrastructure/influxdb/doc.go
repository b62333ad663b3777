// Package influxdb writes bleflow time series to InfluxDB v2: one point per
// received advertisement (ble_sightings) and one per finished flow
// (flow_results).
//
// InfluxDB is optional. When influxdb.enabled is false Connect returns
// ErrDisabled and the caller runs without it.
package influxdb
