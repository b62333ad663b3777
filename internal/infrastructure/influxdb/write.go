package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSighting   = "ble_sightings"
	MeasurementFlowResult = "flow_results"
)

// Sighting is one advertisement as recorded in ble_sightings.
type Sighting struct {
	Address string
	Name    string
	Gateway string
	RSSI    int
	Time    time.Time
}

// FlowResult is one finished flow as recorded in flow_results.
type FlowResult struct {
	Domain  string
	Source  string
	Outcome string // create_entry or abort
	Reason  string // abort reason, empty for create_entry
	Time    time.Time
}

// WriteSighting records an advertisement in ble_sightings.
//
// The address is a tag so RSSI can be charted per device; the advertised
// name is a field because it can change.
//
// Parameters:
//   - s: The sighting; a zero Time is stamped with the current time
//
// Note: This is non-blocking. Points are batched and written asynchronously,
// and write errors go to the SetOnError callback.
func (c *Client) WriteSighting(s Sighting) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sightingPoint(s))
}

// WriteFlowResult records a finished flow as a counter point in flow_results.
//
// Parameters:
//   - r: Domain, source, outcome (create_entry or abort) and abort reason
//
// Note: This is non-blocking, like WriteSighting.
func (c *Client) WriteFlowResult(r FlowResult) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(flowResultPoint(r))
}

func sightingPoint(s Sighting) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementSighting,
		map[string]string{
			"address": s.Address,
			"gateway": s.Gateway,
		},
		map[string]interface{}{
			"rssi": int64(s.RSSI),
			"name": s.Name,
		},
		ts,
	)
}

func flowResultPoint(r FlowResult) *write.Point {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	tags := map[string]string{
		"domain":  r.Domain,
		"source":  r.Source,
		"outcome": r.Outcome,
	}
	if r.Reason != "" {
		tags["reason"] = r.Reason
	}
	return write.NewPoint(MeasurementFlowResult, tags, map[string]interface{}{"count": int64(1)}, ts)
}

// WritePoint writes a custom point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Indexed metadata (e.g., domain, address)
//   - fields: Values to record (e.g., rssi, count)
//   - timestamp: When the observation was made
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
