package influxdb

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var at = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestSightingPoint(t *testing.T) {
	p := sightingPoint(Sighting{
		Address: "AA:BB:CC:DD:EE:FF",
		Name:    "TP357 (2142)",
		Gateway: "kitchen-pi",
		RSSI:    -60,
		Time:    at,
	})
	line := write.PointToLineProtocol(p, time.Nanosecond)

	for _, want := range []string{
		"ble_sightings,",
		"address=AA:BB:CC:DD:EE:FF",
		"gateway=kitchen-pi",
		"rssi=-60i",
		`name="TP357 (2142)"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}
}

func TestFlowResultPoint(t *testing.T) {
	tests := []struct {
		name       string
		result     FlowResult
		wantTags   []string
		absentTags []string
	}{
		{
			name:     "abort carries reason",
			result:   FlowResult{Domain: "thermopro", Source: "bluetooth", Outcome: "abort", Reason: "already_in_progress", Time: at},
			wantTags: []string{"domain=thermopro", "source=bluetooth", "outcome=abort", "reason=already_in_progress"},
		},
		{
			name:       "create entry has no reason",
			result:     FlowResult{Domain: "thermopro", Source: "user", Outcome: "create_entry", Time: at},
			wantTags:   []string{"outcome=create_entry", "source=user"},
			absentTags: []string{"reason="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := write.PointToLineProtocol(flowResultPoint(tt.result), time.Nanosecond)
			if !strings.HasPrefix(line, "flow_results,") || !strings.Contains(line, "count=1i") {
				t.Errorf("line protocol = %q", line)
			}
			for _, want := range tt.wantTags {
				if !strings.Contains(line, want) {
					t.Errorf("line protocol %q missing %q", line, want)
				}
			}
			for _, absent := range tt.absentTags {
				if strings.Contains(line, absent) {
					t.Errorf("line protocol %q should not contain %q", line, absent)
				}
			}
		})
	}
}

func TestPointDefaultsTime(t *testing.T) {
	before := time.Now()
	p := flowResultPoint(FlowResult{Domain: "thermopro", Source: "user", Outcome: "abort"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
}

func TestDisconnectedClientDropsWrites(t *testing.T) {
	c := &Client{}
	c.WriteSighting(Sighting{Address: "AA:BB:CC:DD:EE:FF"})
	c.WriteFlowResult(FlowResult{Domain: "thermopro"})
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	c.Flush()
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
