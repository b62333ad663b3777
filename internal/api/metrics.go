package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics is the response body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          *MQTTMetrics   `json:"mqtt,omitempty"`
	Flows         FlowMetrics    `json:"flows"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT connection status.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// FlowMetrics summarises flow and discovery state.
type FlowMetrics struct {
	InProgress        int            `json:"in_progress"`
	InProgressBySrc   map[string]int `json:"in_progress_by_source"`
	Entries           int            `json:"entries"`
	DiscoveredDevices int            `json:"discovered_devices"`
}

// handleMetrics returns runtime, connection and flow statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	open := s.flows.Progress("")
	bySource := make(map[string]int)
	for _, f := range open {
		bySource[string(f.Source)]++
	}

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Flows: FlowMetrics{
			InProgress:        len(open),
			InProgressBySrc:   bySource,
			Entries:           s.entries.Count(),
			DiscoveredDevices: s.cache.Len(),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
