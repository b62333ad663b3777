package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/bleflow/internal/bluetooth"
)

// DiscoveredDevice is one cached advertisement with the domains whose
// signature it matches.
type DiscoveredDevice struct {
	Device      bluetooth.ServiceInfo `json:"device"`
	Domains     []string              `json:"domains"`
	LastSeenAgo string                `json:"last_seen_ago"`
}

// handleListDiscovery returns the discovery cache snapshot. ?domain= keeps
// only devices matching that domain.
func (s *Server) handleListDiscovery(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	now := time.Now()

	devices := make([]DiscoveredDevice, 0, s.cache.Len())
	for _, info := range s.cache.Candidates() {
		domains := s.profiles.Match(info)
		if domain != "" && !contains(domains, domain) {
			continue
		}
		if domains == nil {
			domains = []string{}
		}
		devices = append(devices, DiscoveredDevice{
			Device:      info,
			Domains:     domains,
			LastSeenAgo: now.Sub(info.Time).Truncate(time.Second).String(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
