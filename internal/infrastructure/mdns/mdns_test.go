package mdns

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

func TestTXTRecords(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want []string
	}{
		{
			name: "full",
			info: Info{Version: "1.2.0", SiteID: "home", APIPath: "/api/v1", Domains: []string{"thermopro", "govee"}},
			want: []string{"version=1.2.0", "site=home", "api=/api/v1", "domains=govee,thermopro"},
		},
		{
			name: "single domain",
			info: Info{APIPath: "/api/v1", Domains: []string{"thermopro"}},
			want: []string{"api=/api/v1", "domains=thermopro"},
		},
		{
			name: "empty",
			info: Info{},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, TXTRecords(tt.info)); diff != "" {
				t.Errorf("TXTRecords() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTXTRecords_DoesNotReorderInput(t *testing.T) {
	domains := []string{"thermopro", "govee"}
	TXTRecords(Info{Domains: domains})
	if domains[0] != "thermopro" {
		t.Errorf("input slice reordered: %v", domains)
	}
}

func TestAdvertise_Disabled(t *testing.T) {
	a := NewAdvertiser(config.MDNSConfig{Enabled: false})
	if err := a.Advertise(Info{Port: 8080}); !errors.Is(err, ErrDisabled) {
		t.Errorf("Advertise() error = %v, want ErrDisabled", err)
	}
	if a.Advertising() {
		t.Error("Advertising() = true when disabled")
	}
}

func TestAdvertise_Validation(t *testing.T) {
	a := NewAdvertiser(config.MDNSConfig{Enabled: true, Instance: "bleflow", Service: "_bleflow._tcp", Domain: "local."})
	if err := a.Advertise(Info{Port: 0}); err == nil {
		t.Error("Advertise() with port 0 should fail")
	}

	a = NewAdvertiser(config.MDNSConfig{Enabled: true, Instance: "bleflow", Service: "_bleflow._tcp", Domain: "local.", Interface: "no-such-iface0"})
	if err := a.Advertise(Info{Port: 8080}); err == nil {
		t.Error("Advertise() on unknown interface should fail")
	}
}

func TestStopAndUpdateWithoutServer(t *testing.T) {
	a := NewAdvertiser(config.MDNSConfig{Enabled: true})
	a.Update(Info{Version: "1"})
	a.Stop()
	a.Stop()
}
