// Package mdns announces the bleflow API on the local network so gateways
// and dashboards can find it without configuration.
package mdns

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

// ErrDisabled is returned by Advertise when mdns.enabled is false.
var ErrDisabled = errors.New("mdns: disabled in configuration")

// Info is what the announcement carries in its TXT record.
type Info struct {
	Port    int
	Version string
	SiteID  string
	APIPath string
	Domains []string
}

// Advertiser registers and withdraws the bleflow service record.
type Advertiser struct {
	cfg config.MDNSConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Nothing is announced until Advertise.
func NewAdvertiser(cfg config.MDNSConfig) *Advertiser {
	return &Advertiser{cfg: cfg}
}

// Advertise starts announcing the service, replacing any earlier
// announcement.
func (a *Advertiser) Advertise(info Info) error {
	if !a.cfg.Enabled {
		return ErrDisabled
	}
	if info.Port <= 0 {
		return fmt.Errorf("mdns: invalid port %d", info.Port)
	}

	ifaces, err := a.interfaces()
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		a.cfg.Instance,
		a.cfg.Service,
		a.cfg.Domain,
		info.Port,
		TXTRecords(info),
		ifaces,
	)
	if err != nil {
		return fmt.Errorf("registering %s service: %w", a.cfg.Service, err)
	}
	a.server = server
	return nil
}

// Update replaces the TXT record of the running announcement.
func (a *Advertiser) Update(info Info) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.SetText(TXTRecords(info))
	}
}

// Stop withdraws the announcement. Safe to call when nothing is announced.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Advertising reports whether an announcement is active.
func (a *Advertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// interfaces returns nil (all interfaces) unless one is configured.
func (a *Advertiser) interfaces() ([]net.Interface, error) {
	if a.cfg.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil, fmt.Errorf("mdns interface %q: %w", a.cfg.Interface, err)
	}
	return []net.Interface{*iface}, nil
}

// TXTRecords encodes info as key=value strings. Empty values are omitted.
func TXTRecords(info Info) []string {
	var txt []string
	add := func(k, v string) {
		if v != "" {
			txt = append(txt, k+"="+v)
		}
	}
	add("version", info.Version)
	add("site", info.SiteID)
	add("api", info.APIPath)

	domains := append([]string(nil), info.Domains...)
	sort.Strings(domains)
	for i, d := range domains {
		if i == 0 {
			txt = append(txt, "domains="+d)
			continue
		}
		txt[len(txt)-1] += "," + d
	}
	return txt
}
