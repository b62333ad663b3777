package integration

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

// ThermoProDomain is the domain of the built-in ThermoPro profile.
const ThermoProDomain = "thermopro"

// ThermoPro returns the built-in profile for ThermoPro hygrometers.
// Their local names are "<model> (<4 hex digits>)", e.g. "TP357 (2142)".
func ThermoPro() *Profile {
	p, err := NewProfile(config.IntegrationConfig{
		Domain:           ThermoProDomain,
		Name:             "ThermoPro",
		LocalNamePattern: `^(?P<model>TP\d{3}[A-Z]*) \((?P<short_id>[0-9A-Fa-f]{4})\)$`,
	})
	if err != nil {
		panic(err) // constant input
	}
	return p
}

// Catalogue maps integration domains to their profiles.
type Catalogue struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewCatalogue creates a catalogue holding the given profiles.
func NewCatalogue(profiles ...*Profile) *Catalogue {
	c := &Catalogue{profiles: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		c.profiles[p.Domain] = p
	}
	return c
}

// FromConfig builds the catalogue: the built-in ThermoPro profile plus the
// configured integrations. A configured profile with the same domain
// replaces the built-in one; disabled entries remove it.
func FromConfig(cfgs []config.IntegrationConfig) (*Catalogue, error) {
	c := NewCatalogue(ThermoPro())
	for _, ic := range cfgs {
		if ic.Disabled {
			c.Remove(ic.Domain)
			continue
		}
		p, err := NewProfile(ic)
		if err != nil {
			return nil, err
		}
		c.Add(p)
	}
	return c, nil
}

// Add registers or replaces a profile.
func (c *Catalogue) Add(p *Profile) {
	c.mu.Lock()
	c.profiles[p.Domain] = p
	c.mu.Unlock()
}

// Remove unregisters a domain.
func (c *Catalogue) Remove(domain string) {
	c.mu.Lock()
	delete(c.profiles, domain)
	c.mu.Unlock()
}

// Get returns the profile for domain.
func (c *Catalogue) Get(domain string) (*Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	return p, nil
}

// Domains returns the registered domains, sorted.
func (c *Catalogue) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.profiles))
	for d := range c.profiles {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Match returns the domains whose profile supports info, sorted.
func (c *Catalogue) Match(info bluetooth.ServiceInfo) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for d, p := range c.profiles {
		if p.Supported(info) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
