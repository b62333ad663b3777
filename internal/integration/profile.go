package integration

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/infrastructure/config"
)

// DefaultTitleTemplate builds "TP357 (2142) AC3D" from a name pattern with
// model and short_id captures.
const DefaultTitleTemplate = "{model} ({short_id}) {address_suffix}"

// Profile is the signature of one integration domain.
//
// Every configured criterion must hold for an advertisement to match:
// the local name pattern, at least one manufacturer ID, and at least one
// service UUID. Criteria left empty are not checked.
type Profile struct {
	Domain          string
	Name            string
	LocalName       *regexp.Regexp
	ManufacturerIDs []uint16
	ServiceUUIDs    []string
	TitleTemplate   string
}

// NewProfile compiles a profile from its configuration.
func NewProfile(cfg config.IntegrationConfig) (*Profile, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidProfile)
	}

	p := &Profile{
		Domain:          cfg.Domain,
		Name:            cfg.Name,
		ManufacturerIDs: slices.Clone(cfg.ManufacturerIDs),
		ServiceUUIDs:    slices.Clone(cfg.ServiceUUIDs),
		TitleTemplate:   cfg.TitleTemplate,
	}
	if p.Name == "" {
		p.Name = cfg.Domain
	}

	if cfg.LocalNamePattern != "" {
		re, err := regexp.Compile(cfg.LocalNamePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: local_name_pattern: %v", ErrInvalidProfile, cfg.Domain, err)
		}
		p.LocalName = re
	}

	if p.LocalName == nil && len(p.ManufacturerIDs) == 0 && len(p.ServiceUUIDs) == 0 {
		return nil, fmt.Errorf("%w: %s: no signature criteria", ErrInvalidProfile, cfg.Domain)
	}
	if p.TitleTemplate == "" && p.LocalName != nil && hasGroups(p.LocalName, "model", "short_id") {
		p.TitleTemplate = DefaultTitleTemplate
	}
	return p, nil
}

func hasGroups(re *regexp.Regexp, names ...string) bool {
	for _, n := range names {
		if re.SubexpIndex(n) < 0 {
			return false
		}
	}
	return true
}

// Supported reports whether info carries this profile's signature.
func (p *Profile) Supported(info bluetooth.ServiceInfo) bool {
	if p.LocalName != nil && !p.LocalName.MatchString(info.Name) {
		return false
	}

	if len(p.ManufacturerIDs) > 0 {
		found := false
		for _, id := range p.ManufacturerIDs {
			if _, ok := info.ManufacturerData[id]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(p.ServiceUUIDs) > 0 {
		found := false
		for _, uuid := range p.ServiceUUIDs {
			if info.HasServiceUUID(uuid) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// Title derives the entry title for info.
//
// Template placeholders are {name}, {address}, {address_suffix} and every
// named capture of the local name pattern. If a placeholder cannot be
// filled the title falls back to "<name> <address_suffix>".
func (p *Profile) Title(info bluetooth.ServiceInfo) string {
	suffix := bluetooth.ShortAddress(info.Address)

	name := info.Name
	if name == "" {
		name = p.Name
	}
	fallback := name + " " + suffix

	if p.TitleTemplate == "" {
		return fallback
	}

	values := map[string]string{
		"name":           name,
		"address":        info.Address,
		"address_suffix": suffix,
	}
	if p.LocalName != nil {
		if m := p.LocalName.FindStringSubmatch(info.Name); m != nil {
			for i, group := range p.LocalName.SubexpNames() {
				if group != "" {
					values[group] = m[i]
				}
			}
		}
	}

	title, ok := expand(p.TitleTemplate, values)
	if !ok {
		return fallback
	}
	return title
}

// expand substitutes {key} placeholders. ok is false if any key is missing.
func expand(tmpl string, values map[string]string) (string, bool) {
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return strings.TrimSpace(b.String()), true
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return strings.TrimSpace(b.String()), true
		}
		b.WriteString(rest[:open])
		v, ok := values[rest[open+1:open+end]]
		if !ok {
			return "", false
		}
		b.WriteString(v)
		rest = rest[open+end+1:]
	}
}
