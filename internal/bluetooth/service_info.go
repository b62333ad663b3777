package bluetooth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ServiceInfo is one observed advertisement. It is immutable once built;
// a newer observation of the same address replaces it in the cache.
type ServiceInfo struct {
	Name             string            `json:"name"`
	Address          string            `json:"address"`
	RSSI             int               `json:"rssi"`
	ManufacturerData map[uint16][]byte `json:"-"`
	ServiceData      map[string][]byte `json:"-"`
	ServiceUUIDs     []string          `json:"service_uuids,omitempty"`
	Source           string            `json:"source"`
	Connectable      bool              `json:"connectable"`
	Time             time.Time         `json:"time"`
}

// ManufacturerIDs returns the company identifiers present, ascending.
func (s ServiceInfo) ManufacturerIDs() []uint16 {
	ids := make([]uint16, 0, len(s.ManufacturerData))
	for id := range s.ManufacturerData {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasServiceUUID reports whether uuid is advertised, ignoring case.
func (s ServiceInfo) HasServiceUUID(uuid string) bool {
	for _, u := range s.ServiceUUIDs {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	for u := range s.ServiceData {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	return false
}

// Advertisement is the wire form gateways publish. Binary fields are hex
// strings keyed by decimal (or 0x-prefixed) company ID / service UUID.
type Advertisement struct {
	Address          string            `json:"address"`
	Name             string            `json:"name"`
	RSSI             int               `json:"rssi"`
	ManufacturerData map[string]string `json:"manufacturer_data,omitempty"`
	ServiceData      map[string]string `json:"service_data,omitempty"`
	ServiceUUIDs     []string          `json:"service_uuids,omitempty"`
	Connectable      bool              `json:"connectable"`
	Time             *time.Time        `json:"time,omitempty"`
}

// MarshalJSON renders binary fields back into the wire form so API clients
// see the same shape gateways send.
func (s ServiceInfo) MarshalJSON() ([]byte, error) {
	type alias ServiceInfo
	out := struct {
		alias
		ManufacturerData map[string]string `json:"manufacturer_data,omitempty"`
		ServiceData      map[string]string `json:"service_data,omitempty"`
	}{alias: alias(s)}

	if len(s.ManufacturerData) > 0 {
		out.ManufacturerData = make(map[string]string, len(s.ManufacturerData))
		for id, b := range s.ManufacturerData {
			out.ManufacturerData[strconv.Itoa(int(id))] = hex.EncodeToString(b)
		}
	}
	if len(s.ServiceData) > 0 {
		out.ServiceData = make(map[string]string, len(s.ServiceData))
		for uuid, b := range s.ServiceData {
			out.ServiceData[uuid] = hex.EncodeToString(b)
		}
	}
	return json.Marshal(out)
}

// ParseAdvertisement decodes a gateway payload. source names the gateway;
// received is used when the payload carries no timestamp.
func ParseAdvertisement(payload []byte, source string, received time.Time) (ServiceInfo, error) {
	var adv Advertisement
	if err := json.Unmarshal(payload, &adv); err != nil {
		return ServiceInfo{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return adv.ServiceInfo(source, received)
}

// ServiceInfo converts the wire form, validating the address and decoding
// hex fields.
func (a Advertisement) ServiceInfo(source string, received time.Time) (ServiceInfo, error) {
	address, err := NormalizeAddress(a.Address)
	if err != nil {
		return ServiceInfo{}, err
	}

	info := ServiceInfo{
		Name:         strings.TrimSpace(a.Name),
		Address:      address,
		RSSI:         a.RSSI,
		ServiceUUIDs: a.ServiceUUIDs,
		Source:       source,
		Connectable:  a.Connectable,
		Time:         received.UTC(),
	}
	if a.Time != nil {
		info.Time = a.Time.UTC()
	}

	if len(a.ManufacturerData) > 0 {
		info.ManufacturerData = make(map[uint16][]byte, len(a.ManufacturerData))
		for k, v := range a.ManufacturerData {
			id, err := strconv.ParseUint(k, 0, 16)
			if err != nil {
				return ServiceInfo{}, fmt.Errorf("%w: manufacturer id %q", ErrInvalidPayload, k)
			}
			b, err := hex.DecodeString(v)
			if err != nil {
				return ServiceInfo{}, fmt.Errorf("%w: manufacturer data for %d: %v", ErrInvalidPayload, id, err)
			}
			info.ManufacturerData[uint16(id)] = b
		}
	}

	if len(a.ServiceData) > 0 {
		info.ServiceData = make(map[string][]byte, len(a.ServiceData))
		for uuid, v := range a.ServiceData {
			b, err := hex.DecodeString(v)
			if err != nil {
				return ServiceInfo{}, fmt.Errorf("%w: service data for %s: %v", ErrInvalidPayload, uuid, err)
			}
			info.ServiceData[strings.ToLower(uuid)] = b
		}
	}

	return info, nil
}

var (
	macPattern  = regexp.MustCompile(`^[0-9A-F]{2}([:-][0-9A-F]{2}){5}$`)
	uuidPattern = regexp.MustCompile(`^[0-9A-F]{8}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{12}$`)
)

// NormalizeAddress upper-cases and validates a device address. Both MAC
// addresses and the per-host UUIDs some platforms expose are accepted.
func NormalizeAddress(address string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(address))
	if macPattern.MatchString(a) {
		return strings.ReplaceAll(a, "-", ":"), nil
	}
	if uuidPattern.MatchString(a) {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
}

// ShortAddress returns the last four hex digits of an address, upper-cased.
//
//	ShortAddress("AA:BB:CC:DD:EE:FF")                    == "EEFF"
//	ShortAddress("4125DDBA-2774-4851-9889-6AADDD4CAC3D") == "AC3D"
func ShortAddress(address string) string {
	parts := strings.Split(strings.ReplaceAll(address, "-", ":"), ":")
	tail := parts[len(parts)-1]
	if len(parts) > 1 {
		tail = parts[len(parts)-2] + tail
	}
	tail = strings.ToUpper(tail)
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return tail
}
