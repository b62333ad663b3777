package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/entry"
	"github.com/nerrad567/bleflow/internal/flow"
	"github.com/nerrad567/bleflow/internal/infrastructure/influxdb"
	"github.com/nerrad567/bleflow/internal/infrastructure/mqtt"
)

// FlowStarter starts configuration flows.
type FlowStarter interface {
	Init(ctx context.Context, domain string, source flow.Source, info *bluetooth.ServiceInfo) (*flow.Result, error)
}

// Matcher returns the domains whose signature matches an advertisement.
type Matcher interface {
	Match(info bluetooth.ServiceInfo) []string
}

// SightingWriter records advertisements as time series.
type SightingWriter interface {
	WriteSighting(s influxdb.Sighting)
}

// DeviceWatcher is told when addresses enter or leave the cache.
type DeviceWatcher interface {
	DeviceFound(info bluetooth.ServiceInfo)
	DevicesLost(addresses []string)
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher feeds advertisements into the cache and starts discovery flows.
type Dispatcher struct {
	cache   *bluetooth.Cache
	matcher Matcher
	flows   FlowStarter

	sightings SightingWriter
	watcher   DeviceWatcher
	autoStart bool

	mu        sync.Mutex
	triggered map[string]map[string]struct{} // address -> domains

	logger Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cache *bluetooth.Cache, matcher Matcher, flows FlowStarter) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		matcher:   matcher,
		flows:     flows,
		triggered: make(map[string]map[string]struct{}),
		autoStart: true,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetSightingWriter records every accepted advertisement with w.
func (d *Dispatcher) SetSightingWriter(w SightingWriter) {
	d.sightings = w
}

// SetAutoStart controls whether matching advertisements start flows. When
// off, advertisements only feed the cache for user-initiated setup.
func (d *Dispatcher) SetAutoStart(on bool) {
	d.autoStart = on
}

// SetDeviceWatcher reports cache arrivals and evictions to w.
func (d *Dispatcher) SetDeviceWatcher(w DeviceWatcher) {
	d.watcher = w
}

// HandleMessage is an mqtt.MessageHandler for the advertisement topic.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	gateway, ok := mqtt.ParseAdvertisementTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected advertisement topic %q", topic)
	}
	info, err := bluetooth.ParseAdvertisement(payload, gateway, d.now())
	if err != nil {
		return fmt.Errorf("gateway %s: %w", gateway, err)
	}
	d.Process(context.Background(), info)
	return nil
}

// Process records info and starts a discovery flow for every matching
// domain not yet triggered for its address.
func (d *Dispatcher) Process(ctx context.Context, info bluetooth.ServiceInfo) {
	if d.cache.Observe(info) && d.watcher != nil {
		d.watcher.DeviceFound(info)
	}

	if d.sightings != nil {
		d.sightings.WriteSighting(influxdb.Sighting{
			Address: info.Address,
			Name:    info.Name,
			Gateway: info.Source,
			RSSI:    info.RSSI,
			Time:    info.Time,
		})
	}

	if !d.autoStart {
		return
	}
	for _, domain := range d.matcher.Match(info) {
		if !d.arm(info.Address, domain) {
			continue
		}
		d.start(ctx, domain, info)
	}
}

// arm marks (address, domain) as triggered, reporting false if it already was.
func (d *Dispatcher) arm(address, domain string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	domains, ok := d.triggered[address]
	if !ok {
		domains = make(map[string]struct{})
		d.triggered[address] = domains
	}
	if _, done := domains[domain]; done {
		return false
	}
	domains[domain] = struct{}{}
	return true
}

func (d *Dispatcher) disarm(address, domain string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	domains, ok := d.triggered[address]
	if !ok {
		return
	}
	if domain == "" {
		delete(d.triggered, address)
		return
	}
	delete(domains, domain)
	if len(domains) == 0 {
		delete(d.triggered, address)
	}
}

func (d *Dispatcher) start(ctx context.Context, domain string, info bluetooth.ServiceInfo) {
	result, err := d.flows.Init(ctx, domain, flow.SourceBluetooth, &info)
	if err != nil {
		// Retry on the next advertisement.
		d.disarm(info.Address, domain)
		d.logger.Error("starting discovery flow",
			"domain", domain, "address", info.Address, "error", err)
		return
	}
	d.logger.Debug("discovery flow dispatched",
		"domain", domain, "address", info.Address, "type", result.Type, "reason", result.Reason)
}

// Triggered reports whether a discovery flow was dispatched for the pair
// since the device last appeared.
func (d *Dispatcher) Triggered(address, domain string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.triggered[address][domain]
	return ok
}

// OnExpired forgets addresses evicted from the cache so their next
// advertisement counts as a new appearance.
func (d *Dispatcher) OnExpired(addresses []string) {
	for _, addr := range addresses {
		d.disarm(addr, "")
	}
	if d.watcher != nil {
		d.watcher.DevicesLost(addresses)
	}
	d.logger.Debug("advertisements expired", "count", len(addresses))
}

// OnEntryChange re-runs discovery for a device whose entry was removed
// while it is still in range. Subscribe it to the entry registry.
func (d *Dispatcher) OnEntryChange(change entry.Change) {
	if change.Type != entry.ChangeRemoved {
		return
	}
	address, domain := change.Entry.UniqueID, change.Entry.Domain
	d.disarm(address, domain)

	info, ok := d.cache.Get(address)
	if !ok || !d.autoStart {
		return
	}
	for _, matched := range d.matcher.Match(info) {
		if matched == domain && d.arm(address, domain) {
			d.logger.Info("entry removed, rediscovering device", "domain", domain, "address", address)
			d.start(context.Background(), domain, info)
		}
	}
}

// Run sweeps stale advertisements every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	d.cache.Run(ctx, interval, d.OnExpired)
}
