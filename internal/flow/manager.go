package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/entry"
	"github.com/nerrad567/bleflow/internal/integration"
)

// DiscoveryCache supplies the devices currently visible.
type DiscoveryCache interface {
	Candidates() []bluetooth.ServiceInfo
}

// EntryRegistry is the persistent store of config entries.
// FindEntry returns entry.ErrEntryNotFound when the device has no entry.
type EntryRegistry interface {
	FindEntry(ctx context.Context, domain, uniqueID string) (*entry.Entry, error)
	CreateEntry(ctx context.Context, e *entry.Entry) error
	ReplaceEntry(ctx context.Context, e *entry.Entry) error
}

// Profiles resolves an integration domain to its signature.
type Profiles interface {
	Get(domain string) (*integration.Profile, error)
}

// Logger defines the logging interface used by the Manager.
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

// Manager owns every open flow.
//
// All public methods are safe for concurrent use.
type Manager struct {
	profiles Profiles
	entries  EntryRegistry
	cache    DiscoveryCache

	mu    sync.Mutex
	flows map[string]*flow

	// Serialises guard checks and entry writes per (domain, address).
	addrLocks *keyedMutex

	listenersMu sync.RWMutex
	listeners   []Listener

	logger Logger
	now    func() time.Time
	newID  func() string
}

// NewManager creates a flow manager.
func NewManager(profiles Profiles, entries EntryRegistry, cache DiscoveryCache) *Manager {
	return &Manager{
		profiles:  profiles,
		entries:   entries,
		cache:     cache,
		flows:     make(map[string]*flow),
		addrLocks: newKeyedMutex(),
		logger:    noopLogger{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

func addrKey(domain, address string) string {
	return domain + "\x00" + address
}

// Init starts a flow for domain.
//
// For SourceBluetooth, info is the discovered device and the result is
// either the bluetooth_confirm form or an abort (not_supported,
// already_configured, already_in_progress). For SourceUser, info is
// ignored; the result is the user form listing the cached devices that
// can be set up, or abort(no_devices_found).
func (m *Manager) Init(ctx context.Context, domain string, source Source, info *bluetooth.ServiceInfo) (*Result, error) {
	profile, err := m.profiles.Get(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, domain)
	}

	switch source {
	case SourceBluetooth:
		if info == nil {
			return nil, fmt.Errorf("%w: bluetooth flow needs a discovered device", ErrInvalidInput)
		}
		return m.initBluetooth(ctx, profile, *info)
	case SourceUser:
		return m.initUser(ctx, profile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
}

func (m *Manager) initBluetooth(ctx context.Context, profile *integration.Profile, info bluetooth.ServiceInfo) (*Result, error) {
	f := &flow{
		id:        m.newID(),
		handler:   profile.Domain,
		source:    SourceBluetooth,
		uniqueID:  info.Address,
		startedAt: m.now(),
	}

	if !profile.Supported(info) {
		return m.finishEarly(f, ReasonNotSupported), nil
	}

	unlock := m.addrLocks.Lock(addrKey(profile.Domain, info.Address))

	existing, err := m.findEntry(ctx, profile.Domain, info.Address)
	if err != nil {
		unlock()
		return nil, err
	}
	if existing != nil {
		unlock()
		return m.finishEarly(f, ReasonAlreadyConfigured), nil
	}

	m.mu.Lock()
	for _, other := range m.flows {
		if other.handler == profile.Domain && other.source == SourceBluetooth && other.uniqueID == info.Address {
			m.mu.Unlock()
			unlock()
			return m.finishEarly(f, ReasonAlreadyInProgress), nil
		}
	}
	candidate := info
	f.candidate = &candidate
	f.title = profile.Title(info)
	f.stepID = StepBluetoothConfirm
	m.flows[f.id] = f
	m.mu.Unlock()
	unlock()

	m.logger.Info("discovery flow started",
		"flow_id", f.id, "handler", f.handler, "address", f.uniqueID, "title", f.title)

	result := f.form()
	m.emit([]Event{{Type: EventStarted, Flow: f.snapshot(), Result: *result}})
	return result, nil
}

func (m *Manager) initUser(ctx context.Context, profile *integration.Profile) (*Result, error) {
	f := &flow{
		id:        m.newID(),
		handler:   profile.Domain,
		source:    SourceUser,
		startedAt: m.now(),
		offered:   make(map[string]bluetooth.ServiceInfo),
	}

	var candidates []bluetooth.ServiceInfo
	if m.cache != nil {
		candidates = m.cache.Candidates()
	}

	for _, info := range candidates {
		if !profile.Supported(info) {
			continue
		}
		if _, dup := f.offered[info.Address]; dup {
			continue
		}
		existing, err := m.findEntry(ctx, profile.Domain, info.Address)
		if err != nil {
			return nil, err
		}
		// Ignored devices stay on offer; confirming one replaces its entry.
		if existing != nil && !existing.IsIgnored() {
			continue
		}
		f.offered[info.Address] = info
		f.choices = append(f.choices, Choice{Address: info.Address, Title: profile.Title(info)})
	}

	if len(f.choices) == 0 {
		return m.finishEarly(f, ReasonNoDevicesFound), nil
	}

	f.stepID = StepUser
	m.mu.Lock()
	m.flows[f.id] = f
	m.mu.Unlock()

	m.logger.Info("user flow started",
		"flow_id", f.id, "handler", f.handler, "choices", len(f.choices))

	result := f.form()
	m.emit([]Event{{Type: EventStarted, Flow: f.snapshot(), Result: *result}})
	return result, nil
}

// finishEarly reports an abort for a flow that was never registered.
func (m *Manager) finishEarly(f *flow, reason string) *Result {
	m.logger.Debug("flow aborted",
		"flow_id", f.id, "handler", f.handler, "source", f.source, "address", f.uniqueID, "reason", reason)
	result := f.abort(reason)
	m.emit([]Event{{Type: EventFinished, Flow: f.snapshot(), Result: *result}})
	return result
}

// Configure submits the current step of an open flow.
//
// At bluetooth_confirm input may be empty. At user, input["address"] must
// be one of the offered choices; anything else re-shows the form with an
// invalid_address error and keeps the flow open.
func (m *Manager) Configure(ctx context.Context, flowID string, input map[string]any) (*Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return nil, err
	}

	var info bluetooth.ServiceInfo
	switch f.stepID {
	case StepBluetoothConfirm:
		info = *f.candidate
	case StepUser:
		address, _ := input[FieldAddress].(string)
		offered, ok := f.offered[address]
		if !ok {
			result := f.form()
			result.Errors = map[string]string{FieldAddress: ErrorInvalidAddress}
			m.emit([]Event{{Type: EventProgressed, Flow: f.snapshot(), Result: *result}})
			return result, nil
		}
		info = offered
	default:
		return nil, fmt.Errorf("%w: flow %s is at unknown step %q", ErrInvalidInput, flowID, f.stepID)
	}

	profile, err := m.profiles.Get(f.handler)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, f.handler)
	}

	return m.createEntry(ctx, f, profile, info, entry.StateActive, string(f.source))
}

// Ignore ends a discovery flow by recording an ignored entry for its
// device, which suppresses future discovery flows for it.
func (m *Manager) Ignore(ctx context.Context, flowID string) (*Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return nil, err
	}
	if f.candidate == nil {
		return nil, fmt.Errorf("%w: flow %s has no discovered device to ignore", ErrInvalidInput, flowID)
	}

	profile, err := m.profiles.Get(f.handler)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, f.handler)
	}

	return m.createEntry(ctx, f, profile, *f.candidate, entry.StateIgnored, entry.SourceIgnore)
}

// createEntry is the terminal step shared by Configure and Ignore.
func (m *Manager) createEntry(
	ctx context.Context,
	f *flow,
	profile *integration.Profile,
	info bluetooth.ServiceInfo,
	state entry.State,
	source string,
) (*Result, error) {
	address := info.Address
	unlock := m.addrLocks.Lock(addrKey(f.handler, address))

	// Claiming takes the flow out of the open set, so a concurrent
	// Configure, Ignore or Abort of the same flow fails with ErrUnknownFlow.
	// It also fails here when the flow was superseded while we waited.
	if !m.claim(f.id) {
		unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, f.id)
	}

	existing, err := m.findEntry(ctx, f.handler, address)
	if err != nil {
		m.release(f)
		unlock()
		return nil, err
	}

	bound := *f
	bound.uniqueID = address

	if existing != nil && (!existing.IsIgnored() || state == entry.StateIgnored) {
		unlock()
		m.logger.Info("flow aborted",
			"flow_id", f.id, "handler", f.handler, "address", address, "reason", ReasonAlreadyConfigured)
		result := bound.abort(ReasonAlreadyConfigured)
		m.emit([]Event{{Type: EventFinished, Flow: bound.snapshot(), Result: *result}})
		return result, nil
	}

	e := &entry.Entry{
		Domain:   f.handler,
		UniqueID: address,
		Title:    profile.Title(info),
		Data:     map[string]any{},
		Source:   source,
		State:    state,
	}
	if existing != nil {
		e.ID = existing.ID
		err = m.entries.ReplaceEntry(ctx, e)
	} else {
		err = m.entries.CreateEntry(ctx, e)
	}
	if err != nil {
		m.release(f)
		unlock()
		return nil, fmt.Errorf("storing entry for %s: %w", address, err)
	}

	events := m.supersede(f.handler, address)
	unlock()

	m.logger.Info("config entry created by flow",
		"flow_id", f.id, "handler", f.handler, "address", address, "state", state,
		"replaced_ignored", existing != nil, "superseded", len(events))

	result := &Result{
		Type:    ResultCreateEntry,
		FlowID:  f.id,
		Handler: f.handler,
		Source:  f.source,
		Title:   e.Title,
		Data:    map[string]any{},
		Entry:   e.DeepCopy(),
	}
	events = append([]Event{{Type: EventFinished, Flow: bound.snapshot(), Result: *result}}, events...)
	m.emit(events)
	return result, nil
}

// supersede aborts every open flow bound to (domain, address). The caller
// holds the address lock.
func (m *Manager) supersede(domain, address string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []Event
	for id, other := range m.flows {
		if other.handler == domain && other.uniqueID == address {
			delete(m.flows, id)
			events = append(events, Event{Type: EventFinished, Flow: other.snapshot(), Result: *other.abort(ReasonSuperseded)})
			m.logger.Info("flow superseded", "flow_id", id, "handler", domain, "address", address)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Flow.FlowID < events[j].Flow.FlowID })
	return events
}

// Abort closes an open flow on behalf of the host.
func (m *Manager) Abort(flowID string) (*Result, error) {
	m.mu.Lock()
	f, ok := m.flows[flowID]
	if ok {
		delete(m.flows, flowID)
	}
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}

	m.logger.Info("flow aborted", "flow_id", flowID, "handler", f.handler, "reason", ReasonUserAborted)
	result := f.abort(ReasonUserAborted)
	m.emit([]Event{{Type: EventFinished, Flow: f.snapshot(), Result: *result}})
	return result, nil
}

// Get re-renders the current step of an open flow.
func (m *Manager) Get(flowID string) (*Result, error) {
	f, err := m.lookup(flowID)
	if err != nil {
		return nil, err
	}
	return f.form(), nil
}

// Progress lists open flows for domain, oldest first. An empty domain
// lists every open flow.
func (m *Manager) Progress(domain string) []Snapshot {
	m.mu.Lock()
	out := make([]Snapshot, 0, len(m.flows))
	for _, f := range m.flows {
		if domain == "" || f.handler == domain {
			out = append(out, f.snapshot())
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].FlowID < out[j].FlowID
	})
	return out
}

// InProgress reports whether a discovery flow is open for the device.
func (m *Manager) InProgress(domain, address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.flows {
		if f.handler == domain && f.uniqueID == address {
			return true
		}
	}
	return false
}

func (m *Manager) lookup(flowID string) (*flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[flowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flowID)
	}
	return f, nil
}

// claim removes an open flow so exactly one caller may finish it.
func (m *Manager) claim(flowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[flowID]; !ok {
		return false
	}
	delete(m.flows, flowID)
	return true
}

// release reopens a claimed flow after a failed store.
func (m *Manager) release(f *flow) {
	m.mu.Lock()
	m.flows[f.id] = f
	m.mu.Unlock()
}

// findEntry returns nil, nil when the device has no entry.
func (m *Manager) findEntry(ctx context.Context, domain, address string) (*entry.Entry, error) {
	e, err := m.entries.FindEntry(ctx, domain, address)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up entry for %s: %w", address, err)
	}
	return e, nil
}
