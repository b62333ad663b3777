package flow

// EventType describes a flow lifecycle change.
type EventType string

const (
	EventStarted    EventType = "started"
	EventProgressed EventType = "progressed"
	EventFinished   EventType = "finished"
)

// Event is delivered to listeners after a flow changes. Result is the
// result the change produced; for EventFinished it is terminal.
type Event struct {
	Type   EventType
	Flow   Snapshot
	Result Result
}

// Listener receives flow events. Listeners run synchronously on the
// caller's goroutine after all locks are released.
type Listener func(Event)

// Subscribe registers a listener.
func (m *Manager) Subscribe(l Listener) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenersMu.Unlock()
}

func (m *Manager) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	m.listenersMu.RLock()
	listeners := m.listeners
	m.listenersMu.RUnlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}
