package entry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a config entry.
type State string

const (
	StateActive  State = "active"
	StateIgnored State = "ignored"
)

// Source values record how an entry came to exist.
const (
	SourceBluetooth = "bluetooth"
	SourceUser      = "user"
	SourceIgnore    = "ignore"
)

// Entry is a configured (or ignored) device.
type Entry struct {
	ID        string         `json:"entry_id"`
	Domain    string         `json:"domain"`
	UniqueID  string         `json:"unique_id"`
	Title     string         `json:"title"`
	Data      map[string]any `json:"data"`
	Source    string         `json:"source"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsIgnored reports whether the entry only suppresses discovery.
func (e *Entry) IsIgnored() bool {
	return e.State == StateIgnored
}

// DeepCopy returns a copy that shares no maps with e.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Data = deepCopyMap(e.Data)
	return &cpy
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// GenerateID returns a new entry ID.
func GenerateID() string {
	return uuid.New().String()
}

// Validate checks the fields every stored entry must carry.
func Validate(e *Entry) error {
	switch {
	case e.Domain == "":
		return fmt.Errorf("%w: domain is required", ErrInvalidEntry)
	case e.UniqueID == "":
		return fmt.Errorf("%w: unique_id is required", ErrInvalidEntry)
	case e.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	case e.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidEntry)
	}
	switch e.State {
	case StateActive, StateIgnored:
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidEntry, e.State)
	}
	return nil
}

func key(domain, uniqueID string) string {
	return domain + "\x00" + uniqueID
}
