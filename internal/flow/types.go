package flow

import (
	"time"

	"github.com/nerrad567/bleflow/internal/bluetooth"
	"github.com/nerrad567/bleflow/internal/entry"
)

// Source is how a flow was started.
type Source string

const (
	SourceBluetooth Source = "bluetooth"
	SourceUser      Source = "user"
)

// Valid reports whether s is a supported source.
func (s Source) Valid() bool {
	return s == SourceBluetooth || s == SourceUser
}

// ResultType is the kind of a step result.
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultAbort       ResultType = "abort"
	ResultCreateEntry ResultType = "create_entry"
)

// Step IDs.
const (
	StepBluetoothConfirm = "bluetooth_confirm"
	StepUser             = "user"
)

// Abort reasons.
const (
	ReasonNotSupported      = "not_supported"
	ReasonAlreadyConfigured = "already_configured"
	ReasonAlreadyInProgress = "already_in_progress"
	ReasonNoDevicesFound    = "no_devices_found"
	ReasonSuperseded        = "superseded"
	ReasonUserAborted       = "user_aborted"
)

// Form error codes, keyed by field.
const (
	FieldAddress          = "address"
	ErrorInvalidAddress   = "invalid_address"
	PlaceholderDeviceName = "name"
)

// Choice is one device offered by the user step.
type Choice struct {
	Address string `json:"address"`
	Title   string `json:"title"`
}

// Result is what every flow operation returns.
type Result struct {
	Type    ResultType `json:"type"`
	FlowID  string     `json:"flow_id"`
	Handler string     `json:"handler"`
	Source  Source     `json:"source"`

	// Form
	StepID                  string            `json:"step_id,omitempty"`
	Choices                 []Choice          `json:"choices,omitempty"`
	Errors                  map[string]string `json:"errors,omitempty"`
	DescriptionPlaceholders map[string]string `json:"description_placeholders,omitempty"`

	// Abort
	Reason string `json:"reason,omitempty"`

	// Create entry
	Title string         `json:"title,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
	Entry *entry.Entry   `json:"result,omitempty"`
}

// Snapshot describes an open flow.
type Snapshot struct {
	FlowID    string    `json:"flow_id"`
	Handler   string    `json:"handler"`
	Source    Source    `json:"source"`
	StepID    string    `json:"step_id"`
	UniqueID  string    `json:"unique_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// flow is an open flow. Fields other than choices are fixed once
// registered; choices is replaced, never mutated.
type flow struct {
	id        string
	handler   string
	source    Source
	stepID    string
	uniqueID  string // bound address, empty until known
	candidate *bluetooth.ServiceInfo
	title     string
	choices   []Choice
	offered   map[string]bluetooth.ServiceInfo
	startedAt time.Time
}

func (f *flow) snapshot() Snapshot {
	return Snapshot{
		FlowID:    f.id,
		Handler:   f.handler,
		Source:    f.source,
		StepID:    f.stepID,
		UniqueID:  f.uniqueID,
		StartedAt: f.startedAt,
	}
}

// form renders the flow's current step.
func (f *flow) form() *Result {
	r := &Result{
		Type:    ResultForm,
		FlowID:  f.id,
		Handler: f.handler,
		Source:  f.source,
		StepID:  f.stepID,
	}
	switch f.stepID {
	case StepBluetoothConfirm:
		r.DescriptionPlaceholders = map[string]string{PlaceholderDeviceName: f.title}
	case StepUser:
		r.Choices = append([]Choice(nil), f.choices...)
	}
	return r
}

func (f *flow) abort(reason string) *Result {
	return &Result{
		Type:    ResultAbort,
		FlowID:  f.id,
		Handler: f.handler,
		Source:  f.source,
		Reason:  reason,
	}
}
