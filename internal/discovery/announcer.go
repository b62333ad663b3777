package discovery

import (
	"github.com/nerrad567/bleflow/internal/flow"
	"github.com/nerrad567/bleflow/internal/infrastructure/influxdb"
	"github.com/nerrad567/bleflow/internal/infrastructure/mqtt"
)

// JSONPublisher publishes a JSON document to a topic.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// FlowResultWriter records finished flows as time series.
type FlowResultWriter interface {
	WriteFlowResult(r influxdb.FlowResult)
}

// Announcer reports finished flows. Either sink may be nil.
type Announcer struct {
	publisher JSONPublisher
	metrics   FlowResultWriter
	logger    Logger
}

// NewAnnouncer creates an announcer.
func NewAnnouncer(publisher JSONPublisher, metrics FlowResultWriter) *Announcer {
	return &Announcer{publisher: publisher, metrics: metrics, logger: noopLogger{}}
}

// SetLogger sets the logger for the announcer.
func (a *Announcer) SetLogger(logger Logger) {
	a.logger = logger
}

// Listen is a flow.Listener.
func (a *Announcer) Listen(ev flow.Event) {
	if ev.Type != flow.EventFinished {
		return
	}

	if a.publisher != nil {
		topic := mqtt.Topics{}.FlowResult(ev.Flow.Handler, ev.Flow.FlowID)
		if err := a.publisher.PublishJSON(topic, ev.Result, false); err != nil {
			a.logger.Warn("publishing flow result", "flow_id", ev.Flow.FlowID, "error", err)
		}
	}

	if a.metrics != nil {
		a.metrics.WriteFlowResult(influxdb.FlowResult{
			Domain:  ev.Flow.Handler,
			Source:  string(ev.Flow.Source),
			Outcome: string(ev.Result.Type),
			Reason:  ev.Result.Reason,
		})
	}
}
