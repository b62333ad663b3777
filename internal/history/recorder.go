package history

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/bleflow/internal/flow"
)

const defaultQueueSize = 256

// Logger defines the logging interface used by the Recorder.
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

// Recorder turns finished-flow events into history records. Listen is
// non-blocking; writes happen on the goroutine running Run.
type Recorder struct {
	repo   Repository
	queue  chan Record
	logger Logger
	now    func() time.Time

	dropMu  sync.Mutex
	dropped int
}

// NewRecorder creates a recorder with a bounded queue.
func NewRecorder(repo Repository, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		queue:  make(chan Record, queueSize),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// FromEvent builds the record for a finished flow. ok is false for events
// that do not end a flow.
func FromEvent(ev flow.Event, at time.Time) (Record, bool) {
	if ev.Type != flow.EventFinished {
		return Record{}, false
	}
	rec := Record{
		FlowID:    ev.Flow.FlowID,
		Domain:    ev.Flow.Handler,
		Source:    string(ev.Flow.Source),
		UniqueID:  ev.Flow.UniqueID,
		Reason:    ev.Result.Reason,
		Title:     ev.Result.Title,
		CreatedAt: at.UTC(),
	}
	switch ev.Result.Type {
	case flow.ResultCreateEntry:
		rec.Outcome = OutcomeCreateEntry
		if ev.Result.Entry != nil {
			rec.EntryID = ev.Result.Entry.ID
		}
	case flow.ResultAbort:
		rec.Outcome = OutcomeAbort
	default:
		return Record{}, false
	}
	return rec, true
}

// Listen is a flow.Listener.
func (r *Recorder) Listen(ev flow.Event) {
	rec, ok := FromEvent(ev, r.now())
	if !ok {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropMu.Lock()
		r.dropped++
		r.dropMu.Unlock()
		r.logger.Warn("flow history queue full, dropping record",
			"flow_id", rec.FlowID, "outcome", rec.Outcome)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.dropMu.Lock()
	defer r.dropMu.Unlock()
	return r.dropped
}

// Run writes queued records until ctx is cancelled, then drains what is
// already queued.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					r.write(context.WithoutCancel(ctx), rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) {
	if err := r.repo.Create(ctx, &rec); err != nil {
		r.logger.Error("recording flow outcome", "flow_id", rec.FlowID, "error", err)
		return
	}
	r.logger.Debug("flow outcome recorded",
		"flow_id", rec.FlowID, "domain", rec.Domain, "outcome", rec.Outcome, "reason", rec.Reason)
}
