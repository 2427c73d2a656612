// Package audit records connect attempts to the configured event sinks without blocking requests.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/logx"
	"player-ticket-gateway/internal/mqx"
)

var auditLogger = logx.GetScope("audit")

// Event kinds.
const (
	EventConnected = mqx.RoutingPlayerConnected
	EventRejected  = mqx.RoutingAuthRejected
)

// Event describes one connect attempt. Secrets and tokens are never part of it.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	GameID     string    `json:"gameId"`
	AreaID     string    `json:"areaId"`
	UID        string    `json:"uid"`
	AuthMethod string    `json:"authMethod,omitempty"`
	Code       string    `json:"code,omitempty"`
	TicketID   string    `json:"ticketId,omitempty"`
	RemoteIP   string    `json:"remoteIp,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives events.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Write(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MQSink publishes events under their type as routing key.
func MQSink(p mqx.Publisher) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) error {
		return mqx.PublishJSON(ctx, p, ev.Type, ev)
	})
}

// ESSink indexes events as connect documents.
func ESSink(es *esx.Client, index string) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) error {
		return esx.IndexConnect(ctx, es, index, esx.ConnectDoc{
			ID:         ev.ID,
			Event:      ev.Type,
			GameID:     ev.GameID,
			AreaID:     ev.AreaID,
			UID:        ev.UID,
			AuthMethod: ev.AuthMethod,
			Code:       ev.Code,
			TicketID:   ev.TicketID,
			RemoteIP:   ev.RemoteIP,
			RequestID:  ev.RequestID,
			At:         ev.At.UTC().Format(time.RFC3339Nano),
		})
	})
}

// Recorder queues events and delivers them to every sink from a single worker.
type Recorder struct {
	sinks     []Sink
	queue     chan Event
	onDropped func()
	timeout   time.Duration

	once sync.Once
	done chan struct{}
}

// NewRecorder returns a recorder with a queue of size capacity. onDropped may be nil.
func NewRecorder(capacity int, onDropped func(), sinks ...Sink) *Recorder {
	return &Recorder{
		sinks:     sinks,
		queue:     make(chan Event, capacity),
		onDropped: onDropped,
		timeout:   2 * time.Second,
		done:      make(chan struct{}),
	}
}

// Enabled reports whether any sink is attached.
func (r *Recorder) Enabled() bool { return r != nil && len(r.sinks) > 0 }

// Record enqueues ev, dropping it when the queue is full.
func (r *Recorder) Record(ev Event) {
	if !r.Enabled() {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case r.queue <- ev:
	default:
		if r.onDropped != nil {
			r.onDropped()
		}
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })
	for {
		select {
		case ev := <-r.queue:
			r.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run has returned.
func (r *Recorder) Done() <-chan struct{} { return r.done }

func (r *Recorder) deliver(ev Event) {
	for _, s := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := s.Write(ctx, ev); err != nil {
			auditLogger.Warn("audit sink failed", zap.String("type", ev.Type), zap.Error(err))
		}
		cancel()
	}
}
