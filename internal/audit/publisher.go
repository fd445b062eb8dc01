package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBufferFull is returned by Emit when the async buffer has no room.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Publisher hands events to a Sink, either inline or through a bounded
// buffer drained by Run.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
	inbox  chan Event

	mu      sync.RWMutex
	closed  bool
	running atomic.Bool
	done    chan struct{}
	dropped atomic.Int64
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records event, stamping Timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.inbox == nil {
		return p.sink.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", event.Action,
			"contact_id", event.ContactID,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

// Run drains the buffer into the sink until Close is called and every
// buffered event is handled. Sink calls outlive ctx cancellation so a
// shutdown still flushes.
func (p *Publisher) Run(ctx context.Context) error {
	if p.inbox == nil || !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer close(p.done)

	sinkCtx := context.WithoutCancel(ctx)
	for event := range p.inbox {
		p.append(sinkCtx, event)
	}
	return nil
}

// Close stops accepting events and waits for buffered ones to reach the sink.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.inbox != nil {
		close(p.inbox)
	}
	p.mu.Unlock()

	if p.inbox == nil {
		return
	}
	if p.running.CompareAndSwap(false, true) {
		for event := range p.inbox {
			p.append(context.Background(), event)
		}
		close(p.done)
		return
	}
	<-p.done
}

// Dropped counts events rejected because the buffer was full.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) append(ctx context.Context, event Event) {
	if err := p.sink.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to append audit event",
			"action", event.Action,
			"contact_id", event.ContactID,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
