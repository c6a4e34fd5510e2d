// Package publisher fronts an audit.Store with an optional bounded queue so
// request handlers never wait on the audit sink.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "consentd/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit when the async queue is saturated and the
// caller's context is still live.
var ErrBufferFull = errors.New("audit buffer full")

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit publisher closed")

// Lister is implemented by stores that can read back events for one widget.
type Lister interface {
	ListByWidget(ctx context.Context, widgetID string) ([]audit.Event, error)
}

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	queue  chan audit.Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous delivery through a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event and hands it to the store. In async mode it only
// enqueues; a full queue drops the event with ErrBufferFull.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBufferFull
}

// List reads back events for a widget when the underlying store supports it.
func (p *Publisher) List(ctx context.Context, widgetID string) ([]audit.Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, nil
	}
	return lister.ListByWidget(ctx, widgetID)
}

// Close stops accepting events and drains the queue.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.queue {
		// The request that produced the event may be long gone.
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Warn("audit append failed",
				"action", event.Action,
				"widget_id", event.WidgetID,
				"error", err,
			)
		}
	}
}
