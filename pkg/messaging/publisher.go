package messaging

import (
	"context"
	"time"
)

const (
	ProductsCreatedSubject = "catalog.products.created"
	ProductsUpdatedSubject = "catalog.products.updated"
	ProductsDeletedSubject = "catalog.products.deleted"
)

type Event interface {
	Subject() string
	// Key groups events of one entity, e.g. as the Kafka message key.
	Key() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}

type timeoutPublisher struct {
	next    Publisher
	timeout time.Duration
}

// WithTimeout bounds every Publish call of next. The deadline is detached from
// the caller's cancellation so an event is not lost when a client disconnects.
func WithTimeout(next Publisher, timeout time.Duration) Publisher {
	if timeout <= 0 {
		return next
	}
	return &timeoutPublisher{next: next, timeout: timeout}
}

func (p *timeoutPublisher) Publish(ctx context.Context, event Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.next.Publish(ctx, event)
}
