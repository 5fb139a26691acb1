// Package eventbus provides the pub/sub plumbing workflow streaming
// rides on.
package eventbus

import (
	"context"

	"github.com/strandworks/strand/pkg/events"
)

type Event interface {
	GetType() events.EventType
	GetThreadID() string
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
