package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/strandworks/strand/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider.
// The in-process gochannel bus is the default; kafka fans events out
// across processes and reads brokers from KAFKA_BROKERS.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		bus, err := eventbus.NewKafka(watermill.NewSlogLogger(logger), "strand")
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka event bus: %w", err)
		}

		return bus, nil
	case "gochannel", "":
		return eventbus.NewGoChannel(), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
