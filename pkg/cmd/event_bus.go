package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/Butcher-11/SuperAI/pkg/channels/gochannel"
	"github.com/Butcher-11/SuperAI/pkg/channels/kafka"
	"github.com/Butcher-11/SuperAI/pkg/eventbus"
)

// NewEventBus creates an event bus for the given provider. The kafka
// provider needs a comma-separated broker list; gochannel is in-process
// and suits single-binary deployments.
func NewEventBus(provider, kafkaBrokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafkaBrokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("create kafka channel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("create gochannel channel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
