package app

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/config"
)

// NewPublisher creates the domain event publisher. Without a broker URL
// events are published on an in-process channel.
func NewPublisher(cfg config.AMQPConfig, logger logrus.FieldLogger) (message.Publisher, error) {
	wmLogger := NewWatermillLogger(logger)

	if cfg.URL == "" {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}

	publisher, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(cfg.URL), wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create amqp publisher: %w", err)
	}

	return publisher, nil
}
