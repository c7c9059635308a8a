package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const (
	DriverKafka = "kafka"
	DriverNATS  = "nats"
	DriverNone  = "none"
)

// NewPublisher returns the publisher for driver. An empty driver means none.
func NewPublisher(driver, kafkaBrokers, natsURL string) (interfaces.EventPublisher, error) {
	switch strings.ToLower(driver) {
	case DriverKafka:
		return NewKafkaPublisher(strings.Split(kafkaBrokers, ",")), nil
	case DriverNATS:
		return NewNATSPublisher(natsURL)
	case DriverNone, "":
		return NoopPublisher{}, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", driver)
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, event models.PaymentEvent) error {
	telemetry.Logger.Debug("Event publishing disabled",
		zap.String("type", event.Type),
		zap.String("tran_id", event.TranID),
	)
	return nil
}

func (NoopPublisher) Close() error { return nil }

func encode(event models.PaymentEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return data, nil
}
