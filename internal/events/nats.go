package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
)

const subjectPrefix = "payway."

type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("payway-gateway"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, event models.PaymentEvent) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(natsSubject(event), data); err != nil {
		return fmt.Errorf("publish %s to nats: %w", event.Type, err)
	}
	return nil
}

// Close flushes buffered messages before closing the connection.
func (p *NATSPublisher) Close() error {
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}

// natsSubject maps payment.created to payway.payment.created.
func natsSubject(event models.PaymentEvent) string {
	return subjectPrefix + event.Type
}
