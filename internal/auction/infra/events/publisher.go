package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	sharedevents "github.com/charitybid/auctioncore/internal/shared/events"
	"github.com/nats-io/nats.go"
)

// FanoutPublisher implements domain.EventPublisher: every event goes to the
// NATS subject auction.events.<type> for external subscribers and to the
// websocket hub for live feed clients.
type FanoutPublisher struct {
	nc  *nats.Conn
	hub *sharedevents.Hub
}

func NewFanoutPublisher(nc *nats.Conn, hub *sharedevents.Hub) *FanoutPublisher {
	return &FanoutPublisher{nc: nc, hub: hub}
}

func (p *FanoutPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if p.hub != nil {
		p.hub.Broadcast(ev.AuctionID.String(), payload)
	}
	if p.nc != nil {
		subject := fmt.Sprintf("auction.events.%s", ev.Type)
		if err := p.nc.Publish(subject, payload); err != nil {
			return fmt.Errorf("publish event %s: %w", subject, err)
		}
	}
	return nil
}
