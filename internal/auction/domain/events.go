package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event emitted by the engine.
type EventType string

const (
	EventTypeBidPlaced      EventType = "bid_placed"
	EventTypeAuctionSettled EventType = "auction_settled"
	EventTypeAuctionFailed  EventType = "auction_failed"
	EventTypeAuctionSold    EventType = "auction_sold"
	EventTypeEndingSoon     EventType = "ending_soon"
)

// Event is a typed domain event. Bid submission and settlement emit these;
// dispatchers outside the core (NATS, websocket feed) subscribe and forward.
type Event struct {
	Type       EventType `json:"type"`
	AuctionID  uuid.UUID `json:"auction_id"`
	OccurredAt time.Time `json:"occurred_at"`
	// optional context, present depending on Type
	BidID        *uuid.UUID `json:"bid_id,omitempty"`
	BidderID     *uuid.UUID `json:"bidder_id,omitempty"`
	CurrentPrice *Money     `json:"current_price,omitempty"`
	TotalBids    int        `json:"total_bids,omitempty"`
}

// EventPublisher forwards domain events to interested parties. Publishing is
// best-effort; callers log failures and never propagate them.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
