package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an immutable entry in an auction's ledger. Only Settlement may touch
// ChargeID and PaymentFailed after creation.
type Bid struct {
	ID                 uuid.UUID
	AuctionID          uuid.UUID
	BidderID           uuid.UUID
	Amount             Money
	PaymentSourceToken string
	PlacedAt           time.Time
	ChargeID           *string
	PaymentFailed      bool
}

// NewBid creates a new Bid instance with a server-assigned timestamp.
func NewBid(id, auctionID, bidderID uuid.UUID, amount Money, paymentSourceToken string, placedAt time.Time) *Bid {
	return &Bid{
		ID:                 id,
		AuctionID:          auctionID,
		BidderID:           bidderID,
		Amount:             amount,
		PaymentSourceToken: paymentSourceToken,
		PlacedAt:           placedAt,
	}
}

// AttachCharge records the gateway charge exactly once per bid.
func (b *Bid) AttachCharge(chargeID string) error {
	if b.ChargeID != nil {
		return ErrChargeAlreadySet
	}
	b.ChargeID = &chargeID
	return nil
}

// MarkPaymentFailed flags the bid whose charge was declined.
func (b *Bid) MarkPaymentFailed() {
	b.PaymentFailed = true
}
