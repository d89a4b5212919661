package domain

import (
	"context"
	"time"

	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
)

// AuctionRepository is the persistence boundary for the Auction aggregate.
// Every mutation path (bid, status change, settlement, follow) goes through
// it so invariants are enforced centrally. Write methods take the transaction
// handle; reads outside a transaction use the pool.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetByIDForUpdate loads the aggregate inside the given transaction so
	// the price check and the subsequent write see the same row version.
	GetByIDForUpdate(ctx context.Context, tx db.Tx, id uuid.UUID) (*Auction, error)
	Save(ctx context.Context, tx db.Tx, a *Auction) error
	SaveBid(ctx context.Context, tx db.Tx, bid *Bid) error
	// UpdateCurrentPrice performs the conditional price write: it only
	// succeeds when the stored current price still equals observed, and
	// reports ErrPriceConflict otherwise.
	UpdateCurrentPrice(ctx context.Context, tx db.Tx, auctionID uuid.UUID, observed, next Money) error
	SetBidCharge(ctx context.Context, tx db.Tx, bidID uuid.UUID, chargeID string) error
	MarkBidPaymentFailed(ctx context.Context, tx db.Tx, bidID uuid.UUID) error

	GetActiveEndedBefore(ctx context.Context, cutoff time.Time) ([]*Auction, error)
	// GetActiveEndingWithin returns active auctions whose end time falls
	// inside (now, now+window] and that have not been notified of closure yet.
	GetActiveEndingWithin(ctx context.Context, now time.Time, window time.Duration) ([]*Auction, error)
	SetClosureNotified(ctx context.Context, auctionID uuid.UUID) error

	AddFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID, at time.Time) error
	RemoveFollower(ctx context.Context, tx db.Tx, auctionID, accountID uuid.UUID) error
}

// ChargeRequest carries everything the payment gateway needs for one charge.
// IdempotencyKey is derived from (auctionID, bidID) so a retried charge for
// the same bid deduplicates gateway-side.
type ChargeRequest struct {
	PayerID            uuid.UUID
	PaymentSourceToken string
	Amount             Money
	Memo               string
	PayoutAccount      string
	BeneficiaryID      uuid.UUID
	IdempotencyKey     string
}

// PaymentGateway is the external charging collaborator. Implementations
// return ErrPaymentDeclined (possibly wrapped) when the charge is refused.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (chargeID string, err error)
}

// Notification is one best-effort message to a recipient contact.
type Notification struct {
	Recipient string
	Template  string
	Context   map[string]string
}

// NotificationDispatcher enqueues notifications fire-and-forget: failures are
// logged by the caller, never propagated and never retried synchronously.
type NotificationDispatcher interface {
	SendLater(ctx context.Context, n Notification) error
}
