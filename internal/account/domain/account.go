package domain

import (
	"context"
	"errors"
	"time"

	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the slice of the platform account the bidding core needs:
// payment method for bidders, payout account for charities, contact for
// notifications, and the account-side half of the follow graph.
type Account struct {
	ID                 uuid.UUID
	DisplayName        string
	Email              string
	PaymentMethodToken *string
	PayoutAccount      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Account) HasPaymentMethod() bool {
	return a.PaymentMethodToken != nil && *a.PaymentMethodToken != ""
}

type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	AddFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID, at time.Time) error
	RemoveFollowing(ctx context.Context, tx db.Tx, accountID, auctionID uuid.UUID) error
	ListFollowing(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}
