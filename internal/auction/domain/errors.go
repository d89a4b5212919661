package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrAuctionNotActive     = errors.New("auction is not active")
	ErrAuctionEnded         = errors.New("auction has already ended")
	ErrBidTooLow            = errors.New("bid amount must be greater than the current price")
	ErrInvalidAmount        = errors.New("bid amount cannot be zero or less than zero")
	ErrCurrencyMismatch     = errors.New("currency mismatch")
	ErrMissingBeneficiary   = errors.New("auction has no beneficiary charity")
	ErrPaymentMethodMissing = errors.New("bidder has no registered payment method")
	ErrAlreadyFollowing     = errors.New("account already follows this auction")
	ErrPriceConflict        = errors.New("current price changed concurrently")
	ErrBuyNowUnavailable    = errors.New("buy-now is not available for this auction")
	ErrPricingLocked        = errors.New("pricing fields cannot be edited in this state")
	ErrChargeAlreadySet     = errors.New("bid already carries a charge id")
	ErrUnknownStatus        = errors.New("unknown auction status")
	ErrStatusNotAssignable  = errors.New("status can only be reached through settlement")

	// ErrPaymentDeclined is returned by PaymentGateway implementations when the
	// charge is refused.
	ErrPaymentDeclined = errors.New("payment declined")
)

// ConflictError reports a lifecycle transition that is not permitted from the
// auction's current state.
type ConflictError struct {
	From  Status
	Event StatusEvent
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s auction in state %q", e.Event, e.From)
}

// PaymentError wraps a gateway failure with the context needed for operator
// follow-up.
type PaymentError struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    Money
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment for auction %s by bidder %s (%s) failed: %v",
		e.AuctionID, e.BidderID, e.Amount, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }
