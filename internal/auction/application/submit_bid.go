package application

import (
	"context"
	"errors"
	"fmt"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/charitybid/auctioncore/internal/shared/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// maxPriceRetries bounds how often a bid transaction is replayed after losing
// the conditional current-price write to a concurrent bidder.
const maxPriceRetries = 3

// SubmitBidInput carries the data needed to place one bid.
type SubmitBidInput struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    domain.Money
	// PaymentSourceToken overrides the bidder's registered payment method
	// when set; empty means charge the registered method.
	PaymentSourceToken string
}

// BidReceipt is returned for immediate UI feedback after a bid is accepted.
type BidReceipt struct {
	Bid          *domain.Bid
	CurrentPrice domain.Money
	TotalBids    int
}

// SubmitBidUseCase orchestrates one bid: validation, transactional append,
// conditional price update and the best-effort outbid notification.
type SubmitBidUseCase struct {
	auctions   domain.AuctionRepository
	accounts   accountdomain.AccountRepository
	txManager  db.TxManager
	clk        clock.Clock
	dispatcher domain.NotificationDispatcher
	events     domain.EventPublisher
}

func NewSubmitBidUseCase(
	auctions domain.AuctionRepository,
	accounts accountdomain.AccountRepository,
	txManager db.TxManager,
	clk clock.Clock,
	dispatcher domain.NotificationDispatcher,
	events domain.EventPublisher,
) *SubmitBidUseCase {
	return &SubmitBidUseCase{
		auctions:   auctions,
		accounts:   accounts,
		txManager:  txManager,
		clk:        clk,
		dispatcher: dispatcher,
		events:     events,
	}
}

func (uc *SubmitBidUseCase) Execute(ctx context.Context, input SubmitBidInput) (*BidReceipt, error) {
	if input.Amount.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	bidder, err := uc.accounts.GetByID(ctx, input.BidderID)
	if err != nil {
		return nil, fmt.Errorf("submit bid: load bidder %s: %w", input.BidderID, err)
	}
	if !bidder.HasPaymentMethod() {
		return nil, domain.ErrPaymentMethodMissing
	}
	token := input.PaymentSourceToken
	if token == "" {
		token = *bidder.PaymentMethodToken
	}

	// Replay the whole transaction when the conditional price write loses to
	// a concurrent bidder; the re-read sees the new price and re-validates.
	var receipt *BidReceipt
	var outbid *uuid.UUID
	for attempt := 0; ; attempt++ {
		receipt, outbid, err = uc.submitOnce(ctx, input, token)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrPriceConflict) && attempt < maxPriceRetries {
			log.Warn("SubmitBid: price conflict, retrying",
				zap.String("auctionID", input.AuctionID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return nil, err
	}

	uc.notifyOutbid(ctx, input.AuctionID, outbid, input.BidderID)

	ev := domain.Event{
		Type:         domain.EventTypeBidPlaced,
		AuctionID:    input.AuctionID,
		OccurredAt:   receipt.Bid.PlacedAt,
		BidID:        &receipt.Bid.ID,
		BidderID:     &receipt.Bid.BidderID,
		CurrentPrice: &receipt.CurrentPrice,
		TotalBids:    receipt.TotalBids,
	}
	if pubErr := uc.events.Publish(ctx, ev); pubErr != nil {
		log.Warn("SubmitBid: event publish failed",
			zap.String("auctionID", input.AuctionID.String()),
			zap.Error(pubErr),
		)
	}

	return receipt, nil
}

// submitOnce runs one transactional attempt. It returns the receipt and the
// previous leading bidder (nil when the ledger was empty or the leader bid
// against themselves).
func (uc *SubmitBidUseCase) submitOnce(ctx context.Context, input SubmitBidInput, token string) (receipt *BidReceipt, outbid *uuid.UUID, err error) {
	tx, err := uc.txManager.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("submit bid: begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("SubmitBid: recovered from panic during transaction",
				zap.String("auctionID", input.AuctionID.String()),
				zap.Any("panic", r),
			)
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error("SubmitBid: failed to commit transaction",
				zap.String("auctionID", input.AuctionID.String()),
				zap.Error(commitErr),
			)
			err = fmt.Errorf("submit bid: commit: %w", commitErr)
			receipt, outbid = nil, nil
		}
	}()

	auction, err := uc.auctions.GetByIDForUpdate(ctx, tx, input.AuctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("submit bid: load auction %s: %w", input.AuctionID, err)
	}
	if !auction.HasBeneficiary() {
		return nil, nil, domain.ErrMissingBeneficiary
	}

	observed := auction.CurrentPrice
	previousLeader := auction.LeadingBidder()

	bid, err := auction.AppendBid(input.BidderID, input.Amount, token, uc.clk.Now())
	if err != nil {
		return nil, nil, err
	}

	// claim the price first: the conditional write detects a concurrent
	// bidder before the ledger insert happens
	if err = uc.auctions.UpdateCurrentPrice(ctx, tx, auction.ID, observed, bid.Amount); err != nil {
		return nil, nil, err
	}
	if err = uc.auctions.SaveBid(ctx, tx, bid); err != nil {
		return nil, nil, fmt.Errorf("submit bid: save bid: %w", err)
	}

	if previousLeader != nil && *previousLeader != input.BidderID {
		outbid = previousLeader
	}
	return &BidReceipt{
		Bid:          bid,
		CurrentPrice: auction.CurrentPrice,
		TotalBids:    auction.TotalBids(),
	}, outbid, nil
}

// notifyOutbid sends the fire-and-forget "you have been outbid" message.
// Failures are logged and never surfaced to the bidder.
func (uc *SubmitBidUseCase) notifyOutbid(ctx context.Context, auctionID uuid.UUID, outbid *uuid.UUID, newBidder uuid.UUID) {
	if outbid == nil {
		return
	}
	previous, err := uc.accounts.GetByID(ctx, *outbid)
	if err != nil {
		log.Warn("SubmitBid: could not resolve outbid account",
			zap.String("auctionID", auctionID.String()),
			zap.String("accountID", outbid.String()),
			zap.Error(err),
		)
		return
	}
	n := domain.Notification{
		Recipient: previous.Email,
		Template:  "outbid",
		Context: map[string]string{
			"auction_id": auctionID.String(),
			"new_bidder": newBidder.String(),
		},
	}
	if err := uc.dispatcher.SendLater(ctx, n); err != nil {
		log.Warn("SubmitBid: outbid notification failed",
			zap.String("auctionID", auctionID.String()),
			zap.String("accountID", outbid.String()),
			zap.Error(err),
		)
	}
}
