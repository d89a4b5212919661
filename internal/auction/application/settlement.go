package application

import (
	"context"
	"fmt"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementUseCase performs the per-auction charge-or-close decision once an
// auction's end time has passed, and the buy-now shortcut while it is live.
type SettlementUseCase struct {
	auctions   domain.AuctionRepository
	accounts   accountdomain.AccountRepository
	txManager  db.TxManager
	gateway    domain.PaymentGateway
	clk        clock.Clock
	dispatcher domain.NotificationDispatcher
	events     domain.EventPublisher
}

func NewSettlementUseCase(
	auctions domain.AuctionRepository,
	accounts accountdomain.AccountRepository,
	txManager db.TxManager,
	gateway domain.PaymentGateway,
	clk clock.Clock,
	dispatcher domain.NotificationDispatcher,
	events domain.EventPublisher,
) *SettlementUseCase {
	return &SettlementUseCase{
		auctions:   auctions,
		accounts:   accounts,
		txManager:  txManager,
		gateway:    gateway,
		clk:        clk,
		dispatcher: dispatcher,
		events:     events,
	}
}

// chargeIdempotencyKey derives a stable key from (auctionID, bidID) so a
// retried charge for the same bid deduplicates gateway-side.
func chargeIdempotencyKey(auctionID, bidID uuid.UUID) string {
	return uuid.NewSHA1(auctionID, bidID[:]).String()
}

// Settle closes one ended auction: charge the winning bid if any, assign the
// terminal state, persist strictly after the gateway call resolves. A second
// call on an already-settled auction is rejected by the state machine and
// charges nothing.
func (uc *SettlementUseCase) Settle(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := uc.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("settle: load auction %s: %w", auctionID, err)
	}
	if !auction.HasBeneficiary() {
		return domain.ErrMissingBeneficiary
	}
	if auction.Status != domain.StatusActive {
		return &domain.ConflictError{From: auction.Status, Event: domain.EventSettle}
	}

	winning := auction.LastBid()
	if winning == nil {
		// no bids: close quietly, the gateway is never called
		if err := auction.MarkSettled(); err != nil {
			return err
		}
		if err := uc.persist(ctx, auction, nil, "", false); err != nil {
			return err
		}
		log.Info("Settle: auction closed with no bids",
			zap.String("auctionID", auction.ID.String()),
		)
		uc.publish(ctx, domain.EventTypeAuctionSettled, auction, nil)
		return nil
	}

	charity, err := uc.accounts.GetByID(ctx, *auction.CharityID)
	if err != nil {
		return fmt.Errorf("settle: load beneficiary for auction %s: %w", auctionID, err)
	}
	payout := ""
	if charity.PayoutAccount != nil {
		payout = *charity.PayoutAccount
	}

	req := domain.ChargeRequest{
		PayerID:            winning.BidderID,
		PaymentSourceToken: winning.PaymentSourceToken,
		Amount:             winning.Amount,
		Memo:               fmt.Sprintf("Winning bid for charity auction %s", auction.ID),
		PayoutAccount:      payout,
		BeneficiaryID:      charity.ID,
		IdempotencyKey:     chargeIdempotencyKey(auction.ID, winning.ID),
	}

	chargeID, chargeErr := uc.gateway.Charge(ctx, req)
	if chargeErr != nil {
		log.Error("Settle: charge failed",
			zap.String("auctionID", auction.ID.String()),
			zap.String("bidderID", winning.BidderID.String()),
			zap.Int64("amount", winning.Amount.Amount),
			zap.Error(chargeErr),
		)
		winning.MarkPaymentFailed()
		if err := auction.MarkFailed(); err != nil {
			return err
		}
		if err := uc.persist(ctx, auction, winning, "", true); err != nil {
			return err
		}
		uc.publish(ctx, domain.EventTypeAuctionFailed, auction, winning)
		return &domain.PaymentError{
			AuctionID: auction.ID,
			BidderID:  winning.BidderID,
			Amount:    winning.Amount,
			Err:       chargeErr,
		}
	}

	if err := winning.AttachCharge(chargeID); err != nil {
		return err
	}
	if err := auction.MarkSettled(); err != nil {
		return err
	}
	if err := uc.persist(ctx, auction, winning, chargeID, false); err != nil {
		return err
	}

	log.Info("Settle: auction settled",
		zap.String("auctionID", auction.ID.String()),
		zap.String("bidderID", winning.BidderID.String()),
		zap.String("chargeID", chargeID),
		zap.Int64("amount", winning.Amount.Amount),
	)

	uc.notifyWinner(ctx, auction, winning)
	uc.publish(ctx, domain.EventTypeAuctionSettled, auction, winning)
	return nil
}

// BuyNow charges the buy-now price immediately and closes the auction as
// SOLD. A declined charge leaves the auction active.
func (uc *SettlementUseCase) BuyNow(ctx context.Context, auctionID, buyerID uuid.UUID) error {
	auction, err := uc.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("buy now: load auction %s: %w", auctionID, err)
	}
	if !auction.HasBeneficiary() {
		return domain.ErrMissingBeneficiary
	}
	if auction.Status != domain.StatusActive {
		return &domain.ConflictError{From: auction.Status, Event: domain.EventSell}
	}

	price, err := auction.BuyNowAmount()
	if err != nil {
		return err
	}

	buyer, err := uc.accounts.GetByID(ctx, buyerID)
	if err != nil {
		return fmt.Errorf("buy now: load buyer %s: %w", buyerID, err)
	}
	if !buyer.HasPaymentMethod() {
		return domain.ErrPaymentMethodMissing
	}
	charity, err := uc.accounts.GetByID(ctx, *auction.CharityID)
	if err != nil {
		return fmt.Errorf("buy now: load beneficiary: %w", err)
	}
	payout := ""
	if charity.PayoutAccount != nil {
		payout = *charity.PayoutAccount
	}

	observed := auction.CurrentPrice
	bid := domain.NewBid(uuid.New(), auction.ID, buyerID, price, *buyer.PaymentMethodToken, uc.clk.Now())

	chargeID, chargeErr := uc.gateway.Charge(ctx, domain.ChargeRequest{
		PayerID:            buyerID,
		PaymentSourceToken: bid.PaymentSourceToken,
		Amount:             price,
		Memo:               fmt.Sprintf("Buy-now purchase for charity auction %s", auction.ID),
		PayoutAccount:      payout,
		BeneficiaryID:      charity.ID,
		IdempotencyKey:     chargeIdempotencyKey(auction.ID, bid.ID),
	})
	if chargeErr != nil {
		log.Error("BuyNow: charge failed",
			zap.String("auctionID", auction.ID.String()),
			zap.String("buyerID", buyerID.String()),
			zap.Int64("amount", price.Amount),
			zap.Error(chargeErr),
		)
		return &domain.PaymentError{AuctionID: auction.ID, BidderID: buyerID, Amount: price, Err: chargeErr}
	}

	if err := bid.AttachCharge(chargeID); err != nil {
		return err
	}
	auction.Bids = append(auction.Bids, bid)
	if err := auction.MarkSold(); err != nil {
		return err
	}

	auction.CurrentPrice = price
	err = uc.withTx(ctx, func(tx db.Tx) error {
		// the conditional write guards against a bid that slipped in between
		// the read and the charge
		if err := uc.auctions.UpdateCurrentPrice(ctx, tx, auction.ID, observed, price); err != nil {
			return err
		}
		if err := uc.auctions.SaveBid(ctx, tx, bid); err != nil {
			return err
		}
		return uc.auctions.Save(ctx, tx, auction)
	})
	if err != nil {
		return fmt.Errorf("buy now: persist auction %s: %w", auction.ID, err)
	}

	log.Info("BuyNow: auction sold",
		zap.String("auctionID", auction.ID.String()),
		zap.String("buyerID", buyerID.String()),
		zap.String("chargeID", chargeID),
	)

	uc.notifyWinner(ctx, auction, bid)
	uc.publish(ctx, domain.EventTypeAuctionSold, auction, bid)
	return nil
}

// persist writes the terminal status plus any bid charge bookkeeping in one
// transaction.
func (uc *SettlementUseCase) persist(ctx context.Context, auction *domain.Auction, bid *domain.Bid, chargeID string, paymentFailed bool) error {
	return uc.withTx(ctx, func(tx db.Tx) error {
		if bid != nil {
			if paymentFailed {
				if err := uc.auctions.MarkBidPaymentFailed(ctx, tx, bid.ID); err != nil {
					return err
				}
			} else if chargeID != "" {
				if err := uc.auctions.SetBidCharge(ctx, tx, bid.ID, chargeID); err != nil {
					return err
				}
			}
		}
		return uc.auctions.Save(ctx, tx, auction)
	})
}

func (uc *SettlementUseCase) withTx(ctx context.Context, fn func(tx db.Tx) error) (err error) {
	tx, err := uc.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()
	return fn(tx)
}

func (uc *SettlementUseCase) notifyWinner(ctx context.Context, auction *domain.Auction, bid *domain.Bid) {
	winner, err := uc.accounts.GetByID(ctx, bid.BidderID)
	if err != nil {
		log.Warn("Settle: could not resolve winner account",
			zap.String("auctionID", auction.ID.String()),
			zap.String("bidderID", bid.BidderID.String()),
			zap.Error(err),
		)
		return
	}
	n := domain.Notification{
		Recipient: winner.Email,
		Template:  "auction_won",
		Context: map[string]string{
			"auction_id": auction.ID.String(),
			"amount":     bid.Amount.String(),
		},
	}
	if err := uc.dispatcher.SendLater(ctx, n); err != nil {
		log.Warn("Settle: winner notification failed",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
	}
}

func (uc *SettlementUseCase) publish(ctx context.Context, t domain.EventType, auction *domain.Auction, bid *domain.Bid) {
	ev := domain.Event{
		Type:       t,
		AuctionID:  auction.ID,
		OccurredAt: uc.clk.Now(),
		TotalBids:  auction.TotalBids(),
	}
	price := auction.CurrentPrice
	ev.CurrentPrice = &price
	if bid != nil {
		bidID := bid.ID
		bidderID := bid.BidderID
		ev.BidID = &bidID
		ev.BidderID = &bidderID
	}
	if err := uc.events.Publish(ctx, ev); err != nil {
		log.Warn("Settle: event publish failed",
			zap.String("auctionID", auction.ID.String()),
			zap.String("event", string(t)),
			zap.Error(err),
		)
	}
}
