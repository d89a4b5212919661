package application

import (
	"context"
	"fmt"
	"time"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/charitybid/auctioncore/internal/shared/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PricingUpdate carries optional edits to price-affecting fields; nil fields
// are left untouched.
type PricingUpdate struct {
	StartPrice      *domain.Money
	FairMarketValue *domain.Money
	ItemPrice       *domain.Money
	StartTime       *time.Time
	EndTime         *time.Time
}

// StatusUpdateUseCase is the admin/organizer path through the lifecycle state
// machine: activate and stop. Terminal states are only assigned by
// settlement, never directly.
type StatusUpdateUseCase struct {
	auctions  domain.AuctionRepository
	txManager db.TxManager
	clk       clock.Clock
}

func NewStatusUpdateUseCase(auctions domain.AuctionRepository, txManager db.TxManager, clk clock.Clock) *StatusUpdateUseCase {
	return &StatusUpdateUseCase{auctions: auctions, txManager: txManager, clk: clk}
}

func (uc *StatusUpdateUseCase) UpdateStatus(ctx context.Context, auctionID uuid.UUID, target domain.Status) (*domain.Auction, error) {
	var updated *domain.Auction
	err := uc.withAuction(ctx, auctionID, func(tx db.Tx, auction *domain.Auction) error {
		now := uc.clk.Now()
		switch target {
		case domain.StatusActive, domain.StatusPending:
			if err := auction.Activate(now); err != nil {
				return err
			}
		case domain.StatusStopped:
			if err := auction.Stop(now); err != nil {
				return err
			}
		case domain.StatusSettled, domain.StatusFailed, domain.StatusSold:
			return domain.ErrStatusNotAssignable
		default:
			return domain.ErrUnknownStatus
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Auction status updated",
		zap.String("auctionID", auctionID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// UpdatePricing edits startPrice, fairMarketValue, itemPrice and dates, which
// is only permitted while the auction is not live and not terminal.
func (uc *StatusUpdateUseCase) UpdatePricing(ctx context.Context, auctionID uuid.UUID, update PricingUpdate) (*domain.Auction, error) {
	var updated *domain.Auction
	err := uc.withAuction(ctx, auctionID, func(tx db.Tx, auction *domain.Auction) error {
		if err := auction.EnsurePricingEditable(); err != nil {
			return err
		}
		if update.StartPrice != nil {
			auction.StartPrice = *update.StartPrice
			if auction.TotalBids() == 0 {
				// an empty ledger keeps currentPrice pinned to startPrice
				auction.CurrentPrice = *update.StartPrice
			}
		}
		if update.FairMarketValue != nil {
			auction.FairMarketValue = update.FairMarketValue
		}
		if update.ItemPrice != nil {
			auction.ItemPrice = update.ItemPrice
		}
		if update.StartTime != nil {
			auction.StartTime = *update.StartTime
		}
		if update.EndTime != nil {
			auction.EndTime = *update.EndTime
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// withAuction loads the aggregate under the transaction, applies fn and saves.
func (uc *StatusUpdateUseCase) withAuction(ctx context.Context, auctionID uuid.UUID, fn func(tx db.Tx, auction *domain.Auction) error) (err error) {
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

	auction, err := uc.auctions.GetByIDForUpdate(ctx, tx, auctionID)
	if err != nil {
		return fmt.Errorf("load auction %s: %w", auctionID, err)
	}
	if err = fn(tx, auction); err != nil {
		return err
	}
	return uc.auctions.Save(ctx, tx, auction)
}
