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

// FollowAck acknowledges a follow-graph mutation.
type FollowAck struct {
	AuctionID uuid.UUID `json:"auction_id"`
	AccountID uuid.UUID `json:"account_id"`
	Following bool      `json:"following"`
}

// FollowUseCase maintains the bidirectional follow edge between an account
// and an auction. Both sides of the edge are written in one transaction; a
// partial edge is an invariant violation.
type FollowUseCase struct {
	auctions  domain.AuctionRepository
	accounts  accountdomain.AccountRepository
	txManager db.TxManager
	clk       clock.Clock
}

func NewFollowUseCase(
	auctions domain.AuctionRepository,
	accounts accountdomain.AccountRepository,
	txManager db.TxManager,
	clk clock.Clock,
) *FollowUseCase {
	return &FollowUseCase{
		auctions:  auctions,
		accounts:  accounts,
		txManager: txManager,
		clk:       clk,
	}
}

// Follow adds the edge on both sides. A duplicate edge is rejected with
// ErrAlreadyFollowing.
func (uc *FollowUseCase) Follow(ctx context.Context, auctionID, accountID uuid.UUID) (ack *FollowAck, err error) {
	if _, err = uc.accounts.GetByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("follow: load account %s: %w", accountID, err)
	}

	tx, err := uc.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("follow: begin transaction: %w", err)
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
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("follow: commit: %w", commitErr)
			ack = nil
		}
	}()

	auction, err := uc.auctions.GetByIDForUpdate(ctx, tx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("follow: load auction %s: %w", auctionID, err)
	}

	now := uc.clk.Now()
	if err = auction.Follow(accountID, now); err != nil {
		return nil, err
	}
	if err = uc.auctions.AddFollower(ctx, tx, auctionID, accountID, now); err != nil {
		return nil, err
	}
	if err = uc.accounts.AddFollowing(ctx, tx, accountID, auctionID, now); err != nil {
		return nil, err
	}

	log.Info("Follow edge created",
		zap.String("auctionID", auctionID.String()),
		zap.String("accountID", accountID.String()),
	)
	return &FollowAck{AuctionID: auctionID, AccountID: accountID, Following: true}, nil
}

// Unfollow removes the edge on both sides. Removing an absent edge succeeds
// with a synthetic acknowledgement.
func (uc *FollowUseCase) Unfollow(ctx context.Context, auctionID, accountID uuid.UUID) (ack *FollowAck, err error) {
	tx, err := uc.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("unfollow: begin transaction: %w", err)
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
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("unfollow: commit: %w", commitErr)
			ack = nil
		}
	}()

	if err = uc.auctions.RemoveFollower(ctx, tx, auctionID, accountID); err != nil {
		return nil, fmt.Errorf("unfollow: remove follower: %w", err)
	}
	if err = uc.accounts.RemoveFollowing(ctx, tx, accountID, auctionID); err != nil {
		return nil, fmt.Errorf("unfollow: remove following: %w", err)
	}

	return &FollowAck{AuctionID: auctionID, AccountID: accountID, Following: false}, nil
}
