package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	accountdomain "github.com/charitybid/auctioncore/internal/account/domain"
	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/charitybid/auctioncore/internal/shared/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SweepSummary reports what one scheduled pass did.
type SweepSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SchedulerUseCase is the entry point for the external time-based trigger.
// Both sweeps are idempotent per auction and safe under overlapping
// invocations: an auction another sweep already settled is rejected by the
// state machine and counted as skipped.
type SchedulerUseCase struct {
	auctions    domain.AuctionRepository
	accounts    accountdomain.AccountRepository
	settlement  *SettlementUseCase
	dispatcher  domain.NotificationDispatcher
	events      domain.EventPublisher
	clk         clock.Clock
	endsWindow  time.Duration
	itemTimeout time.Duration
}

func NewSchedulerUseCase(
	auctions domain.AuctionRepository,
	accounts accountdomain.AccountRepository,
	settlement *SettlementUseCase,
	dispatcher domain.NotificationDispatcher,
	events domain.EventPublisher,
	clk clock.Clock,
	endsWindow time.Duration,
	itemTimeout time.Duration,
) *SchedulerUseCase {
	return &SchedulerUseCase{
		auctions:    auctions,
		accounts:    accounts,
		settlement:  settlement,
		dispatcher:  dispatcher,
		events:      events,
		clk:         clk,
		endsWindow:  endsWindow,
		itemTimeout: itemTimeout,
	}
}

// SweepForSettlement settles every active auction whose end time has passed.
// One failing auction never aborts the sweep over the remaining ones; each
// settlement carries its own timeout so a stalled gateway call cannot stall
// the whole pass.
func (uc *SchedulerUseCase) SweepForSettlement(ctx context.Context) (SweepSummary, error) {
	now := uc.clk.Now()
	candidates, err := uc.auctions.GetActiveEndedBefore(ctx, now)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("settlement sweep: scan auctions: %w", err)
	}

	var summary SweepSummary
	for _, auction := range candidates {
		uc.settleOne(ctx, auction, &summary)
	}

	log.Info("Settlement sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (uc *SchedulerUseCase) settleOne(ctx context.Context, auction *domain.Auction, summary *SweepSummary) {
	defer func() {
		if r := recover(); r != nil {
			summary.Failed++
			log.Error("Settlement sweep: recovered from panic",
				zap.String("auctionID", auction.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, uc.itemTimeout)
	defer cancel()

	err := uc.settlement.Settle(itemCtx, auction.ID)
	switch {
	case err == nil:
		summary.Processed++
	case isPaymentError(err):
		// the auction reached FAILED; the decline itself was already logged
		summary.Processed++
	case isConflict(err):
		// already terminal, likely an overlapping sweep got there first
		summary.Skipped++
	default:
		summary.Failed++
		log.Error("Settlement sweep: auction left for next sweep",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
	}
}

// SweepForEndingSoonNotifications notifies followers and the current leader
// of auctions closing within the configured window, once per auction.
func (uc *SchedulerUseCase) SweepForEndingSoonNotifications(ctx context.Context) (SweepSummary, error) {
	now := uc.clk.Now()
	candidates, err := uc.auctions.GetActiveEndingWithin(ctx, now, uc.endsWindow)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("ending-soon sweep: scan auctions: %w", err)
	}

	var summary SweepSummary
	for _, auction := range candidates {
		uc.notifyOne(ctx, auction, &summary)
	}

	log.Info("Ending-soon sweep finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (uc *SchedulerUseCase) notifyOne(ctx context.Context, auction *domain.Auction, summary *SweepSummary) {
	defer func() {
		if r := recover(); r != nil {
			summary.Failed++
			log.Error("Ending-soon sweep: recovered from panic",
				zap.String("auctionID", auction.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	recipients := make(map[string]bool)
	for _, f := range auction.Followers {
		uc.collectContact(ctx, f.AccountID, recipients)
	}
	if leader := auction.LeadingBidder(); leader != nil {
		uc.collectContact(ctx, *leader, recipients)
	}

	for recipient := range recipients {
		n := domain.Notification{
			Recipient: recipient,
			Template:  "ending_soon",
			Context: map[string]string{
				"auction_id": auction.ID.String(),
				"end_time":   auction.EndTime.Format(time.RFC3339),
			},
		}
		if err := uc.dispatcher.SendLater(ctx, n); err != nil {
			log.Warn("Ending-soon sweep: notification failed",
				zap.String("auctionID", auction.ID.String()),
				zap.Error(err),
			)
		}
	}

	if err := uc.auctions.SetClosureNotified(ctx, auction.ID); err != nil {
		summary.Failed++
		log.Error("Ending-soon sweep: could not flag auction as notified",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
		return
	}
	summary.Processed++

	price := auction.CurrentPrice
	if err := uc.events.Publish(ctx, domain.Event{
		Type:         domain.EventTypeEndingSoon,
		AuctionID:    auction.ID,
		OccurredAt:   uc.clk.Now(),
		CurrentPrice: &price,
		TotalBids:    auction.TotalBids(),
	}); err != nil {
		log.Warn("Ending-soon sweep: event publish failed",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
	}
}

func (uc *SchedulerUseCase) collectContact(ctx context.Context, accountID uuid.UUID, recipients map[string]bool) {
	account, err := uc.accounts.GetByID(ctx, accountID)
	if err != nil {
		log.Warn("Ending-soon sweep: could not resolve account",
			zap.String("accountID", accountID.String()),
			zap.Error(err),
		)
		return
	}
	if account.Email != "" {
		recipients[account.Email] = true
	}
}

func isConflict(err error) bool {
	var conflict *domain.ConflictError
	return errors.As(err, &conflict)
}

func isPaymentError(err error) bool {
	var payment *domain.PaymentError
	return errors.As(err, &payment)
}
